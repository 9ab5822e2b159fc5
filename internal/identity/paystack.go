package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/charlesng35/accountd/pkg/logger"
	"github.com/charlesng35/accountd/pkg/validator"
)

// DefaultPaystackBaseURL is the public Paystack API endpoint.
const DefaultPaystackBaseURL = "https://api.paystack.co"

var _ Resolver = (*PaystackResolver)(nil)

// PaystackConfig configures the Paystack BVN resolver.
type PaystackConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     uint64
	RetryBaseDelay time.Duration
	HTTPClient     *http.Client
}

// PaystackResolver resolves BVNs through the Paystack bank API.
type PaystackResolver struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries uint64
	baseDelay  time.Duration
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

type paystackResponse struct {
	Status  bool     `json:"status"`
	Message string   `json:"message"`
	Data    Identity `json:"data"`
}

// NewPaystackResolver constructs a resolver guarded by a circuit breaker and bounded retries.
func NewPaystackResolver(cfg PaystackConfig) (*PaystackResolver, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("identity: paystack api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("identity: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	r := &PaystackResolver{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		baseDelay:  baseDelay,
		client:     client,
		log:        logger.WithModule("identity"),
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "paystack",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// A rejected number or a caller that gave up says nothing about Paystack's health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrInvalidIdentifier) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return r, nil
}

// Resolve returns the identity for bvn. Malformed numbers are rejected without a network call.
func (r *PaystackResolver) Resolve(ctx context.Context, bvn string) (Identity, error) {
	bvn = strings.TrimSpace(bvn)
	if !validator.IsBVN(bvn) {
		return Identity{}, ErrInvalidIdentifier
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.resolveWithRetry(ctx, bvn)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return Identity{}, err
	}

	return result.(Identity), nil
}

func (r *PaystackResolver) resolveWithRetry(ctx context.Context, bvn string) (Identity, error) {
	var identity Identity
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.baseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		identity, err = r.fetch(ctx, bvn)
		var transient *transientError
		if errors.As(err, &transient) {
			r.log.Debug("retrying bvn lookup", zap.Error(err))
			return retry.RetryableError(transient.err)
		}
		return err
	})
	if err != nil && ctx.Err() != nil && !errors.Is(err, ErrInvalidIdentifier) {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
	return identity, err
}

// transientError marks failures worth another attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (r *PaystackResolver) fetch(ctx context.Context, bvn string) (Identity, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	endpoint := r.baseURL + "/bank/resolve_bvn/" + url.PathEscape(bvn)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", r.authorization())
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Identity{}, &transientError{err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, &transientError{err: fmt.Errorf("%w: read body: %v", ErrUnavailable, err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return Identity{}, &transientError{err: fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return Identity{}, ErrInvalidIdentifier
	case resp.StatusCode != http.StatusOK:
		r.log.Error("unexpected paystack response", zap.Int("status", resp.StatusCode))
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload paystackResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Identity{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !payload.Status {
		return Identity{}, ErrInvalidIdentifier
	}

	return payload.Data, nil
}

func (r *PaystackResolver) authorization() string {
	if strings.HasPrefix(strings.ToLower(r.apiKey), "bearer ") {
		return r.apiKey
	}
	return "Bearer " + r.apiKey
}
