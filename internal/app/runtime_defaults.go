package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charlesng35/accountd/pkg/crypto"
)

const (
	jwtSecretBytes = 32
	// MinSecretLength applies to secrets supplied in production.
	MinSecretLength = 32
)

var (
	// ErrMissingSecret is returned when production runs without a signing secret.
	ErrMissingSecret = errors.New("config: auth.jwt.secret (JWT_SECRET) is required in production")
	// ErrWeakSecret is returned when a production signing secret is too short to resist guessing.
	ErrWeakSecret = fmt.Errorf("config: auth.jwt.secret must be at least %d characters in production", MinSecretLength)
	// ErrMissingPublicURL is returned when production would build reset links from request headers.
	ErrMissingPublicURL = errors.New("config: server.public_url is required in production")
)

// ApplyRuntimeDefaults fills settings that cannot be expressed as static defaults and
// returns the keys whose values were generated, so callers can log them without the values.
//
// Outside production a missing signing secret is replaced with a random one and sessions
// do not survive a restart. A cookie lifetime of zero follows the session lifetime.
// Production also requires an absolute http(s) server.public_url for emailed links.
func ApplyRuntimeDefaults(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	var generated []string
	secret := strings.TrimSpace(cfg.Auth.JWT.Secret)
	switch {
	case secret == "" && cfg.Server.IsProduction():
		return nil, ErrMissingSecret
	case secret == "":
		value, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = value
		generated = append(generated, "auth.jwt.secret")
	case cfg.Server.IsProduction() && len(secret) < MinSecretLength:
		return nil, ErrWeakSecret
	}

	if err := checkPublicURL(cfg.Server); err != nil {
		return nil, err
	}

	if cfg.Auth.Cookie.ExpireDays <= 0 {
		cfg.Auth.Cookie.ExpireDays = lifetimeDays(cfg.Auth.JWT.Expire)
	}
	return generated, nil
}

func checkPublicURL(server ServerConfig) error {
	raw := strings.TrimSpace(server.PublicURL)
	if raw == "" {
		if server.IsProduction() {
			return ErrMissingPublicURL
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: server.public_url %q must be an absolute http(s) URL", raw)
	}
	return nil
}

// lifetimeDays rounds d up to whole days, falling back to 30 when unset.
func lifetimeDays(d time.Duration) int {
	const day = 24 * time.Hour
	if d <= 0 {
		return 30
	}
	return int((d + day - 1) / day)
}
