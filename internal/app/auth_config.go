package app

import (
	"time"

	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/services"
)

const (
	defaultCookieExpireDays = 30
	defaultCodeLength       = 6
	defaultCodeTTL          = 10 * time.Minute
)

// TokenServiceConfig converts AuthConfig into the parameters expected by the token service.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	ttl := c.JWT.Expire
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	resetTTL := c.Reset.TTL
	if resetTTL <= 0 {
		resetTTL = auth.DefaultResetTTL
	}

	return auth.TokenConfig{
		Secret:   c.JWT.Secret,
		Issuer:   c.JWT.Issuer,
		TTL:      ttl,
		ResetTTL: resetTTL,
	}
}

// VerificationServiceConfig converts AuthConfig into VerificationService parameters.
func (c AuthConfig) VerificationServiceConfig() services.VerificationConfig {
	ttl := c.BVN.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}

	length := c.BVN.CodeLength
	if length <= 0 {
		length = defaultCodeLength
	}

	return services.VerificationConfig{
		CodeTTL:    ttl,
		CodeLength: length,
	}
}

// CookieMaxAge returns the lifetime of the session cookie.
func (c AuthConfig) CookieMaxAge() time.Duration {
	days := c.Cookie.ExpireDays
	if days <= 0 {
		days = defaultCookieExpireDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// AccountServiceConfig derives the password lifecycle settings.
func (c Config) AccountServiceConfig() services.AccountConfig {
	return services.AccountConfig{
		From:      c.Email.From,
		PublicURL: c.Server.PublicURL,
	}
}
