package app

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the runtime configuration for the accountd backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Email       EmailConfig       `mapstructure:"email"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level"`
	PublicURL string `mapstructure:"public_url"`
}

// IsProduction reports whether the server runs with production semantics.
func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// IsDevelopment reports whether verbose logging and the access log are enabled.
func (c ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvDevelopment)
}

// DatabaseConfig describes connection options for the supported stores.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
	Mongo    MongoConfig  `mapstructure:"mongo"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MongoConfig configures the document store backend.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures session, reset and BVN settings.
type AuthConfig struct {
	JWT    JWTSettings    `mapstructure:"jwt"`
	Cookie CookieSettings `mapstructure:"cookie"`
	Reset  ResetSettings  `mapstructure:"reset"`
	BVN    BVNSettings    `mapstructure:"bvn"`
}

// JWTSettings configures session tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	Expire time.Duration `mapstructure:"expire"`
}

// CookieSettings configures the session cookie.
type CookieSettings struct {
	ExpireDays int `mapstructure:"expire_days"`
}

// ResetSettings configures password reset tokens.
type ResetSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// BVNSettings configures verification codes.
type BVNSettings struct {
	CodeTTL    time.Duration `mapstructure:"code_ttl"`
	CodeLength int           `mapstructure:"code_length"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	Provider string         `mapstructure:"provider"`
	From     string         `mapstructure:"from"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	Mailgun  MailgunConfig  `mapstructure:"mailgun"`
	Retry    RetryConfig    `mapstructure:"retry"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SendGridConfig holds SendGrid API credentials.
type SendGridConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// MailgunConfig holds Mailgun API credentials.
type MailgunConfig struct {
	Domain  string `mapstructure:"domain"`
	APIKey  string `mapstructure:"api_key"`
	APIBase string `mapstructure:"api_base"`
}

// RetryConfig bounds redelivery of outbound email.
type RetryConfig struct {
	Attempts  uint64        `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

// IdentityConfig configures the BVN lookup provider.
type IdentityConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// MaintenanceConfig schedules background cleanup.
type MaintenanceConfig struct {
	ResetTokenSchedule string `mapstructure:"reset_token_schedule"`
}

// envAliases binds the variable names used by existing deployments.
var envAliases = map[string]string{
	"auth.jwt.secret":         "JWT_SECRET",
	"auth.jwt.expire":         "JWT_EXPIRE",
	"auth.cookie.expire_days": "JWT_COOKIE_EXPIRE",
	"server.env":              "NODE_ENV",
	"server.port":             "PORT",
	"identity.api_key":        "PAYSTACK_API_KEY",
}

const envPrefix = "ACCOUNTD"

// LoadConfig initialises application configuration using Viper with sensible defaults.
// An explicit file path wins over the search paths.
func LoadConfig(file string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if strings.TrimSpace(file) != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		for _, path := range paths {
			v.AddConfigPath(path)
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindAliases(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func bindAliases(v *viper.Viper) error {
	for key, alias := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.env", EnvDevelopment)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.public_url", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/accountd.sqlite")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mongo.database", "accountd")
	v.SetDefault("database.mongo.collection", "users")
	v.SetDefault("database.mongo.timeout", "10s")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "accountd")
	v.SetDefault("auth.jwt.expire", "30d")
	v.SetDefault("auth.cookie.expire_days", 30)
	v.SetDefault("auth.reset.ttl", "10m")
	v.SetDefault("auth.bvn.code_ttl", "10m")
	v.SetDefault("auth.bvn.code_length", 6)

	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.from", "")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")
	v.SetDefault("email.retry.attempts", 3)
	v.SetDefault("email.retry.base_delay", "200ms")

	v.SetDefault("identity.base_url", "https://api.paystack.co")
	v.SetDefault("identity.api_key", "")
	v.SetDefault("identity.timeout", "10s")
	v.SetDefault("identity.max_retries", 2)
	v.SetDefault("identity.retry_base_delay", "250ms")

	v.SetDefault("maintenance.reset_token_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			stringToLifetimeHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// stringToLifetimeHookFunc decodes durations, additionally accepting a day suffix ("30d").
func stringToLifetimeHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return ParseLifetime(data.(string))
	}
}

// ParseLifetime parses Go durations and whole days written as "<n>d".
func ParseLifetime(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("config: invalid lifetime %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid lifetime %q: %w", raw, err)
	}
	return d, nil
}
