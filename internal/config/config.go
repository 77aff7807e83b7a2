package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/unsungfields/gateway/pkg/limiter"
)

// Config holds all environment backed configuration for the gateway.
type Config struct {
	// HTTP Server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8000"`
	MetricsPort        int      `env:"METRICS_PORT" envDefault:"9091"`
	FrontendURL        string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	DefaultUserID      string   `env:"DEFAULT_USER_ID" envDefault:"user_1"`
	// TrustUserIDHeader accepts X-User-ID as the caller's identity. Enable it
	// only behind a proxy that sets the header and strips it from clients.
	TrustUserIDHeader bool `env:"TRUST_USER_ID_HEADER" envDefault:"false"`

	// Store
	StoreBackend string        `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisTimeout time.Duration `env:"REDIS_TIMEOUT" envDefault:"2s"`

	// Rate limit
	RateLimitMaxTokens  int64         `env:"RATE_LIMIT_MAX_TOKENS" envDefault:"100"`
	RateLimitRefillRate int64         `env:"RATE_LIMIT_REFILL_RATE" envDefault:"1"`
	RateLimitCost       int64         `env:"RATE_LIMIT_COST" envDefault:"5"`
	RateLimitCooldown   time.Duration `env:"RATE_LIMIT_COOLDOWN" envDefault:"30s"`
	RateLimitPrefix     string        `env:"RATE_LIMIT_PREFIX"`

	// API keys
	APIKeyTTL time.Duration `env:"API_KEY_TTL" envDefault:"720h"`
	APIKeyTag string        `env:"API_KEY_PREFIX" envDefault:"UFK_"`

	// Magic link. The JWT_* names are accepted for existing deployments.
	MagicLinkSecret        string `env:"MAGIC_LINK_SECRET"`
	LegacyJWTSecret        string `env:"JWT_SECRET_KEY"`
	MagicLinkExpiryMinutes int    `env:"MAGIC_LINK_EXPIRY_MINUTES"`
	LegacyJWTExpiryMinutes int    `env:"JWT_EXPIRY_MINUTES"`
	MagicLinkBaseURL       string `env:"MAGIC_LINK_BASE_URL" envDefault:"http://localhost:5173/verify"`

	// Google OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	OAuthRedirectURL   string `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8000/auth"`

	// Generation backend
	GenerationBaseURL string        `env:"GENERATION_BASE_URL" envDefault:"http://localhost:8001/v1"`
	GenerationAPIKey  string        `env:"GENERATION_API_KEY"`
	GenerationModel   string        `env:"GENERATION_MODEL" envDefault:"tiny-gpt2"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`

	// Mail delivery
	Mailer       string        `env:"MAILER" envDefault:"log"`
	SMTPHost     string        `env:"SMTP_HOST"`
	SMTPPort     int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string        `env:"SMTP_USERNAME"`
	SMTPPassword string        `env:"SMTP_PASSWORD"`
	SMTPFrom     string        `env:"SMTP_FROM"`
	SMTPTimeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"30s"`

	// Observability / Logging
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"unsungfields-gateway"`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"console"`
}

// LoadEnvFiles overlays variables from the given dotenv files onto the
// process environment. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load parses environment variables into Config and performs validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MagicLinkSecret == "" {
		cfg.MagicLinkSecret = cfg.LegacyJWTSecret
	}
	if cfg.MagicLinkExpiryMinutes <= 0 {
		cfg.MagicLinkExpiryMinutes = cfg.LegacyJWTExpiryMinutes
	}
	if cfg.MagicLinkExpiryMinutes <= 0 {
		cfg.MagicLinkExpiryMinutes = 15
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch cfg.StoreBackend {
	case "redis":
		if _, err := url.Parse(cfg.RedisURL); err != nil || cfg.RedisURL == "" {
			return nil, fmt.Errorf("invalid REDIS_URL %q", cfg.RedisURL)
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	if err := cfg.LimiterPolicy().Validate(); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	if strings.TrimSpace(cfg.DefaultUserID) == "" {
		return nil, errors.New("DEFAULT_USER_ID must not be empty")
	}

	for name, raw := range map[string]string{
		"FRONTEND_URL":        cfg.FrontendURL,
		"MAGIC_LINK_BASE_URL": cfg.MagicLinkBaseURL,
		"GENERATION_BASE_URL": cfg.GenerationBaseURL,
	} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	cfg.Mailer = strings.ToLower(strings.TrimSpace(cfg.Mailer))
	switch cfg.Mailer {
	case "log":
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
			return nil, errors.New("SMTP_HOST and SMTP_FROM are required when MAILER=smtp")
		}
	default:
		return nil, fmt.Errorf("unsupported MAILER %q", cfg.Mailer)
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	return cfg, nil
}

// RequireMagicLink reports whether magic links can be signed.
func (c *Config) RequireMagicLink() error {
	if c.MagicLinkSecret == "" {
		return errors.New("MAGIC_LINK_SECRET (or JWT_SECRET_KEY) is required")
	}
	return nil
}

// MagicLinkWindow is the validity period of a magic link.
func (c *Config) MagicLinkWindow() time.Duration {
	return time.Duration(c.MagicLinkExpiryMinutes) * time.Minute
}

// OAuthEnabled reports whether Google login is configured.
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// LimiterPolicy converts the rate limit settings.
func (c *Config) LimiterPolicy() limiter.Policy {
	return limiter.Policy{
		MaxTokens:  c.RateLimitMaxTokens,
		RefillRate: c.RateLimitRefillRate,
		Cost:       c.RateLimitCost,
		Cooldown:   c.RateLimitCooldown,
	}
}
