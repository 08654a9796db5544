package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	PlaidClientID      string `env:"PLAID_CLIENT_ID,required"`
	PlaidSecret        string `env:"PLAID_SECRET,required"`
	PlaidEnvironment   string `env:"PLAID_ENV" envDefault:"sandbox"`
	PlaidWebhookSecret string `env:"PLAID_WEBHOOK_SECRET"`
	PlaidWebhookURL    string `env:"PLAID_WEBHOOK_URL"`

	// SignatureRequired makes the webhook endpoint reject unsigned
	// deliveries. Defaults to off to accept webhooks from integrations
	// that have not configured signing yet; the laxity is a visible
	// deployment choice, not a silent fallback.
	SignatureRequired bool `env:"PLAID_SIGNATURE_REQUIRED" envDefault:"false"`

	EncryptionKey string `env:"ENCRYPTION_KEY"`

	DeletionCooldownDays   int    `env:"DELETION_COOLDOWN_DAYS" envDefault:"30"`
	LinkSessionTTLMinutes  int    `env:"LINK_SESSION_TTL_MINUTES" envDefault:"240"`
	APIRateLimitPerMin     int    `env:"API_RATE_LIMIT_PER_MIN" envDefault:"60"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) DeletionCooldown() time.Duration {
	return time.Duration(c.DeletionCooldownDays) * 24 * time.Hour
}

func (c *Config) LinkSessionTTL() time.Duration {
	return time.Duration(c.LinkSessionTTLMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	switch c.PlaidEnvironment {
	case "sandbox", "development", "production":
	default:
		return fmt.Errorf("PLAID_ENV must be sandbox, development, or production (got %q)", c.PlaidEnvironment)
	}

	if c.SignatureRequired && c.PlaidWebhookSecret == "" {
		return fmt.Errorf("PLAID_SIGNATURE_REQUIRED is set but PLAID_WEBHOOK_SECRET is empty")
	}

	if c.DeletionCooldownDays < 1 {
		return fmt.Errorf("DELETION_COOLDOWN_DAYS must be at least 1")
	}

	if isProduction {
		if c.PlaidWebhookSecret == "" {
			log.Warn().Msg("PLAID_WEBHOOK_SECRET is empty in production: webhook signature verification disabled")
		} else if !c.SignatureRequired {
			log.Warn().Msg("PLAID_SIGNATURE_REQUIRED is off in production: unsigned webhooks will be processed")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: access tokens will not be encrypted at rest")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
