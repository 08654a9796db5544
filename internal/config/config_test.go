package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                  8080,
		DatabaseURL:           "postgres://localhost/plaid_link",
		RedisURL:              "redis://localhost:6379",
		PlaidClientID:         "client-id",
		PlaidSecret:           "secret",
		PlaidEnvironment:      "sandbox",
		DeletionCooldownDays:  30,
		LinkSessionTTLMinutes: 240,
		APIRateLimitPerMin:    60,
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/plaid_link")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PLAID_CLIENT_ID", "client-id")
	t.Setenv("PLAID_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sandbox", cfg.PlaidEnvironment)
	assert.False(t, cfg.SignatureRequired)
	assert.Equal(t, 30, cfg.DeletionCooldownDays)
	assert.Equal(t, 240, cfg.LinkSessionTTLMinutes)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingRequired(t *testing.T) {
	// t.Setenv registers the restore; the variable itself must be absent
	// for the required tag to trip.
	t.Setenv("DATABASE_URL", "placeholder")
	os.Unsetenv("DATABASE_URL")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PLAID_CLIENT_ID", "client-id")
	t.Setenv("PLAID_SECRET", "secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate(false))
}

func TestValidate_BadEnvironment(t *testing.T) {
	cfg := validConfig()
	cfg.PlaidEnvironment = "staging"
	assert.Error(t, cfg.Validate(false))
}

func TestValidate_SignatureRequiredWithoutSecret(t *testing.T) {
	cfg := validConfig()
	cfg.SignatureRequired = true
	cfg.PlaidWebhookSecret = ""
	assert.Error(t, cfg.Validate(false))

	cfg.PlaidWebhookSecret = "whsec_test"
	assert.NoError(t, cfg.Validate(false))
}

func TestValidate_CooldownBounds(t *testing.T) {
	cfg := validConfig()
	cfg.DeletionCooldownDays = 0
	assert.Error(t, cfg.Validate(false))
}

func TestDurations(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 30*24*time.Hour, cfg.DeletionCooldown())
	assert.Equal(t, 4*time.Hour, cfg.LinkSessionTTL())
	assert.Equal(t, ":8080", cfg.Addr())
}
