package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "kirana")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "kiranakart")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("PAYU_MERCHANT_KEY", "gtKFFx")
	t.Setenv("PAYU_MERCHANT_SALT", "eCwWELxi")
	t.Setenv("CALLBACK_BASE_URL", "https://api.example.com")

	cfg := LoadConfig()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "gtKFFx", cfg.PayUKey)
	assert.Equal(t, "eCwWELxi", cfg.PayUSalt)
	assert.Equal(t, "https://api.example.com", cfg.CallbackBaseURL)
	assert.Equal(t, 30*time.Minute, cfg.PaymentTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
}

func TestLoadConfigTimeoutOverride(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("PAYMENT_TIMEOUT_MINUTES", "45")
	t.Setenv("PAYMENT_SWEEP_INTERVAL_MINUTES", "bogus")

	cfg := LoadConfig()

	assert.Equal(t, 45*time.Minute, cfg.PaymentTimeout)
	// unparseable values fall back to the default
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
}
