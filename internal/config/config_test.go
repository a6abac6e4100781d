package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8082", cfg.Port)
	assert.Equal(t, "233", cfg.CountryCode)
	assert.Equal(t, 9, cfg.PhoneLocalDigits)
	assert.Equal(t, 5, cfg.OTPLength)
	assert.Equal(t, 800*time.Millisecond, cfg.LookupDebounce)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "mandate.stage.changed", cfg.StageTopic)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "15s")
	t.Setenv("COUNTRY_CODE", "234")
	t.Setenv("OTP_LENGTH", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, "234", cfg.CountryCode)
	assert.Equal(t, 6, cfg.OTPLength)
}

func TestLoad_RejectsPollIntervalOutOfRange(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "100ms")

	_, err := Load()
	assert.ErrorContains(t, err, "POLL_INTERVAL")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:             "8082",
			PaymentsAPIURL:   "http://api",
			PhoneLocalDigits: 9,
			OTPLength:        5,
			PollInterval:     10 * time.Second,
			PaymentLockTTL:   30 * time.Second,
			SessionIdleTTL:   30 * time.Minute,
			SweepInterval:    time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing api url", func(c *Config) { c.PaymentsAPIURL = "" }, "PAYMENTS_API_URL"},
		{"zero phone digits", func(c *Config) { c.PhoneLocalDigits = 0 }, "PHONE_LOCAL_DIGITS"},
		{"zero otp length", func(c *Config) { c.OTPLength = 0 }, "OTP_LENGTH"},
		{"negative debounce", func(c *Config) { c.LookupDebounce = -time.Second }, "LOOKUP_DEBOUNCE"},
		{"zero lock ttl", func(c *Config) { c.PaymentLockTTL = 0 }, "PAYMENT_LOCK_TTL"},
		{"zero idle ttl", func(c *Config) { c.SessionIdleTTL = 0 }, "SESSION_IDLE_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
