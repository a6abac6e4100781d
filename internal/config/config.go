package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	KafkaBrokers   string `mapstructure:"KAFKA_BROKERS"`
	NatsURL        string `mapstructure:"NATS_URL"`
	JaegerEndpoint string `mapstructure:"JAEGER_ENDPOINT"`
	Port           string `mapstructure:"PORT"`

	PaymentsAPIURL     string        `mapstructure:"PAYMENTS_API_URL"`
	PaymentsAPITimeout time.Duration `mapstructure:"PAYMENTS_API_TIMEOUT"`
	StageTopic         string        `mapstructure:"STAGE_TOPIC"`

	CountryCode      string        `mapstructure:"COUNTRY_CODE"`
	PhoneLocalDigits int           `mapstructure:"PHONE_LOCAL_DIGITS"`
	OTPLength        int           `mapstructure:"OTP_LENGTH"`
	LookupDebounce   time.Duration `mapstructure:"LOOKUP_DEBOUNCE"`
	PollInterval     time.Duration `mapstructure:"POLL_INTERVAL"`
	PaymentLockTTL   time.Duration `mapstructure:"PAYMENT_LOCK_TTL"`

	SessionIdleTTL time.Duration `mapstructure:"SESSION_IDLE_TTL"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`
}

// Load reads an optional .env file, then the environment, on top of defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("PORT", "8082")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("JAEGER_ENDPOINT", "jaeger:4318")
	v.SetDefault("PAYMENTS_API_URL", "http://localhost:8080")
	v.SetDefault("PAYMENTS_API_TIMEOUT", "15s")
	v.SetDefault("STAGE_TOPIC", "mandate.stage.changed")
	v.SetDefault("COUNTRY_CODE", "233")
	v.SetDefault("PHONE_LOCAL_DIGITS", 9)
	v.SetDefault("OTP_LENGTH", 5)
	v.SetDefault("LOOKUP_DEBOUNCE", "800ms")
	v.SetDefault("POLL_INTERVAL", "10s")
	v.SetDefault("PAYMENT_LOCK_TTL", "30s")
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("SWEEP_INTERVAL", "1m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORT must be set")
	}
	if c.PaymentsAPIURL == "" {
		return errors.New("config: PAYMENTS_API_URL must be set")
	}
	if c.PhoneLocalDigits <= 0 {
		return fmt.Errorf("config: PHONE_LOCAL_DIGITS must be positive, got %d", c.PhoneLocalDigits)
	}
	if c.OTPLength <= 0 {
		return fmt.Errorf("config: OTP_LENGTH must be positive, got %d", c.OTPLength)
	}
	if c.LookupDebounce < 0 {
		return errors.New("config: LOOKUP_DEBOUNCE must not be negative")
	}
	if c.PollInterval < time.Second || c.PollInterval > 5*time.Minute {
		return fmt.Errorf("config: POLL_INTERVAL must be between 1s and 5m, got %s", c.PollInterval)
	}
	if c.PaymentLockTTL <= 0 {
		return errors.New("config: PAYMENT_LOCK_TTL must be positive")
	}
	if c.SessionIdleTTL <= 0 || c.SweepInterval <= 0 {
		return errors.New("config: SESSION_IDLE_TTL and SWEEP_INTERVAL must be positive")
	}
	return nil
}
