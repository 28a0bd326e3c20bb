package config

import (
	"fmt"
	"strings"
	"time"
)

// HTTPConfig holds the listen settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"PARKGATE_HTTP_PORT"`
}

// DatabaseConfig holds the Postgres settings. An empty DSN selects the
// in-memory store backend.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"PARKGATE_POSTGRES_DSN"`
}

// RedisConfig holds the active-session cache settings. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"PARKGATE_REDIS_ADDR"`
	Password string `yaml:"password" env:"PARKGATE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"PARKGATE_REDIS_DB"`
	TTL      int    `yaml:"ttlSeconds" env:"PARKGATE_REDIS_TTL"`
}

// AuthConfig guards the reporting surface. An empty secret leaves it open.
type AuthConfig struct {
	Secret string `yaml:"secret" env:"PARKGATE_AUTH_SECRET"`
}

// BillingConfig holds the tariff.
type BillingConfig struct {
	HourlyRate  float64 `yaml:"hourlyRate" env:"PARKGATE_BILLING_HOURLY_RATE"`
	MinimumFare float64 `yaml:"minimumFare" env:"PARKGATE_BILLING_MINIMUM_FARE"`
}

// SlotsConfig lists the physical slot codes seeded at bootstrap.
type SlotsConfig struct {
	Codes []string `yaml:"codes" env:"PARKGATE_SLOT_CODES"`
}

// LifecycleConfig bounds the per-vehicle lock wait.
type LifecycleConfig struct {
	LockWaitMS int `yaml:"lockWaitMs" env:"PARKGATE_LOCK_WAIT_MS"`
}

// Config defines the parkgate service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Billing   BillingConfig   `yaml:"billing"`
	Slots     SlotsConfig     `yaml:"slots"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

// Load reads configuration via the shared loader and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:      HTTPConfig{Port: "8080"},
		Redis:     RedisConfig{TTL: 86400},
		Billing:   BillingConfig{HourlyRate: 50, MinimumFare: 20},
		Slots:     SlotsConfig{Codes: []string{"A1", "A2", "A3"}},
		Lifecycle: LifecycleConfig{LockWaitMS: 2000},
	}

	if err := load(cfg); err != nil {
		return nil, err
	}

	if cfg.Billing.HourlyRate <= 0 {
		return nil, fmt.Errorf("config: billing hourly rate must be positive, got %v", cfg.Billing.HourlyRate)
	}
	if cfg.Billing.MinimumFare < 0 {
		return nil, fmt.Errorf("config: billing minimum fare must not be negative, got %v", cfg.Billing.MinimumFare)
	}
	if len(cfg.Slots.Codes) == 0 {
		return nil, fmt.Errorf("config: at least one slot code required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ActiveSessionTTL returns the cache ttl as duration.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// LockWait returns the bounded wait for per-vehicle exclusivity.
func (c *Config) LockWait() time.Duration {
	if c.Lifecycle.LockWaitMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Lifecycle.LockWaitMS) * time.Millisecond
}
