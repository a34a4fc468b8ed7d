package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"shiftdesk/backend/internal/money"
)

type Config struct {
	Port                  string `env:"PORT" envDefault:"8080"`
	AllowedOrigin         string `env:"ALLOWED_ORIGIN" envDefault:"http://127.0.0.1:3000"`
	DatabaseURL           string `env:"DATABASE_URL"`
	DatabaseMigrate       bool   `env:"DATABASE_MIGRATE" envDefault:"true"`
	RedisAddr             string `env:"REDIS_ADDR"`
	RedisPassword         string `env:"REDIS_PASSWORD"`
	RedisDB               int    `env:"REDIS_DB" envDefault:"0"`
	ReportCacheTTLMinutes int    `env:"REPORT_CACHE_TTL_MINUTES" envDefault:"1440"`
	AuthSecret            string `env:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `env:"ACCESS_TOKEN_TTL_MINUTES" envDefault:"480"`
	AdminPassword         string `env:"ADMIN_PASSWORD"`
	MaxOpeningCash        string `env:"MAX_OPENING_CASH" envDefault:"1000000"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat             string `env:"LOG_FORMAT" envDefault:"json"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AdminPassword = strings.TrimSpace(cfg.AdminPassword)
	if cfg.ReportCacheTTLMinutes < 1 {
		cfg.ReportCacheTTLMinutes = 1440
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if _, err := cfg.OpeningCashCap(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLMinutes) * time.Minute
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// OpeningCashCap is the largest opening float accepted; zero disables the cap.
func (c Config) OpeningCashCap() (decimal.Decimal, error) {
	v, err := money.ParseOptional(c.MaxOpeningCash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("MAX_OPENING_CASH: %w", err)
	}
	if err := money.NonNegative(v); err != nil {
		return decimal.Zero, fmt.Errorf("MAX_OPENING_CASH: %w", err)
	}
	return v, nil
}
