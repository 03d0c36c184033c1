package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Config is read from the environment (and .env, loaded on import).
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	GinMode  string `env:"GIN_MODE" envDefault:"debug"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	AnalyticsDB     string        `env:"ANALYTICS_DB" envDefault:"card.db"`
	TrackingEnabled bool          `env:"TRACKING_ENABLED" envDefault:"true"`
	CardIdleTTL     time.Duration `env:"CARD_IDLE_TTL" envDefault:"30m"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"false"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// ErrInvalidGinMode is returned for a GIN_MODE gin does not know.
var ErrInvalidGinMode = errors.New("invalid GIN_MODE")

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return Config{}, fmt.Errorf("parse env: %w %q", ErrInvalidGinMode, cfg.GinMode)
	}

	// Default credentials for development (remove in production)
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
		log.Warn("Using default admin username. Set ADMIN_USERNAME environment variable.")
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin123"
		log.Warn("Using default admin password. Set ADMIN_PASSWORD environment variable.")
	}
	return cfg, nil
}
