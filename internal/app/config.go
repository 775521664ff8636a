package app

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	// PermitLogMode gates decision-event emission. Anything other than
	// "baseline" or "debug" (including absence) means off.
	PermitLogMode      string        `envconfig:"PERMIT_LOG_MODE" default:"off"`
	PermitCacheTTL     time.Duration `envconfig:"PERMIT_CACHE_TTL" default:"5m"`
	PermitSweepEvery   time.Duration `envconfig:"PERMIT_SWEEP_EVERY" default:"1m"`
	PermitEventTTL     time.Duration `envconfig:"PERMIT_EVENT_TTL" default:"720h"`
	PermitDocumentKey  string        `envconfig:"PERMIT_DOCUMENT_KEY" default:"permit:document"`
	PermitEventSink    string        `envconfig:"PERMIT_EVENT_SINK" default:"redis"`
	PermitEnvironment  string        `envconfig:"PERMIT_ENVIRONMENT" default:"server"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
