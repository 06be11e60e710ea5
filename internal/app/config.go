package app

import (
	"errors"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ClientConfig holds what every enrollment API client needs.
type ClientConfig struct {
	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:5000"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
	LogFormat  string        `envconfig:"LOG_FORMAT" default:"pretty"`
}

// Config holds runtime configuration for the portal.
type Config struct {
	ClientConfig

	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	AdminURL string `envconfig:"ADMIN_URL" default:"http://localhost:5000/admin"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"30m"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	WorkspaceIdleTTL time.Duration `envconfig:"WORKSPACE_IDLE_TTL" default:"30m"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if err := validateURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClientConfig reads only the API client settings, for the terminal client.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := validateURL(cfg.APIBaseURL); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("api base url must be an absolute http(s) url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("api base url must be an absolute http(s) url")
	}
	return nil
}
