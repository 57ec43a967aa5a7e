// Package config loads finsync configuration from FINSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	gmailv1 "google.golang.org/api/gmail/v1"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "FINSYNC_"

// Config holds all application configuration.
type Config struct {
	HTTP        HTTPConfig        `envPrefix:"HTTP_"`
	Database    DatabaseConfig    `envPrefix:"DB_"`
	Google      GoogleConfig      `envPrefix:"GOOGLE_"`
	Auth        AuthConfig        `envPrefix:"AUTH_"`
	Credentials CredentialsConfig `envPrefix:"CREDENTIALS_"`
	Logging     LoggingConfig     `envPrefix:"LOG_"`

	// FrontendURL is where the OAuth callback sends the browser afterwards.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173/dashboard"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type DatabaseConfig struct {
	Path string `env:"PATH" envDefault:"finsync.db"`
}

// GoogleConfig describes the OAuth client registered with Google.
type GoogleConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL" envDefault:"http://localhost:8080/api/gmail/oauth2callback"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

type AuthConfig struct {
	// JWTSecret verifies bearer tokens issued by the account service.
	JWTSecret string `env:"JWT_SECRET"`
	// StateSecret signs OAuth state tokens.
	StateSecret string        `env:"STATE_SECRET"`
	StateTTL    time.Duration `env:"STATE_TTL" envDefault:"10m"`
}

// CredentialsConfig selects where OAuth credentials live.
type CredentialsConfig struct {
	Backend       string `env:"BACKEND" envDefault:"sqlite"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses the given environment map instead of the process environment
// when environ is non-nil.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if len(cfg.Google.Scopes) == 0 {
		cfg.Google.Scopes = []string{gmailv1.GmailReadonlyScope}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the settings required by every command are present.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Google.ClientID) == "" {
		errs = append(errs, errors.New(EnvPrefix+"GOOGLE_CLIENT_ID is required"))
	}
	if strings.TrimSpace(c.Google.ClientSecret) == "" {
		errs = append(errs, errors.New(EnvPrefix+"GOOGLE_CLIENT_SECRET is required"))
	}
	if c.Auth.StateSecret == "" {
		errs = append(errs, errors.New(EnvPrefix+"AUTH_STATE_SECRET is required"))
	}
	if c.Auth.StateTTL <= 0 {
		errs = append(errs, errors.New(EnvPrefix+"AUTH_STATE_TTL must be positive"))
	}
	switch c.Credentials.Backend {
	case "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("%sCREDENTIALS_BACKEND %q: want sqlite or redis", EnvPrefix, c.Credentials.Backend))
	}
	return errors.Join(errs...)
}
