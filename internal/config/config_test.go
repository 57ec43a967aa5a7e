package config

import (
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"FINSYNC_GOOGLE_CLIENT_ID":     "client",
		"FINSYNC_GOOGLE_CLIENT_SECRET": "secret",
		"FINSYNC_AUTH_STATE_SECRET":    "state-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(baseEnv())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.StateTTL != 10*time.Minute {
		t.Errorf("StateTTL = %v", cfg.Auth.StateTTL)
	}
	if cfg.Credentials.Backend != "sqlite" {
		t.Errorf("Backend = %q", cfg.Credentials.Backend)
	}
	if len(cfg.Google.Scopes) != 1 || !strings.HasSuffix(cfg.Google.Scopes[0], "gmail.readonly") {
		t.Errorf("Scopes = %v", cfg.Google.Scopes)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["FINSYNC_HTTP_ADDR"] = "127.0.0.1:9000"
	env["FINSYNC_CREDENTIALS_BACKEND"] = "redis"
	env["FINSYNC_CREDENTIALS_REDIS_DB"] = "3"
	env["FINSYNC_LOG_FORMAT"] = "console"
	cfg, err := LoadFrom(env)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" || cfg.Credentials.Backend != "redis" || cfg.Credentials.RedisDB != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("Logging.Format = %q", cfg.Logging.Format)
	}
}

func TestLoadValidation(t *testing.T) {
	env := baseEnv()
	delete(env, "FINSYNC_GOOGLE_CLIENT_SECRET")
	env["FINSYNC_CREDENTIALS_BACKEND"] = "files"
	_, err := LoadFrom(env)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "GOOGLE_CLIENT_SECRET") || !strings.Contains(msg, "CREDENTIALS_BACKEND") {
		t.Fatalf("error should name both problems, got %q", msg)
	}
}
