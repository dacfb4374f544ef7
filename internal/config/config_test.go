package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:      AppConfig{Env: "local", Port: 8080},
		DB:       DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "pbx"},
		Auth:     AuthConfig{JWTSecret: "secret"},
		Provider: ProviderConfig{BaseURL: "https://switch.example.com:3000", APIKey: "key"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProviderRequired(t *testing.T) {
	c := validBase()
	c.Provider.BaseURL = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing PROVIDER_BASE_URL")
	}

	c = validBase()
	c.Provider.APIKey = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing PROVIDER_API_KEY")
	}
}

func TestValidate_AppliesPollerDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Poller.Interval != 5*time.Second {
		t.Fatalf("expected 5s default interval, got %s", c.Poller.Interval)
	}
	if c.Poller.MaxRetries != 3 {
		t.Fatalf("expected 3 default retries, got %d", c.Poller.MaxRetries)
	}
	if c.Provider.CacheTTL != 2*time.Second {
		t.Fatalf("expected 2s default cache TTL, got %s", c.Provider.CacheTTL)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "pbx-console"
	c.Auth.JWTAudience = "pbx-console"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_BackoffCapBelowBase(t *testing.T) {
	c := validBase()
	c.Poller.BackoffBase = 10 * time.Second
	c.Poller.BackoffCap = time.Second
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for cap below base")
	}
}

func TestValidate_RedisOptional(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("redis should be optional, got %v", err)
	}
	c.Redis = RedisConfig{Host: "localhost", Port: 0}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis host without valid port")
	}
}
