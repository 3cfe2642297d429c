package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.DatabaseURL != defaultDatabaseURL {
		t.Errorf("expected default database url, got %s", cfg.DatabaseURL)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default shutdown timeout, got %v", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.RabbitMQ.Exchange != "wallet.operations" {
		t.Errorf("expected default exchange, got %s", cfg.RabbitMQ.Exchange)
	}
	if !cfg.RabbitMQ.Enabled {
		t.Error("expected rabbitmq enabled by default")
	}
	if cfg.Admin.PasswordHash != "" {
		t.Errorf("expected empty admin hash by default, got %s", cfg.Admin.PasswordHash)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/wallet?sslmode=disable")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RABBITMQ_ENABLED", "false")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://u:p@db:5432/wallet?sslmode=disable" {
		t.Errorf("database url not overridden: %s", cfg.DatabaseURL)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port not overridden: %d", cfg.HTTP.Port)
	}
	if cfg.RabbitMQ.Enabled {
		t.Error("rabbitmq should be disabled")
	}
	if cfg.Admin.PasswordHash == "" {
		t.Error("admin hash not picked up")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging not overridden: %+v", cfg.Logging)
	}
}

func TestLoad_InvalidPortFallsBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	cfg := Load()
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected fallback port 8080, got %d", cfg.HTTP.Port)
	}
}
