package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidatorChaining(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("name", "").
		RequirePositive("count", 0).
		ValidatePort("port", 99999)

	if !v.HasErrors() {
		t.Fatal("expected validation errors")
	}
	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(v.Errors()))
	}

	err := v.Error()
	if err == nil {
		t.Fatal("expected combined error")
	}
	for _, field := range []string{"name", "count", "port"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("combined error missing field %q: %v", field, err)
		}
	}
}

func TestValidatorNoErrors(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("name", "launchforge").
		ValidatePort("port", 8080).
		ValidateOneOf("store", StoreMemory, StoreMemory, StorePostgres, StoreRedis).
		ValidateFloatRange("temp", 0.7, 0, 2)

	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Error())
	}
	if v.Error() != nil {
		t.Fatalf("expected nil error, got %v", v.Error())
	}
}

func TestValidateOneOfRejectsUnknown(t *testing.T) {
	v := NewValidator()
	v.ValidateOneOf("store", "cassandra", StoreMemory, StorePostgres, StoreRedis)
	if !v.HasErrors() {
		t.Fatal("expected error for unknown store backend")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("default store = %q, want %q", cfg.Store, StoreMemory)
	}
	if cfg.ListenAddr == "" {
		t.Error("expected default listen address")
	}
	if cfg.MaxSteps <= 0 {
		t.Errorf("default max steps = %d, want positive", cfg.MaxSteps)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LAUNCHFORGE_STORE", StoreRedis)
	t.Setenv("LAUNCHFORGE_REDIS_ADDR", "redis:6379")
	t.Setenv("LAUNCHFORGE_REDIS_DB", "3")
	t.Setenv("LAUNCHFORGE_REDIS_TTL", "48h")
	t.Setenv("LAUNCHFORGE_MCP_ENDPOINTS", "http://a.example/mcp, http://b.example/mcp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreRedis {
		t.Errorf("store = %q, want redis", cfg.Store)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("redis db = %d, want 3", cfg.RedisDB)
	}
	if cfg.RedisTTL != 48*time.Hour {
		t.Errorf("redis ttl = %v, want 48h", cfg.RedisTTL)
	}
	if len(cfg.MCPEndpoints) != 2 {
		t.Fatalf("mcp endpoints = %v, want 2 entries", cfg.MCPEndpoints)
	}
	if cfg.MCPEndpoints[1] != "http://b.example/mcp" {
		t.Errorf("second endpoint = %q", cfg.MCPEndpoints[1])
	}
}

func TestValidateRejectsMissingPostgresPassword(t *testing.T) {
	t.Setenv("LAUNCHFORGE_STORE", StorePostgres)
	t.Setenv("LAUNCHFORGE_POSTGRES_PASSWORD", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when postgres store has no password")
	}
}

func TestValidateRejectsBadStore(t *testing.T) {
	cfg := &Config{
		ListenAddr:    ":8080",
		Store:         "cassandra",
		MaxSteps:      8,
		RegenProvider: "anthropic",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown store backend")
	}
}
