// Package config loads and validates the launchforge daemon configuration
// from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Artifact store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds the full daemon configuration.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string

	// Store selects the artifact store backend: memory, postgres or redis.
	Store string

	// Postgres settings, used when Store is "postgres".
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis settings, used when Store is "redis".
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// MongoURI enables persistent conversation transcripts when set.
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Agent model (OpenAI-compatible chat completions).
	OpenAIKey     string
	OpenAIBaseURL string
	AgentModel    string

	// Fast edit path model (OpenAI-compatible).
	FastEditModel string

	// Full regeneration model.
	RegenProvider  string // anthropic or gemini
	AnthropicKey   string
	RegenModel     string
	GeminiKey      string
	GeminiModel    string

	// MCPEndpoints lists streamable MCP server URLs whose tools are
	// registered alongside the built-in ones. Comma separated.
	MCPEndpoints []string

	// MaxSteps caps agent tool-use rounds per turn.
	MaxSteps int

	// Pricing for the TOKENS marker, USD per 1K tokens.
	InputCostPer1K  float64
	OutputCostPer1K float64
}

// Load reads configuration from LAUNCHFORGE_* environment variables and
// applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      getEnv("LAUNCHFORGE_LISTEN_ADDR", ":8080"),
		Store:           getEnv("LAUNCHFORGE_STORE", StoreMemory),
		PostgresHost:     getEnv("LAUNCHFORGE_POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("LAUNCHFORGE_POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("LAUNCHFORGE_POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("LAUNCHFORGE_POSTGRES_PASSWORD"),
		PostgresDB:       getEnv("LAUNCHFORGE_POSTGRES_DB", "launchforge"),
		PostgresSSLMode:  getEnv("LAUNCHFORGE_POSTGRES_SSLMODE", "disable"),
		RedisAddr:       getEnv("LAUNCHFORGE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("LAUNCHFORGE_REDIS_PASSWORD"),
		RedisDB:         getEnvInt("LAUNCHFORGE_REDIS_DB", 0),
		RedisTTL:        getEnvDuration("LAUNCHFORGE_REDIS_TTL", 0),
		MongoURI:        os.Getenv("LAUNCHFORGE_MONGO_URI"),
		MongoDatabase:   getEnv("LAUNCHFORGE_MONGO_DATABASE", "launchforge"),
		MongoCollection: getEnv("LAUNCHFORGE_MONGO_COLLECTION", "turns"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_API_BASE_URL"),
		AgentModel:      getEnv("LAUNCHFORGE_AGENT_MODEL", "gpt-4o"),
		FastEditModel:   getEnv("LAUNCHFORGE_FAST_EDIT_MODEL", "gpt-4o-mini"),
		RegenProvider:   getEnv("LAUNCHFORGE_REGEN_PROVIDER", "anthropic"),
		AnthropicKey:    os.Getenv("ANTHROPIC_API_KEY"),
		RegenModel:      os.Getenv("LAUNCHFORGE_REGEN_MODEL"),
		GeminiKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("LAUNCHFORGE_GEMINI_MODEL", "gemini-1.5-flash"),
		MaxSteps:        getEnvInt("LAUNCHFORGE_MAX_STEPS", 8),
		InputCostPer1K:  getEnvFloat("LAUNCHFORGE_INPUT_COST_PER_1K", 0.0025),
		OutputCostPer1K: getEnvFloat("LAUNCHFORGE_OUTPUT_COST_PER_1K", 0.01),
	}

	if raw := os.Getenv("LAUNCHFORGE_MCP_ENDPOINTS"); raw != "" {
		for _, endpoint := range strings.Split(raw, ",") {
			if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
				cfg.MCPEndpoints = append(cfg.MCPEndpoints, endpoint)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := NewValidator()

	v.RequireNonEmpty("listenAddr", c.ListenAddr)
	v.ValidateOneOf("store", c.Store, StoreMemory, StorePostgres, StoreRedis)
	v.RequirePositive("maxSteps", c.MaxSteps)
	v.ValidateFloatRange("inputCostPer1K", c.InputCostPer1K, 0, 1)
	v.ValidateFloatRange("outputCostPer1K", c.OutputCostPer1K, 0, 1)

	switch c.Store {
	case StorePostgres:
		v.RequireNonEmpty("postgresHost", c.PostgresHost)
		v.ValidatePort("postgresPort", c.PostgresPort)
		v.RequireNonEmpty("postgresUser", c.PostgresUser)
		v.RequireNonEmpty("postgresPassword", c.PostgresPassword)
		v.RequireNonEmpty("postgresDB", c.PostgresDB)
		v.ValidateOneOf("postgresSSLMode", c.PostgresSSLMode, "disable", "require", "verify-ca", "verify-full")
	case StoreRedis:
		v.RequireNonEmpty("redisAddr", c.RedisAddr)
		v.ValidateDBNumber("redisDB", c.RedisDB)
	}

	v.ValidateOneOf("regenProvider", c.RegenProvider, "anthropic", "gemini")
	if c.RegenProvider == "gemini" {
		v.RequireNonEmpty("geminiKey", c.GeminiKey)
	}

	return v.Error()
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// String renders the config for startup logging with secrets redacted.
func (c *Config) String() string {
	return fmt.Sprintf("listen=%s store=%s agentModel=%s fastEditModel=%s regenProvider=%s mcpEndpoints=%d",
		c.ListenAddr, c.Store, c.AgentModel, c.FastEditModel, c.RegenProvider, len(c.MCPEndpoints))
}
