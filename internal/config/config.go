package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Chat providers.
const (
	ChatTemplate = "template"
	ChatGemini   = "gemini"
	ChatAgent    = "agent"
)

// Config holds all application configuration.
// Values are loaded from environment variables with defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client (chat agent)
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Record store
	StoreDriver   string
	StoreTimeout  time.Duration
	MongoURI      string
	MongoDatabase string
	SQLitePath    string

	// Events
	AMQPURL      string
	AMQPExchange string
	AMQPRequired bool // abort startup when the broker is unreachable

	// Assistant
	ChatProvider string
	GeminiAPIKey string
	GeminiModel  string
	ChatAgentURL string

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Bills
	UpcomingBillsDays int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		StoreTimeout:  getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "fintrack"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/fintrack.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack.events"),
		AMQPRequired: getEnvBool("AMQP_REQUIRED", false),

		ChatProvider: strings.ToLower(getEnv("CHAT_PROVIDER", ChatTemplate)),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		ChatAgentURL: getEnv("CHAT_AGENT_URL", ""),

		JWTSecret:    getEnv("JWT_SECRET", "fintrack-dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 24*time.Hour),

		UpcomingBillsDays: getEnvInt("UPCOMING_BILLS_DAYS", 7),
	}
}

// Validate rejects combinations the process cannot start with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreMongo, StoreSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be memory, mongo or sqlite, got %q", c.StoreDriver)
	}
	switch c.ChatProvider {
	case ChatTemplate:
	case ChatGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("CHAT_PROVIDER=gemini requires GEMINI_API_KEY")
		}
	case ChatAgent:
		if c.ChatAgentURL == "" {
			return fmt.Errorf("CHAT_PROVIDER=agent requires CHAT_AGENT_URL")
		}
	default:
		return fmt.Errorf("CHAT_PROVIDER must be template, gemini or agent, got %q", c.ChatProvider)
	}
	if c.UpcomingBillsDays < 0 {
		return fmt.Errorf("UPCOMING_BILLS_DAYS must not be negative")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
