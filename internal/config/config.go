package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
	Rate      RateConfig
	Breaker   BreakerConfig
	Session   SessionConfig
	Stream    StreamConfig
	Pricing   PricingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	OtelEnabled        bool
	OtelEndpoint       string
	ServiceName        string
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider        string // "ollama", "openai", "deepseek" or "ark"
	LLMModel           string
	LLMBaseURL         string
	LLMAPIKey          string
	EmbeddingProvider  string // "ollama" or "gemini"
	EmbeddingModel     string
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	EmbeddingCacheTTL  time.Duration
	ProviderMaxRetries int
}

type RetrievalConfig struct {
	SimilarityFloor float64
	FocusBoost      float64
	TokenBudget     int
	TopK            int
	MaxDocuments    int
}

type CacheConfig struct {
	Capacity      int
	TTL           time.Duration
	SweepInterval time.Duration
}

type RateConfig struct {
	QueryCap      int
	Window        time.Duration
	MaxConcurrent int
	SweepInterval time.Duration
}

type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

type SessionConfig struct {
	SpendCeiling  float64
	TTL           time.Duration
	SweepInterval time.Duration
	HistoryLimit  int
}

type StreamConfig struct {
	Timeout         time.Duration
	FinalizeTimeout time.Duration
	MaxQueryLength  int
}

// PricingConfig is in USD per million tokens.
type PricingConfig struct {
	Input       float64
	CachedInput float64
	Output      float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:               getEnv("PORT", "3000"),
			Environment:        getEnv("ENVIRONMENT", "development"),
			LogFilePath:        getEnv("LOG_FILE", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:        getEnv("OTEL_SERVICE_NAME", "docchat-be"),
			ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
			LLMAPIKey:          getEnv("LLM_API_KEY", ""),
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:11434"),
			EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
			EmbeddingCacheTTL:  getEnvAsDuration("EMBEDDING_CACHE_TTL", time.Hour),
			ProviderMaxRetries: getEnvAsInt("PROVIDER_MAX_RETRIES", 3),
		},
		Retrieval: RetrievalConfig{
			SimilarityFloor: getEnvAsFloat("RAG_SIMILARITY_FLOOR", 0.7),
			FocusBoost:      getEnvAsFloat("RAG_FOCUS_BOOST", 0.15),
			TokenBudget:     getEnvAsInt("RAG_TOKEN_BUDGET", 8000),
			TopK:            getEnvAsInt("RAG_TOP_K", 5),
			MaxDocuments:    getEnvAsInt("RAG_MAX_DOCUMENTS", 3),
		},
		Cache: CacheConfig{
			Capacity:      getEnvAsInt("CACHE_CAPACITY", 500),
			TTL:           getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			SweepInterval: getEnvAsDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),
		},
		Rate: RateConfig{
			QueryCap:      getEnvAsInt("RATE_QUERY_CAP", 100),
			Window:        getEnvAsDuration("RATE_WINDOW", 60*time.Minute),
			MaxConcurrent: getEnvAsInt("RATE_MAX_CONCURRENT", 5),
			SweepInterval: getEnvAsDuration("RATE_SWEEP_INTERVAL", 5*time.Minute),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
			RecoveryTimeout:  getEnvAsDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			SpendCeiling:  getEnvAsFloat("SESSION_SPEND_CEILING", 5.00),
			TTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Hour),
			HistoryLimit:  getEnvAsInt("HISTORY_LIMIT", 10),
		},
		Stream: StreamConfig{
			Timeout:         getEnvAsDuration("STREAM_TIMEOUT", 60*time.Second),
			FinalizeTimeout: getEnvAsDuration("FINALIZE_TIMEOUT", 10*time.Second),
			MaxQueryLength:  getEnvAsInt("MAX_QUERY_LENGTH", 6000),
		},
		Pricing: PricingConfig{
			Input:       getEnvAsFloat("PRICE_INPUT", 0.28),
			CachedInput: getEnvAsFloat("PRICE_CACHED_INPUT", 0.028),
			Output:      getEnvAsFloat("PRICE_OUTPUT", 0.42),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "24h"); a bare integer is
// read as seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
