package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Assistant AssistantConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	IndexTopic         string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	JwtSecret    string
}

type AIConfig struct {
	EmbeddingProvider   string // "gemini" or "ollama"
	EmbeddingDimensions int
	OllamaBaseURL       string
	OllamaModel         string // embedding model
	LLMProvider         string // provider used for the classifier and unknown catalog entries
	ClassifierModel     string
	DefaultModelWidget  string
	DefaultModelPage    string
}

// AssistantConfig holds the routing and retrieval tunables.
type AssistantConfig struct {
	DestinationFloor     float64
	DestinationTopN      int
	DestinationMargin    float64
	KnowledgeLimit       int
	KnowledgeFloor       float64
	SearchFloor          float64
	ConfidenceFloor      float64
	PremiumDailyCapTier1 int
	StepBudget           int
	CheckpointInterval   int
	RetrievalTimeout     time.Duration
	ClassifierTimeout    time.Duration
	ToolTimeout          time.Duration
	QuotaBackend         string // "postgres", "redis" or "memory"
	EmbeddingCacheTTL    time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			IndexTopic:         getEnv("INDEX_TOPIC_NAME", "REINDEX_DESTINATIONS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			JwtSecret:    getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:         getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:         getEnv("LLM_PROVIDER", "ollama"),
			ClassifierModel:     getEnv("CLASSIFIER_MODEL", "qwen2.5:1.5b"),
			DefaultModelWidget:  getEnv("DEFAULT_MODEL_WIDGET", "llama3.2"),
			DefaultModelPage:    getEnv("DEFAULT_MODEL_FULL_PAGE", "llama3.1"),
		},
		Assistant: AssistantConfig{
			DestinationFloor:     getEnvAsFloat("DESTINATION_MIN_SIMILARITY", 0.4),
			DestinationTopN:      getEnvAsInt("DESTINATION_TOP_N", 3),
			DestinationMargin:    getEnvAsFloat("DESTINATION_PAGE_MARGIN", 0.1),
			KnowledgeLimit:       getEnvAsInt("KNOWLEDGE_LIMIT", 5),
			KnowledgeFloor:       getEnvAsFloat("KNOWLEDGE_MIN_SIMILARITY", 0.3),
			SearchFloor:          getEnvAsFloat("SEARCH_MIN_SIMILARITY", 0.5),
			ConfidenceFloor:      getEnvAsFloat("INTENT_CONFIDENCE_FLOOR", 0.6),
			PremiumDailyCapTier1: getEnvAsInt("PREMIUM_DAILY_CAP_TIER1", 10),
			StepBudget:           getEnvAsInt("TOOL_STEP_BUDGET", 5),
			CheckpointInterval:   getEnvAsInt("CHECKPOINT_INTERVAL_CHARS", 500),
			RetrievalTimeout:     getEnvAsDuration("RETRIEVAL_TIMEOUT", 4*time.Second),
			ClassifierTimeout:    getEnvAsDuration("CLASSIFIER_TIMEOUT", 3*time.Second),
			ToolTimeout:          getEnvAsDuration("TOOL_TIMEOUT", 8*time.Second),
			QuotaBackend:         getEnv("QUOTA_BACKEND", "postgres"),
			EmbeddingCacheTTL:    getEnvAsDuration("EMBEDDING_CACHE_TTL", 10*time.Minute),
		},
		Tracing: TracingConfig{
			Enabled:     getEnv("OTEL_ENABLED", "false") == "true",
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
