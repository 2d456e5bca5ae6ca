package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Tutor    TutorConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	PipelineLogPath    string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	MetricsNamespace   string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	OpenAI       string
	GoogleGemini string
	HuggingFace  string
	Jina         string
}

type AIConfig struct {
	EmbeddingProvider  string // "openai", "ollama", "gemini" or "jina"
	EmbeddingModel     string
	EmbeddingDimension int
	OllamaBaseURL      string
	OpenAIBaseURL      string
	LLMProvider        string // "openai", "ollama" or "huggingface"
	HuggingFaceBaseURL string
	LLMModel           string
	GeneratorTimeout   time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

type TutorConfig struct {
	ShortTermWindow     int
	LongTermTopK        int
	ReferenceTopK       int
	MemoryCollection    string
	ReferenceCollection string
	ParallelRetrieval   bool
	ConversationBackend string // "postgres", "redis" or "memory"
	SemanticBackend     string // "pgvector", "weaviate" or "memory"
	WeaviateURL         string
	IngestTopic         string
	QuizLength          int
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
			PipelineLogPath:    getEnv("PIPELINE_LOG_PATH", "logs/tutor_pipeline.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			MetricsNamespace:   getEnv("METRICS_NAMESPACE", "tutor"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
			LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
			GeneratorTimeout:   getEnvAsDuration("GENERATOR_TIMEOUT", 60*time.Second),
		},
		Tutor: TutorConfig{
			ShortTermWindow:     getEnvAsInt("SHORT_TERM_WINDOW", 25),
			LongTermTopK:        getEnvAsInt("LONG_TERM_TOP_K", 5),
			ReferenceTopK:       getEnvAsInt("REFERENCE_TOP_K", 3),
			MemoryCollection:    getEnv("MEMORY_COLLECTION", "long_term_memory"),
			ReferenceCollection: getEnv("REFERENCE_COLLECTION", "lesson_references"),
			ParallelRetrieval:   getEnvAsBool("PARALLEL_RETRIEVAL", false),
			ConversationBackend: getEnv("CONVERSATION_BACKEND", "postgres"),
			SemanticBackend:     getEnv("SEMANTIC_BACKEND", "pgvector"),
			WeaviateURL:         getEnv("WEAVIATE_URL", "http://localhost:8080"),
			IngestTopic:         getEnv("REFERENCE_INGEST_TOPIC", "INGEST_REFERENCE"),
			QuizLength:          getEnvAsInt("QUIZ_LENGTH", 5),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-tutor-backend"),
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
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
