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
	Paths     PathsConfig
	Auth      AuthConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	DevMode            bool
	SessionTTL         time.Duration
}

type PathsConfig struct {
	ManifestPath    string
	VectorStoreDir  string
	InstructionsDir string
	PdfDataDir      string
}

type AuthConfig struct {
	JWTSecret       string
	HubBaseURL      string
	HubClientID     string
	HubClientSecret string
}

type AIConfig struct {
	LLMProvider       string // "gemini" or "ollama"
	LLMModel          string
	GeminiApiKey      string
	EmbeddingProvider string // "gemini", "ollama" or "jina"
	EmbeddingModel    string
	OllamaBaseURL     string
	JinaApiKey        string
}

type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "5001"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:5001"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			DevMode:            getEnvAsBool("DEV_MODE", false),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", 1*time.Hour),
		},
		Paths: PathsConfig{
			ManifestPath:    getEnv("MANIFEST_PATH", "documents_manifest.json"),
			VectorStoreDir:  getEnv("VECTOR_STORE_DIR", "static/vector_store"),
			InstructionsDir: getEnv("TEXT_INSTRUCTIONS_DIR", "static/text_instructions"),
			PdfDataDir:      getEnv("PDF_DATA_DIR", "static/data"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
			HubBaseURL:      getEnv("HUB_BASE_URL", "https://ai-hub.svrd.ru"),
			HubClientID:     getEnv("HUB_CLIENT_ID", ""),
			HubClientSecret: getEnv("HUB_CLIENT_SECRET", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:          getEnv("LLM_MODEL", "gemini-2.5-flash"),
			GeminiApiKey:      getEnv("GEMINI_API_KEY", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-004"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			JinaApiKey:        getEnv("JINA_API_KEY", ""),
		},
		Retrieval: RetrievalConfig{
			TopK:                getEnvAsInt("RETRIEVAL_TOP_K", 8),
			SimilarityThreshold: getEnvAsFloat("RETRIEVAL_THRESHOLD", 0.4),
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
