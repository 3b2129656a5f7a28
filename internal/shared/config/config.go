package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	defaultGeminiModel = "gemini-1.5-pro"
)

// Config holds application configuration.
type Config struct {
	Port                string
	Env                 string
	CORSAllowOrigin     []string
	DatabaseURL         string
	LLMProvider         string
	LLMModel            string
	GeminiAPIKey        string
	OpenAIAPIKey        string
	LLMTimeout          time.Duration
	SpoolDir            string
	LogFormat           string
	UploadRatePerMinute float64
	UploadRateBurst     int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	provider := normalizeProvider(getEnv("LLM_PROVIDER", ProviderGemini))

	model := strings.TrimSpace(os.Getenv("LLM_MODEL"))
	if model == "" && provider == ProviderGemini {
		model = defaultGeminiModel
	}

	logFormat := "json"
	if env == "dev" || env == "local" {
		logFormat = "console"
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 env,
		CORSAllowOrigin:     splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		LLMProvider:         provider,
		LLMModel:            model,
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		LLMTimeout:          time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		SpoolDir:            getEnv("SPOOL_DIR", filepath.Join(os.TempDir(), "legal-uploads")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", logFormat)),
		UploadRatePerMinute: float64(getEnvInt("UPLOAD_RATE_PER_MINUTE", 10)),
		UploadRateBurst:     getEnvInt("UPLOAD_RATE_BURST", 5),
	}
}

// IsDevLike reports whether the environment is a local development one.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProviderOpenAI:
		return ProviderOpenAI
	case "none", "placeholder":
		return "none"
	default:
		return ProviderGemini
	}
}
