package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	LogEncoding string

	CORSAllowOrigins []string
	// SubmitRate and SubmitBurst bound analysis submissions per client IP (per second).
	SubmitRate  float64
	SubmitBurst int

	JobConcurrency    int
	JobTimeout        time.Duration
	ProgressInterval  time.Duration
	ProgressMaxIdle   int
	ProgressRetention time.Duration
	MaxUploadBytes    int64

	MonthlyCostLimit     float64
	MonthlyAnalysisLimit int

	Providers ProviderConfig
}

// ProviderConfig carries credentials, endpoints and models for every backend.
// An empty key leaves that backend disabled.
type ProviderConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string

	XAIAPIKey  string
	XAIBaseURL string
	XAIModel   string

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	OpenAIExcellenceModel string
	OpenAISourceModel     string
	OpenAIImageModel      string

	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string

	PerplexityAPIKey  string
	PerplexityBaseURL string
	PerplexityModel   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:        getEnv("PORT", "8000"),
		Env:         env,
		DatabaseURL: dbURL,
		RedisURL:    os.Getenv("REDIS_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogEncoding: getEnv("LOG_ENCODING", "json"),

		CORSAllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGIN", "http://localhost:3000,http://localhost:5173")),
		SubmitRate:       getEnvFloat("SUBMIT_RATE_PER_SEC", 0.2),
		SubmitBurst:      getEnvInt("SUBMIT_BURST", 5),

		JobConcurrency:    getEnvInt("JOB_CONCURRENCY", 3),
		JobTimeout:        getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
		ProgressInterval:  getEnvDuration("PROGRESS_HEARTBEAT", time.Second),
		ProgressMaxIdle:   getEnvInt("PROGRESS_MAX_IDLE", 300),
		ProgressRetention: getEnvDuration("PROGRESS_RETENTION", 10*time.Minute),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 50*1024*1024)),

		MonthlyCostLimit:     getEnvFloat("USAGE_MONTHLY_COST_LIMIT", 50.0),
		MonthlyAnalysisLimit: getEnvInt("USAGE_MONTHLY_ANALYSIS_LIMIT", 100),

		Providers: ProviderConfig{
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-opus-4-1-20250805"),
			AnthropicURL:    getEnv("ANTHROPIC_API_URL", "https://api.anthropic.com/v1/messages"),

			XAIAPIKey:  os.Getenv("XAI_API_KEY"),
			XAIBaseURL: getEnv("XAI_BASE_URL", "https://api.x.ai/v1"),
			XAIModel:   getEnv("XAI_MODEL", "grok-4-latest"),

			OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
			OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-5"),
			OpenAIExcellenceModel: getEnv("OPENAI_EXCELLENCE_MODEL", "gpt-5"),
			OpenAISourceModel:     getEnv("OPENAI_SOURCE_MODEL", "gpt-4o"),
			OpenAIImageModel:      getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),

			DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
			DeepSeekBaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
			DeepSeekModel:   getEnv("DEEPSEEK_MODEL", "deepseek-reasoner"),

			PerplexityAPIKey:  os.Getenv("PERPLEXITY_API_KEY"),
			PerplexityBaseURL: getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
			PerplexityModel:   getEnv("PERPLEXITY_MODEL", "sonar"),
		},
	}
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
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		log.Printf("config %s invalid float %q, using %v", key, raw, def)
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
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

// IsDevLike reports whether env allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}
