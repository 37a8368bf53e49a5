package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Storage
	DBPath    string
	UploadDir string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Models
	RoutingModel   string
	SelectionModel string
	AnswerModel    string

	// Tokenizer
	TokenizerEncoding string

	// Navigation
	TopMinTokens    int
	SubMinTokens    int
	MaxChunks       int
	PreviewTokens   int
	DefaultMaxDepth int

	// Answer synthesis
	AnswerTemperature float64

	// LLM retry
	LLMMaxRetries int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// CORS
	CORSOrigins []string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8000"),

		DBPath:    envOr("DB_PATH", "data/longdoc.db"),
		UploadDir: envOr("UPLOAD_DIR", "data/uploads"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		RoutingModel:   envOr("ROUTING_MODEL", "gpt-4.1"),
		SelectionModel: envOr("SELECTION_MODEL", "gpt-4.1-mini"),
		AnswerModel:    envOr("ANSWER_MODEL", "gpt-4o"),

		TokenizerEncoding: envOr("TOKENIZER_ENCODING", "o200k_base"),

		TopMinTokens:    envInt("TOP_MIN_TOKENS", 500),
		SubMinTokens:    envInt("SUB_MIN_TOKENS", 200),
		MaxChunks:       envInt("MAX_CHUNKS", 20),
		PreviewTokens:   envInt("PREVIEW_TOKENS", 900),
		DefaultMaxDepth: envInt("DEFAULT_MAX_DEPTH", 2),

		AnswerTemperature: envFloat("ANSWER_TEMPERATURE", 0.3),

		LLMMaxRetries: envInt("LLM_MAX_RETRIES", 3),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),
	}

	if cfg.TopMinTokens <= 0 {
		cfg.TopMinTokens = 500
	}
	if cfg.SubMinTokens <= 0 {
		cfg.SubMinTokens = 200
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 20
	}
	if cfg.PreviewTokens <= 0 {
		cfg.PreviewTokens = 900
	}
	if cfg.DefaultMaxDepth < 0 {
		cfg.DefaultMaxDepth = 0
	}
	if cfg.AnswerTemperature < 0 {
		cfg.AnswerTemperature = 0.3
	}
	if cfg.LLMMaxRetries <= 0 {
		cfg.LLMMaxRetries = 3
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
