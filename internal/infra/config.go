package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	AllowedOrigins []string
	StoragePath    string
	RenderPrefix   string
	CatalogPrefix  string
	DefaultLocale  string

	GeminiAPIKey      string
	GeminiVisionModel string
	GeminiImageModel  string
	GeminiBaseURL     string
	DashScopeAPIKey   string
	DashScopeBaseURL  string
	ModelConfigPath   string

	DBMaxConns      int
	DBMinConns      int
	WorkerCount     int
	JobPollInterval time.Duration
	JobMaxAttempts  int
	StaleClaimAfter time.Duration
	CallTimeout     time.Duration
	WaitTimeout     time.Duration
	PromptWordLimit int
	RenderQuality   int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		RenderPrefix:   getEnv("RENDER_PREFIX", "renders"),
		CatalogPrefix:  getEnv("CATALOG_PREFIX", "catalog"),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiVisionModel: getEnv("GEMINI_VISION_MODEL", "gemini-2.5-flash"),
		GeminiImageModel:  getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		DashScopeAPIKey:   os.Getenv("DASHSCOPE_API_KEY"),
		DashScopeBaseURL:  getEnv("DASHSCOPE_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		ModelConfigPath:   os.Getenv("MODEL_CONFIG_PATH"),

		DBMaxConns:      getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:      getEnvInt("DB_MIN_CONNS", 1),
		WorkerCount:     getEnvInt("WORKER_COUNT", 4),
		JobPollInterval: time.Second * time.Duration(getEnvInt("JOB_POLL_INTERVAL_SECONDS", 2)),
		JobMaxAttempts:  getEnvInt("JOB_MAX_ATTEMPTS", 3),
		StaleClaimAfter: time.Minute * time.Duration(getEnvInt("STALE_CLAIM_MINUTES", 15)),
		CallTimeout:     time.Second * time.Duration(getEnvInt("PROVIDER_CALL_TIMEOUT_SECONDS", 60)),
		WaitTimeout:     time.Second * time.Duration(getEnvInt("PROVIDER_WAIT_TIMEOUT_SECONDS", 300)),
		PromptWordLimit: getEnvInt("PROMPT_WORD_LIMIT", 120),
		RenderQuality:   getEnvInt("RENDER_JPEG_QUALITY", 85),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JobMaxAttempts < 1 {
		return nil, fmt.Errorf("JOB_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if cfg.DBMaxConns < 1 || cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
