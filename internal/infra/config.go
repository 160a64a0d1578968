package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	JWTSecret         string
	SchedulerToken    string
	RedisURL          string
	NudgeChannel      string
	PlanConfigPath    string
	GeoIPDBPath       string
	DefaultLocale     string
	MigrateOnStart    bool
	ProductEndpoint   string
	TryonEndpoint     string
	FreestyleEndpoint string
	WorkflowEndpoint  string
	VideoEndpoint     string
	BackendAPIKey     string
	BackendTimeout    time.Duration
	SchedulerBudget   time.Duration
	SchedulerTick     time.Duration
	MaxJobRuntime     time.Duration
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	// Optional .env files; absence is not an error.
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SchedulerToken:    os.Getenv("SCHEDULER_TOKEN"),
		RedisURL:          os.Getenv("REDIS_URL"),
		NudgeChannel:      getEnv("NUDGE_CHANNEL", "genqueue:wake"),
		PlanConfigPath:    os.Getenv("PLAN_CONFIG_PATH"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:     getEnv("DEFAULT_LOCALE", "en"),
		MigrateOnStart:    getEnvBool("MIGRATE_ON_START", false),
		ProductEndpoint:   os.Getenv("PRODUCT_BACKEND_URL"),
		TryonEndpoint:     os.Getenv("TRYON_BACKEND_URL"),
		FreestyleEndpoint: os.Getenv("FREESTYLE_BACKEND_URL"),
		WorkflowEndpoint:  os.Getenv("WORKFLOW_BACKEND_URL"),
		VideoEndpoint:     os.Getenv("VIDEO_BACKEND_URL"),
		BackendAPIKey:     os.Getenv("BACKEND_API_KEY"),
		BackendTimeout:    time.Second * time.Duration(getEnvInt("BACKEND_TIMEOUT_SECONDS", 60)),
		SchedulerBudget:   time.Second * time.Duration(getEnvInt("SCHEDULER_BUDGET_SECONDS", 100)),
		SchedulerTick:     time.Second * time.Duration(getEnvInt("SCHEDULER_TICK_SECONDS", 30)),
		MaxJobRuntime:     time.Second * time.Duration(getEnvInt("MAX_JOB_RUNTIME_SECONDS", 300)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// The worker must always have headroom to record an outcome after a
	// backend call, and a legitimately running call must never look stale.
	if cfg.BackendTimeout >= cfg.SchedulerBudget {
		return nil, fmt.Errorf("BACKEND_TIMEOUT_SECONDS must be below SCHEDULER_BUDGET_SECONDS")
	}
	if cfg.MaxJobRuntime <= cfg.BackendTimeout {
		return nil, fmt.Errorf("MAX_JOB_RUNTIME_SECONDS must exceed BACKEND_TIMEOUT_SECONDS")
	}

	return cfg, nil
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
