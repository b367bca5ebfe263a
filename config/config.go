package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	AI       AIConfig
	Credits  CreditsConfig
	Storage  StorageConfig
	App      AppConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	// DSN for the gallery pool (pgx) and the credit ledger (lib/pq).
	// Empty disables both.
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	DatabaseURL     string
	// ProfilePollInterval is how often the realtime database is polled
	// for profile changes (the admin SDK has no listeners).
	ProfilePollInterval time.Duration
}

type AIConfig struct {
	GeminiAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	DefaultModel    string
	ModelTiers      []string
	Temperature     float32
	MaxOutputTokens int
	RetryBackoff    time.Duration
	MaxRetries      int
	RequestTimeout  time.Duration
	HistoryWindow   int
	RateLimit       float64
	RateBurst       int
}

type CreditsConfig struct {
	DefaultPlan string
	PlansFile   string
	TimeZone    string
	SweepSpec   string
}

type StorageConfig struct {
	Bucket        string
	Region        string
	PublicBaseURL string
	MaxUploadSize int64
}

type AppConfig struct {
	ServiceName string
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DB_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath:     getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			ProjectID:           getEnv("FIREBASE_PROJECT_ID", ""),
			DatabaseURL:         getEnv("FIREBASE_DATABASE_URL", ""),
			ProfilePollInterval: getEnvAsDuration("FIREBASE_PROFILE_POLL_INTERVAL", 3*time.Second),
		},
		AI: AIConfig{
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
			DefaultModel:    getEnv("AI_DEFAULT_MODEL", "gemini-2.5-pro"),
			ModelTiers:      getEnvAsList("AI_MODEL_TIERS", []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite"}),
			Temperature:     float32(getEnvAsFloat("AI_TEMPERATURE", 0.7)),
			MaxOutputTokens: getEnvAsInt("AI_MAX_OUTPUT_TOKENS", 65536),
			RetryBackoff:    getEnvAsDuration("AI_RETRY_BACKOFF", time.Second),
			MaxRetries:      getEnvAsInt("AI_MAX_RETRIES", 2),
			RequestTimeout:  getEnvAsDuration("AI_REQUEST_TIMEOUT", 3*time.Minute),
			HistoryWindow:   getEnvAsInt("AI_HISTORY_WINDOW", 10),
			RateLimit:       getEnvAsFloat("AI_RATE_LIMIT", 2),
			RateBurst:       getEnvAsInt("AI_RATE_BURST", 4),
		},
		Credits: CreditsConfig{
			DefaultPlan: getEnv("DEFAULT_PLAN", "free"),
			PlansFile:   getEnv("PLANS_FILE", "config/plans.yaml"),
			TimeZone:    getEnv("CREDITS_TIME_ZONE", "UTC"),
			SweepSpec:   getEnv("CREDITS_SWEEP_SPEC", "0 0 0 * * *"),
		},
		Storage: StorageConfig{
			Bucket:        getEnv("S3_BUCKET", ""),
			Region:        getEnv("S3_REGION", "us-east-1"),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
			MaxUploadSize: getEnvAsInt64("S3_MAX_UPLOAD_SIZE", 5<<20),
		},
		App: AppConfig{
			ServiceName: getEnv("SERVICE_NAME", "sitecraft-backend"),
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if len(c.AI.ModelTiers) == 0 {
		return fmt.Errorf("AI_MODEL_TIERS must list at least one model")
	}

	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("AI_MAX_RETRIES must not be negative")
	}

	if _, err := time.LoadLocation(c.Credits.TimeZone); err != nil {
		return fmt.Errorf("CREDITS_TIME_ZONE: %w", err)
	}

	return nil
}

// Location returns the time zone used to compute refill dates.
func (c CreditsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	out := make([]string, 0, 4)
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
