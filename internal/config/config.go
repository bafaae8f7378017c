package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	ServerPort string
	Debug      bool

	// Database
	DatabaseType   string // sqlite, postgres, pgx, mysql
	DatabasePath   string
	DatabaseURL    string
	MigrationsPath string // empty uses the embedded migrations

	// Public URLs used to build absolute profile image links
	BaseURL           string
	ProfileUploadPath string

	// Credentials
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	OTPTTL     time.Duration

	// Email (Amazon SES)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string

	// Realtime notification publishing (optional)
	RedisAddr     string
	RedisPassword string

	RateLimitPerMinute int
	CORSOrigins        []string
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		ServerPort:         getEnv("PORT", "8080"),
		Debug:              getEnvAsBool("DEBUG", false),
		DatabaseType:       getEnv("DB_TYPE", "sqlite"),
		DatabasePath:       getEnv("DB_PATH", "./kinship.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", ""),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		ProfileUploadPath:  getEnv("USER_PROFILE_UPLOAD_PATH", "uploads/profile"),
		JWTSecret:          getEnv("JWT_SECRET", "change-me"),
		TokenTTL:           getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
		BcryptCost:         getEnvAsInt("BCRYPT_COST", 10),
		OTPTTL:             getEnvAsDuration("OTP_TTL", 5*time.Minute),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		SESFromName:        getEnv("SES_FROM_NAME", "Kinship"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 20),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
