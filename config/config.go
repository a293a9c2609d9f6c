package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	JWTExpiryMin  int
	RefreshExpiry int
	RedisHost     string
	RedisPort     string
	RedisPassword string

	S3Bucket string
	S3Region string

	// Realtime tuning. The failed-call threshold is a product policy
	// knob, not a protocol constant, so it stays configurable.
	HeartbeatInterval   time.Duration
	OfflineTimeout      time.Duration
	OfflineGrace        time.Duration
	CallRingTimeout     time.Duration
	CallFailedThreshold time.Duration
	TokenScanInterval   time.Duration
	SessionLinger       time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "vibelink"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:  getEnvAsInt("JWT_EXPIRY_MIN", 60),
		RefreshExpiry: getEnvAsInt("REFRESH_EXPIRY_DAYS", 14),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		S3Bucket: getEnv("S3_BUCKET", "vibelink-uploads"),
		S3Region: getEnv("S3_REGION", "us-east-1"),

		HeartbeatInterval:   getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		OfflineTimeout:      getEnvAsDuration("OFFLINE_TIMEOUT", 60*time.Second),
		OfflineGrace:        getEnvAsDuration("OFFLINE_GRACE", 5*time.Second),
		CallRingTimeout:     getEnvAsDuration("CALL_RING_TIMEOUT", 45*time.Second),
		CallFailedThreshold: getEnvAsDuration("CALL_FAILED_THRESHOLD", 30*time.Second),
		TokenScanInterval:   getEnvAsDuration("TOKEN_SCAN_INTERVAL", 60*time.Second),
		SessionLinger:       getEnvAsDuration("SESSION_LINGER", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
