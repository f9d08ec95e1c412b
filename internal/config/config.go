package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// Identity provider (GoTrue-style REST API).
	ProviderBaseURL    string
	ProviderAPIKey     string
	ProviderServiceKey string // admin endpoints
	ProviderTimeout    time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	// Optional shared OTP cache. Empty means in-process cache.
	RedisAddr     string
	RedisPassword string

	OTPTTL       time.Duration
	TOTPIssuer   string
	TOTPCryptKey string // 32-byte hex key for secret-at-rest encryption

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users           string
	Subscriptions   string
	UserOTPs        string
	TOTPPending     string
	TOTPCredentials string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:           getEnv("DYNAMO_TABLE_USERS", "users"),
			Subscriptions:   getEnv("DYNAMO_TABLE_SUBSCRIPTIONS", "subscriptions"),
			UserOTPs:        getEnv("DYNAMO_TABLE_USER_OTPS", "user_otps"),
			TOTPPending:     getEnv("DYNAMO_TABLE_TOTP_PENDING", "totp_pending"),
			TOTPCredentials: getEnv("DYNAMO_TABLE_TOTP_CREDENTIALS", "totp_credentials"),
		},

		ProviderBaseURL:    getEnv("PROVIDER_BASE_URL", "http://localhost:9999"),
		ProviderAPIKey:     getEnv("PROVIDER_API_KEY", ""),
		ProviderServiceKey: getEnv("PROVIDER_SERVICE_KEY", ""),
		ProviderTimeout:    getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OTPTTL:       getEnvDuration("OTP_TTL", 10*time.Minute),
		TOTPIssuer:   getEnv("TOTP_ISSUER", "identity-sync"),
		TOTPCryptKey: getEnv("TOTP_CRYPT_KEY", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
