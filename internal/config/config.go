package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// ClinicTimezone decides which calendar day "today" is for date guards
	// and month bucketing in reports.
	ClinicTimezone string
	TrendMonths    int

	SMSSenderNumber    string
	MessageDedupWindow time.Duration

	// SMSGatewayURL is the carrier relay; when empty sends are logged as dry runs.
	SMSGatewayURL         string
	SMSGatewayToken       string
	SMSGatewayFallbackURL string
	SMSGatewayTimeout     time.Duration

	TwilioAccountSID string
	TwilioAuthToken  string

	// CallbackDigestSchedule is a 5-field cron spec in ClinicTimezone; "off" disables the digest.
	CallbackDigestSchedule string

	ReportBucket        string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Asia/Seoul"),
		TrendMonths:    getEnvAsInt("TREND_MONTHS", 6),

		SMSSenderNumber:    getEnv("SMS_SENDER_NUMBER", ""),
		MessageDedupWindow: getEnvAsDuration("MESSAGE_DEDUP_WINDOW", 10*time.Second),

		SMSGatewayURL:         getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayToken:       getEnv("SMS_GATEWAY_TOKEN", ""),
		SMSGatewayFallbackURL: getEnv("SMS_GATEWAY_FALLBACK_URL", ""),
		SMSGatewayTimeout:     getEnvAsDuration("SMS_GATEWAY_TIMEOUT", 10*time.Second),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),

		CallbackDigestSchedule: getEnv("CALLBACK_DIGEST_SCHEDULE", "0 8 * * *"),

		ReportBucket:        getEnv("REPORT_BUCKET", ""),
		AWSRegion:           getEnv("AWS_REGION", "ap-northeast-2"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// Location resolves ClinicTimezone, falling back to UTC for unknown zones.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.ClinicTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
