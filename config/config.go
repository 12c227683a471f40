package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	LogLevel    string

	// Quote cache
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration

	// Vendor stock API
	VendorBaseURL     string
	VendorAPIKey      string
	VendorTimeout     time.Duration
	VendorMaxRetries  int
	VendorMaxPages    int
	VendorMinInterval time.Duration

	// Stock refresh job
	RefreshInterval time.Duration

	// Purchase workflow
	PriceBandPercent      float64
	TradeExecutionEnabled bool

	// Report pipeline
	ReportSchedule       string
	ReportMaxAttempts    int
	ReportRetryBaseDelay time.Duration
	ReportRecipients     []string

	// Mail transport
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CacheTTL:             getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 15*time.Minute),

		VendorBaseURL:     getEnv("VENDOR_API_BASE_URL", "https://api.stockvendor.example.com"),
		VendorAPIKey:      getEnv("VENDOR_API_KEY", ""),
		VendorTimeout:     getEnvDuration("VENDOR_API_TIMEOUT", 30*time.Second),
		VendorMaxRetries:  getEnvInt("VENDOR_API_MAX_RETRIES", 3),
		VendorMaxPages:    getEnvInt("VENDOR_API_MAX_PAGES", 20),
		VendorMinInterval: getEnvDuration("VENDOR_API_MIN_INTERVAL", 0),

		RefreshInterval: getEnvDuration("STOCK_REFRESH_INTERVAL", 5*time.Minute),

		PriceBandPercent:      getEnvFloat("PRICE_BAND_PERCENT", 2.0),
		TradeExecutionEnabled: getEnvBool("TRADE_EXECUTION_ENABLED", false),

		ReportSchedule:       getEnv("REPORT_SCHEDULE", "0 2 * * *"),
		ReportMaxAttempts:    getEnvInt("REPORT_MAX_ATTEMPTS", 3),
		ReportRetryBaseDelay: getEnvDuration("REPORT_RETRY_BASE_DELAY", 500*time.Millisecond),
		ReportRecipients:     getEnvList("REPORT_RECIPIENTS"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %v", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %v", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %v", key, value, fallback)
		return fallback
	}
	return parsed
}

// getEnvList parses a comma-separated value, dropping empty entries
func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
