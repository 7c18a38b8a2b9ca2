package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	StoreBackend  string
	VisitorsFile  string
	DatabaseURL   string
	RedisURL      string
	MongoURI      string
	MongoDatabase string
	StoreTimeout  time.Duration

	TelegramToken       string
	TelegramAPIEndpoint string
	ChatIDs             []int64
	NotifyTimeout       time.Duration

	GeoIPCityDB string
	GeoIPASNDB  string
	IPInfoToken string
	GeoCacheTTL time.Duration
	IPAPIURL    string
	IPInfoURL   string
	IPWhoisURL  string

	MismatchConfidence int
	ScoringConfigPath  string
	SkipBots           bool

	RateLimitPerHour int
	// TrustProxyHeaders lets forwarded headers rewrite the connection address
	TrustProxyHeaders bool
	AdminJWTSecret    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	chatIDs, err := parseChatIDs(getEnv("CHAT_IDS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "production"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "*")),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getIntEnv("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getIntEnv("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getIntEnv("LOG_MAX_AGE_DAYS", 30),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreFile)),
		VisitorsFile:  getEnv("VISITORS_FILE", "visitors.json"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "apgrhost"),
		StoreTimeout:  getDurationEnv("STORE_TIMEOUT", 3*time.Second),

		TelegramToken:       getEnv("TELEGRAM_TOKEN", ""),
		TelegramAPIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
		ChatIDs:             chatIDs,
		NotifyTimeout:       getDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),

		GeoIPCityDB: getEnv("GEOIP_CITY_DB", ""),
		GeoIPASNDB:  getEnv("GEOIP_ASN_DB", ""),
		IPInfoToken: getEnv("IPINFO_TOKEN", ""),
		GeoCacheTTL: getDurationEnv("GEO_CACHE_TTL", 24*time.Hour),
		IPAPIURL:    getEnv("IPAPI_URL", ""),
		IPInfoURL:   getEnv("IPINFO_URL", ""),
		IPWhoisURL:  getEnv("IPWHOIS_URL", ""),

		MismatchConfidence: getIntEnv("MISMATCH_CONFIDENCE", 60),
		ScoringConfigPath:  getEnv("SCORING_CONFIG", ""),
		SkipBots:           getBoolEnv("SKIP_BOTS", true),

		RateLimitPerHour:  getIntEnv("RATE_LIMIT_PER_HOUR", 60),
		TrustProxyHeaders: getBoolEnv("TRUST_PROXY_HEADERS", true),
		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later at wiring time
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("STORE_BACKEND=redis requires REDIS_URL")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("STORE_BACKEND=mongo requires MONGODB_URI")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.MismatchConfidence < 0 || c.MismatchConfidence > 99 {
		return fmt.Errorf("MISMATCH_CONFIDENCE must be within [0,99], got %d", c.MismatchConfidence)
	}

	if c.RateLimitPerHour < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_HOUR must not be negative, got %d", c.RateLimitPerHour)
	}

	return nil
}

// IsDevelopment reports whether the service runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "local"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseChatIDs parses a comma-separated list of numeric Telegram chat ids
func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range parseOrigins(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in CHAT_IDS: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv accepts Go durations ("3s") or plain seconds ("3")
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
