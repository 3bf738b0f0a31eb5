package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App      AppConfig
	Telegram TelegramConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Stats    StatsConfig
	Admin    AdminConfig
	Logger   LoggerConfig
}

// AppConfig controls process level behavior.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// TelegramConfig holds transport credentials and routing identities.
type TelegramConfig struct {
	Token              string
	OperatorChatID     int64
	PollTimeoutSeconds int
}

// StorageConfig locates the durable ticket file.
type StorageConfig struct {
	TicketsFile string
}

// RedisConfig holds stats-cache connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StatsConfig configures the profile scraper.
type StatsConfig struct {
	BaseURL         string
	CacheTTLSeconds int
}

// AdminConfig configures the admin panel API.
type AdminConfig struct {
	Enabled               bool
	Host                  string
	Port                  string
	JWTSecret             string
	TokenTTLMinutes       int
	OperatorPasswordHash  string
	RequestTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}

	operatorChat, err := strconv.ParseInt(getEnv("OPERATOR_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATOR_CHAT_ID: %w", err)
	}
	if operatorChat == 0 {
		return nil, fmt.Errorf("OPERATOR_CHAT_ID not set")
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "iccup-support-bot"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		Telegram: TelegramConfig{
			Token:              token,
			OperatorChatID:     operatorChat,
			PollTimeoutSeconds: getEnvAsInt("TELEGRAM_POLL_TIMEOUT_SECONDS", 20),
		},
		Storage: StorageConfig{
			TicketsFile: getEnv("TICKETS_FILE", "tickets.json"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Stats: StatsConfig{
			BaseURL:         getEnv("STATS_BASE_URL", "https://iccup.com"),
			CacheTTLSeconds: getEnvAsInt("STATS_CACHE_TTL_SECONDS", 300),
		},
		Admin: AdminConfig{
			Enabled:               getEnvAsBool("ADMIN_ENABLED", true),
			Host:                  getEnv("ADMIN_HOST", "0.0.0.0"),
			Port:                  getEnv("ADMIN_PORT", "8080"),
			JWTSecret:             getEnv("ADMIN_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes:       getEnvAsInt("ADMIN_TOKEN_TTL_MINUTES", 60),
			OperatorPasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),
			RequestTimeoutSeconds: getEnvAsInt("ADMIN_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Addr returns the admin API bind address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AdminConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the stats cache TTL duration.
func (s StatsConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
