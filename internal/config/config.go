package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type Config struct {
	WebAddr  string
	LogLevel string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	PreferIPv4    bool
	HTTPTimeout   time.Duration
	ProviderRPS   float64
	ProviderBurst int

	SettingsTTL       time.Duration
	StalePending      time.Duration
	ReconcileInterval time.Duration

	GeminiBaseURL    string
	GeminiAPIVersion string

	LeonardoPoll    time.Duration
	LeonardoTimeout time.Duration
	FalTimeout      time.Duration

	TelegramToken  string
	TelegramChatID int64

	RedisAddr            string
	RedisSettingsChannel string
}

func Load() (Config, error) {
	cfg := Config{
		WebAddr:              getEnv("WEB_ADDR", ":8080"),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		SQLitePath:           getEnv("SQLITE_PATH", "static-ads.db"),
		PreferIPv4:           getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:          time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		ProviderRPS:          getEnvFloat("PROVIDER_RPS", 0),
		ProviderBurst:        getEnvInt("PROVIDER_BURST", 2),
		SettingsTTL:          time.Duration(getEnvInt("SETTINGS_TTL_SECONDS", 30)) * time.Second,
		StalePending:         time.Duration(getEnvInt("STALE_PENDING_MINUTES", 15)) * time.Minute,
		ReconcileInterval:    time.Duration(getEnvInt("RECONCILE_INTERVAL_SECONDS", 60)) * time.Second,
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIVersion:     getEnv("GEMINI_API_VERSION", "v1beta"),
		LeonardoPoll:         time.Duration(getEnvInt("LEONARDO_POLL_SECONDS", 3)) * time.Second,
		LeonardoTimeout:      time.Duration(getEnvInt("LEONARDO_TIMEOUT_SECONDS", 120)) * time.Second,
		FalTimeout:           time.Duration(getEnvInt("FAL_TIMEOUT_SECONDS", 120)) * time.Second,
		TelegramToken:        strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisSettingsChannel: getEnv("REDIS_SETTINGS_CHANNEL", "settings:invalidate"),
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	switch cfg.StoreDriver {
	case StorePostgres:
		cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = postgresURL()
		}
	case StoreSQLite, StoreMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %s, %s or %s, got %q", StorePostgres, StoreSQLite, StoreMemory, cfg.StoreDriver)
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.ProviderRPS < 0 {
		cfg.ProviderRPS = 0
	}
	if cfg.ProviderBurst < 1 {
		cfg.ProviderBurst = 1
	}
	if cfg.SettingsTTL <= 0 {
		cfg.SettingsTTL = 30 * time.Second
	}
	if cfg.StalePending <= 0 {
		cfg.StalePending = 15 * time.Minute
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = 60 * time.Second
	}
	if cfg.LeonardoPoll <= 0 {
		cfg.LeonardoPoll = 3 * time.Second
	}
	if cfg.LeonardoTimeout <= 0 {
		cfg.LeonardoTimeout = 120 * time.Second
	}
	if cfg.FalTimeout <= 0 {
		cfg.FalTimeout = 120 * time.Second
	}

	return cfg, nil
}

func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("DB_USER", "postgres"), os.Getenv("DB_PASSWORD")),
		Host:     getEnv("DB_HOST", "localhost") + ":" + getEnv("DB_PORT", "5432"),
		Path:     "/" + getEnv("DB_NAME", "static_ads"),
		RawQuery: "sslmode=" + getEnv("DB_SSLMODE", "disable"),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
