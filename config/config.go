package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string // empty disables warm-up and archiving
	HTTPAddr      string

	// Ingest
	ConsumerGroup string
	ConsumerName  string
	Symbols       []string
	RingSize      int
	PELInterval   time.Duration
	PELMinIdle    time.Duration

	// Warm-up and archive
	WarmupBars     int
	ArchiveCandles bool

	// Output
	PublishRate  float64 // analysis publishes per second per symbol
	PublishBurst int

	// Alerts
	AlertLog         bool
	AlertWebhookURL  string
	TelegramBotToken string
	TelegramChatID   string
	AlertMinScore    float64
	AlertOnHold      bool

	// Engine
	TuningFile      string
	AdvanceInterval time.Duration

	// Logging
	LogLevel     string
	LogFile      string
	LogMaxSizeMB int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first if present; real
// environment variables win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":9095"),

		ConsumerGroup: getEnv("CONSUMER_GROUP", "signalengine"),
		ConsumerName:  getEnv("CONSUMER_NAME", "worker-1"),
		Symbols:       parseList(getEnv("SUBSCRIBE_SYMBOLS", "")),
		RingSize:      getEnvInt("RING_SIZE", 8192),
		PELInterval:   getEnvDuration("PEL_RECLAIM_INTERVAL", 30*time.Second),
		PELMinIdle:    getEnvDuration("PEL_MIN_IDLE", time.Minute),

		WarmupBars:     getEnvInt("WARMUP_BARS", 500),
		ArchiveCandles: getEnvBool("ARCHIVE_CANDLES", true),

		PublishRate:  getEnvFloat("PUBLISH_RATE", 4),
		PublishBurst: getEnvInt("PUBLISH_BURST", 4),

		AlertLog:         getEnvBool("ALERT_LOG", false),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertMinScore:    getEnvFloat("ALERT_MIN_SCORE", 60),
		AlertOnHold:      getEnvBool("ALERT_ON_HOLD", false),

		TuningFile:      getEnv("TUNING_FILE", ""),
		AdvanceInterval: getEnvDuration("ADVANCE_INTERVAL", 30*time.Second),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
		LogMaxSizeMB: getEnvInt("LOG_MAX_SIZE_MB", 100),
	}
}

// parseList splits a comma-separated list, dropping blanks.
func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		slog.Warn("config: invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		slog.Warn("config: invalid number, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config: invalid bool, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config: invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
