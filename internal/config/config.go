package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port           int
	LogLevel       string
	AllowedOrigins []string // origens aceitas no websocket; vazio = qualquer uma

	// External services
	ExpenseAPIURL string // vazio = somente o store local (seed no boot)
	ChatAPIURL    string // backend conversacional (POST /chat)

	// HTTP client
	HTTPTimeout   time.Duration
	StreamTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Session storage (vazio = memória)
	SessionDBPath string

	// Analytics
	TrendWindowDays   int
	TrendHorizonDays  int
	BudgetBufferRatio float64

	// Rate limit do envio de chat, por IP
	ChatRatePerMinute int
	ChatRateBurst     int
}

var defaults = map[string]any{
	"PORT":      8080,
	"LOG_LEVEL": "info",

	"ALLOWED_ORIGINS": "",

	"EXPENSE_API_URL": "",
	"CHAT_API_URL":    "http://localhost:8090",

	"HTTP_TIMEOUT":   10 * time.Second,
	"STREAM_TIMEOUT": 2 * time.Minute,

	"MAX_RETRIES":     0,
	"INITIAL_BACKOFF": 100 * time.Millisecond,
	"MAX_CONCURRENCY": 50,

	"CACHE_TTL": 30 * time.Second,

	"OTEL_EXPORTER_OTLP_ENDPOINT": "",

	"SESSION_DB_PATH": "",

	"TREND_WINDOW_DAYS":   12,
	"TREND_HORIZON_DAYS":  5,
	"BUDGET_BUFFER_RATIO": 1.10,

	"CHAT_RATE_PER_MINUTE": 30,
	"CHAT_RATE_BURST":      5,
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return load(viper.New())
}

func load(v *viper.Viper) *Config {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		ExpenseAPIURL: strings.TrimRight(v.GetString("EXPENSE_API_URL"), "/"),
		ChatAPIURL:    strings.TrimRight(v.GetString("CHAT_API_URL"), "/"),

		HTTPTimeout:   v.GetDuration("HTTP_TIMEOUT"),
		StreamTimeout: v.GetDuration("STREAM_TIMEOUT"),

		MaxRetries:     max(0, v.GetInt("MAX_RETRIES")),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),
		MaxConcurrency: max(1, v.GetInt("MAX_CONCURRENCY")),

		CacheTTL: v.GetDuration("CACHE_TTL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		SessionDBPath: v.GetString("SESSION_DB_PATH"),

		TrendWindowDays:   v.GetInt("TREND_WINDOW_DAYS"),
		TrendHorizonDays:  v.GetInt("TREND_HORIZON_DAYS"),
		BudgetBufferRatio: v.GetFloat64("BUDGET_BUFFER_RATIO"),

		ChatRatePerMinute: v.GetInt("CHAT_RATE_PER_MINUTE"),
		ChatRateBurst:     v.GetInt("CHAT_RATE_BURST"),
	}
}

// splitList parses a comma separated env value, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
