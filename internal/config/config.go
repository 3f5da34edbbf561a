// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// context store, hot cache, rate gate, completion backend, transports, and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Scope values for the rate gate and the cache-drop operation.
const (
	GateScopeUser   = "user"
	GateScopeGlobal = "global"

	DropScopeUser = "user"
	DropScopeAll  = "all"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-context-relay")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ContextConfig tunes the two-tier context store.
type ContextConfig struct {
	HotCacheTTL       time.Duration // HOT_CACHE_TTL
	RateLimitInterval time.Duration // RATE_LIMIT_INTERVAL
	GateScope         string        // RATE_GATE_SCOPE: global (default) | user
	DropScope         string        // CACHE_DROP_SCOPE: all (default) | user
	MaxMessageLength  int           // MAX_MESSAGE_LENGTH (runes per outbound chunk)
	AllowedUsers      []int64       // ALLOWED_USERS
}

// CompletionConfig configures the OpenAI-compatible completion backend.
type CompletionConfig struct {
	APIKey      string        // OPENAI_API_KEY
	BaseURL     string        // OPENAI_BASE_URL
	Model       string        // OPENAI_MODEL
	MaxTokens   int           // OPENAI_MAX_TOKENS
	Temperature float64       // OPENAI_TEMPERATURE
	Timeout     time.Duration // COMPLETION_TIMEOUT (0 = no client timeout)
}

// TelegramConfig configures the Telegram long-poll transport.
type TelegramConfig struct {
	Enabled     bool          // TELEGRAM_ENABLED
	Token       string        // TG_API_KEY
	APIBase     string        // TELEGRAM_API_BASE
	PollTimeout time.Duration // TELEGRAM_POLL_TIMEOUT
	SendRPS     float64       // TELEGRAM_SEND_RPS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	HTTPEnabled       bool          // HTTP_ENABLED
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath string // SQLite path

	// Edge rate limiting (HTTP)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	CORS       CORSConfig
	Context    ContextConfig
	Completion CompletionConfig
	Telegram   TelegramConfig
	OTEL       OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		HTTPEnabled:       getbool("HTTP_ENABLED", true),
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 5*time.Minute),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath: getenv("DB_PATH", "context.db"),

		RateRPS:   getfloat("RATE_RPS", 2.0),
		RateBurst: getint("RATE_BURST", 5),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		Context: ContextConfig{
			HotCacheTTL:       getdur("HOT_CACHE_TTL", 5*time.Minute),
			RateLimitInterval: getdur("RATE_LIMIT_INTERVAL", 30*time.Minute),
			GateScope:         strings.ToLower(getenv("RATE_GATE_SCOPE", GateScopeGlobal)),
			DropScope:         strings.ToLower(getenv("CACHE_DROP_SCOPE", DropScopeAll)),
			MaxMessageLength:  getint("MAX_MESSAGE_LENGTH", 4096),
		},

		Completion: CompletionConfig{
			APIKey:      getenv("OPENAI_API_KEY", ""),
			BaseURL:     strings.TrimRight(getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Model:       getenv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:   getint("OPENAI_MAX_TOKENS", 4000),
			Temperature: getfloat("OPENAI_TEMPERATURE", 0.2),
			Timeout:     getdur("COMPLETION_TIMEOUT", 0),
		},

		Telegram: TelegramConfig{
			Enabled:     getbool("TELEGRAM_ENABLED", false),
			Token:       getenv("TG_API_KEY", ""),
			APIBase:     strings.TrimRight(getenv("TELEGRAM_API_BASE", "https://api.telegram.org"), "/"),
			PollTimeout: getdur("TELEGRAM_POLL_TIMEOUT", 30*time.Second),
			SendRPS:     getfloat("TELEGRAM_SEND_RPS", 20),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-context-relay"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	allowed, err := parseUserIDs(getenv("ALLOWED_USERS", ""))
	if err != nil {
		return cfg, err
	}
	cfg.Context.AllowedUsers = allowed

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Context.HotCacheTTL <= 0 {
		return cfg, errors.New("HOT_CACHE_TTL must be > 0")
	}
	if cfg.Context.RateLimitInterval <= 0 {
		return cfg, errors.New("RATE_LIMIT_INTERVAL must be > 0")
	}
	switch cfg.Context.GateScope {
	case GateScopeUser, GateScopeGlobal:
	default:
		return cfg, errors.New("RATE_GATE_SCOPE must be one of: user, global")
	}
	switch cfg.Context.DropScope {
	case DropScopeUser, DropScopeAll:
	default:
		return cfg, errors.New("CACHE_DROP_SCOPE must be one of: user, all")
	}
	if cfg.Context.MaxMessageLength < 1 {
		return cfg, errors.New("MAX_MESSAGE_LENGTH must be >= 1")
	}
	if cfg.Completion.MaxTokens < 1 {
		return cfg, errors.New("OPENAI_MAX_TOKENS must be >= 1")
	}
	if cfg.Completion.Temperature < 0 || cfg.Completion.Temperature > 2 {
		return cfg, errors.New("OPENAI_TEMPERATURE must be in [0,2]")
	}
	if cfg.Completion.Timeout < 0 {
		return cfg, errors.New("COMPLETION_TIMEOUT must be >= 0")
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		return cfg, errors.New("TG_API_KEY is required when TELEGRAM_ENABLED=true")
	}
	if cfg.Telegram.PollTimeout < 0 {
		return cfg, errors.New("TELEGRAM_POLL_TIMEOUT must be >= 0")
	}
	if cfg.Telegram.SendRPS <= 0 {
		return cfg, errors.New("TELEGRAM_SEND_RPS must be > 0")
	}
	if !cfg.HTTPEnabled && !cfg.Telegram.Enabled {
		return cfg, errors.New("at least one of HTTP_ENABLED or TELEGRAM_ENABLED must be true")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseUserIDs parses a comma-separated allowlist. Unlike the lenient getters,
// a malformed id fails the load instead of falling back.
func parseUserIDs(s string) ([]int64, error) {
	parts := splitCSV(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errors.New("ALLOWED_USERS must be a comma-separated list of integer user ids")
		}
		out = append(out, id)
	}
	return out, nil
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
