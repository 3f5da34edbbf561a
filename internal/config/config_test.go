package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load defaults ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Context.HotCacheTTL != 5*time.Minute {
		t.Fatalf("HotCacheTTL default = 5m, got %v", cfg.Context.HotCacheTTL)
	}
	if cfg.Context.RateLimitInterval != 30*time.Minute {
		t.Fatalf("RateLimitInterval default = 30m, got %v", cfg.Context.RateLimitInterval)
	}
	if cfg.Context.GateScope != GateScopeGlobal || cfg.Context.DropScope != DropScopeAll {
		t.Fatalf("scopes default to process-wide, got gate=%q drop=%q", cfg.Context.GateScope, cfg.Context.DropScope)
	}
	if cfg.Context.MaxMessageLength != 4096 {
		t.Fatalf("MaxMessageLength default = 4096, got %d", cfg.Context.MaxMessageLength)
	}
	if len(cfg.Context.AllowedUsers) != 0 {
		t.Fatalf("AllowedUsers default empty, got %v", cfg.Context.AllowedUsers)
	}
	if cfg.Completion.MaxTokens != 4000 || cfg.Completion.Temperature != 0.2 || cfg.Completion.Timeout != 0 {
		t.Fatalf("completion defaults unexpected: %+v", cfg.Completion)
	}
	if !cfg.HTTPEnabled || cfg.Telegram.Enabled {
		t.Fatalf("transport defaults unexpected: http=%v telegram=%v", cfg.HTTPEnabled, cfg.Telegram.Enabled)
	}
	if cfg.DBPath != "context.db" {
		t.Fatalf("DBPath default = context.db, got %q", cfg.DBPath)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("DB_PATH", "ctx.sqlite")

	t.Setenv("RATE_RPS", "x")      // -> default 2.0
	t.Setenv("RATE_BURST", "nope") // -> default 5

	t.Setenv("HOT_CACHE_TTL", "90s")
	t.Setenv("RATE_LIMIT_INTERVAL", "10m")
	t.Setenv("RATE_GATE_SCOPE", "USER")
	t.Setenv("CACHE_DROP_SCOPE", "user")
	t.Setenv("MAX_MESSAGE_LENGTH", "100")
	t.Setenv("ALLOWED_USERS", " 42, ,7 ")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://llm.local/v1/")
	t.Setenv("OPENAI_MODEL", "m1")
	t.Setenv("COMPLETION_TIMEOUT", "45s")

	t.Setenv("TELEGRAM_ENABLED", "true")
	t.Setenv("TG_API_KEY", "123:abc")
	t.Setenv("TELEGRAM_API_BASE", "http://tg.local/")

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DBPath != "ctx.sqlite" {
		t.Fatalf("db path unexpected: %q", cfg.DBPath)
	}
	if cfg.RateRPS != 2.0 || cfg.RateBurst != 5 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	want := ContextConfig{
		HotCacheTTL:       90 * time.Second,
		RateLimitInterval: 10 * time.Minute,
		GateScope:         GateScopeUser,
		DropScope:         DropScopeUser,
		MaxMessageLength:  100,
		AllowedUsers:      []int64{42, 7},
	}
	if !reflect.DeepEqual(cfg.Context, want) {
		t.Fatalf("context config = %+v, want %+v", cfg.Context, want)
	}

	if cfg.Completion.BaseURL != "http://llm.local/v1" || cfg.Completion.Model != "m1" ||
		cfg.Completion.APIKey != "sk-test" || cfg.Completion.Timeout != 45*time.Second {
		t.Fatalf("completion unexpected: %+v", cfg.Completion)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token != "123:abc" || cfg.Telegram.APIBase != "http://tg.local" {
		t.Fatalf("telegram unexpected: %+v", cfg.Telegram)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		env    map[string]string
		substr string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"ttl zero", map[string]string{"HOT_CACHE_TTL": "0s"}, "HOT_CACHE_TTL"},
		{"interval zero", map[string]string{"RATE_LIMIT_INTERVAL": "0s"}, "RATE_LIMIT_INTERVAL"},
		{"bad gate scope", map[string]string{"RATE_GATE_SCOPE": "chat"}, "RATE_GATE_SCOPE"},
		{"bad drop scope", map[string]string{"CACHE_DROP_SCOPE": "none"}, "CACHE_DROP_SCOPE"},
		{"max message length", map[string]string{"MAX_MESSAGE_LENGTH": "0"}, "MAX_MESSAGE_LENGTH"},
		{"bad allowlist", map[string]string{"ALLOWED_USERS": "1,two"}, "ALLOWED_USERS"},
		{"max tokens", map[string]string{"OPENAI_MAX_TOKENS": "0"}, "OPENAI_MAX_TOKENS"},
		{"temperature", map[string]string{"OPENAI_TEMPERATURE": "3"}, "OPENAI_TEMPERATURE"},
		{"completion timeout", map[string]string{"COMPLETION_TIMEOUT": "-1s"}, "COMPLETION_TIMEOUT"},
		{"telegram without token", map[string]string{"TELEGRAM_ENABLED": "1"}, "TG_API_KEY"},
		{"send rps", map[string]string{"TELEGRAM_SEND_RPS": "0"}, "TELEGRAM_SEND_RPS"},
		{"no transport", map[string]string{"HTTP_ENABLED": "false"}, "at least one"},
		{"otel sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("expected error containing %q, got: %v", tc.substr, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_Fallbacks(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "soon")

	if got := getenv("X_EMPTY", "def"); got != "def" {
		t.Fatalf("getenv empty -> %q", got)
	}
	if got := getbool("X_BOOL", true); !got {
		t.Fatalf("getbool unparseable should return default")
	}
	if got := getdur("X_DUR", time.Second); got != time.Second {
		t.Fatalf("getdur unparseable -> %v", got)
	}
}

func TestParseUserIDs(t *testing.T) {
	ids, err := parseUserIDs("")
	if err != nil || ids != nil {
		t.Fatalf("empty -> %v, %v", ids, err)
	}
	ids, err = parseUserIDs("1, 2,3")
	if err != nil || !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Fatalf("parse -> %v, %v", ids, err)
	}
	if _, err := parseUserIDs("1,x"); err == nil {
		t.Fatalf("expected error for malformed id")
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"  ":       "/",
		"api":      "/api",
		"/api/":    "/api",
		"/api/v1/": "/api/v1",
		"/":        "/",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}
