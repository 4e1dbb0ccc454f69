// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the mail and chat credentials, the
// completion model, scan cadence, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "inbox-assistant")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// OpenAIConfig defines the completion backend settings.
type OpenAIConfig struct {
	APIKey  string        // OPENAI_API_KEY (required)
	Model   string        // OPENAI_MODEL
	Timeout time.Duration // OPENAI_TIMEOUT per completion call
}

// GmailConfig defines the mailbox the assistant watches.
type GmailConfig struct {
	ClientID     string // GMAIL_CLIENT_ID (required)
	ClientSecret string // GMAIL_CLIENT_SECRET (required)
	TokenJSON    string // GMAIL_TOKEN_JSON seed; refreshed copies live in the store
	UserEmail    string // GMAIL_USER_EMAIL (required), the owner's address
}

// SlackConfig defines the workspace surface: the bot identity and what it
// watches.
type SlackConfig struct {
	BotToken   string   // SLACK_BOT_TOKEN (required, xoxb-)
	AppToken   string   // SLACK_APP_TOKEN (required, xapp-, Socket Mode)
	UserID     string   // SLACK_USER_ID (required), the owner's member id
	ChannelIDs []string // SLACK_CHANNEL_IDS, monitored beyond DMs (CSV)
}

// PersonaConfig describes the owner on whose behalf drafts are written.
type PersonaConfig struct {
	Name         string // PERSONA_NAME
	Role         string // PERSONA_ROLE
	Company      string // PERSONA_COMPANY
	CompanyBlurb string // PERSONA_COMPANY_BLURB
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath string // SQLite path

	// Backends
	OpenAI OpenAIConfig
	Gmail  GmailConfig
	Slack  SlackConfig

	// Persona
	Persona PersonaConfig

	// Cadence
	ScanInterval         time.Duration // EMAIL_SCAN_INTERVAL between mailbox polls
	ScanBatch            int           // SCAN_BATCH max messages per cycle
	DraftTTL             time.Duration // DRAFT_TTL before pending drafts expire
	ExpiryInterval       time.Duration // EXPIRY_INTERVAL between expiry sweeps
	VoiceRebuildInterval time.Duration // VOICE_REBUILD_INTERVAL between profile rebuilds
	VoiceSampleLimit     int64         // VOICE_SAMPLE_LIMIT sent emails per rebuild

	// External draft endpoint
	ExternalDraftSecret string // API_SECRET; empty disables the endpoint

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
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
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "data/assistant.db"),

		// Backends
		OpenAI: OpenAIConfig{
			APIKey:  getenv("OPENAI_API_KEY", ""),
			Model:   getenv("OPENAI_MODEL", "gpt-4o"),
			Timeout: getdur("OPENAI_TIMEOUT", 60*time.Second),
		},
		Gmail: GmailConfig{
			ClientID:     getenv("GMAIL_CLIENT_ID", ""),
			ClientSecret: getenv("GMAIL_CLIENT_SECRET", ""),
			TokenJSON:    getenv("GMAIL_TOKEN_JSON", ""),
			UserEmail:    getenv("GMAIL_USER_EMAIL", ""),
		},
		Slack: SlackConfig{
			BotToken:   getenv("SLACK_BOT_TOKEN", ""),
			AppToken:   getenv("SLACK_APP_TOKEN", ""),
			UserID:     getenv("SLACK_USER_ID", ""),
			ChannelIDs: splitCSV(getenv("SLACK_CHANNEL_IDS", "")),
		},

		// Persona
		Persona: PersonaConfig{
			Name:         getenv("PERSONA_NAME", "Sarah Madden"),
			Role:         getenv("PERSONA_ROLE", "Head of Investor Partnerships"),
			Company:      getenv("PERSONA_COMPANY", "Profound"),
			CompanyBlurb: getenv("PERSONA_COMPANY_BLURB", ""),
		},

		// Cadence
		ScanInterval:         getdur("EMAIL_SCAN_INTERVAL", 5*time.Minute),
		ScanBatch:            getint("SCAN_BATCH", 20),
		DraftTTL:             getdur("DRAFT_TTL", 72*time.Hour),
		ExpiryInterval:       getdur("EXPIRY_INTERVAL", time.Hour),
		VoiceRebuildInterval: getdur("VOICE_REBUILD_INTERVAL", 24*time.Hour),
		VoiceSampleLimit:     int64(getint("VOICE_SAMPLE_LIMIT", 200)),

		// External draft endpoint
		ExternalDraftSecret: getenv("API_SECRET", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "inbox-assistant"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

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
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return cfg, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.OpenAI.Timeout <= 0 {
		return cfg, errors.New("OPENAI_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Gmail.ClientID) == "" || strings.TrimSpace(cfg.Gmail.ClientSecret) == "" {
		return cfg, errors.New("GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET are required")
	}
	if strings.TrimSpace(cfg.Gmail.UserEmail) == "" {
		return cfg, errors.New("GMAIL_USER_EMAIL is required")
	}
	if strings.TrimSpace(cfg.Slack.BotToken) == "" || strings.TrimSpace(cfg.Slack.AppToken) == "" {
		return cfg, errors.New("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")
	}
	if strings.TrimSpace(cfg.Slack.UserID) == "" {
		return cfg, errors.New("SLACK_USER_ID is required")
	}
	if cfg.ScanInterval <= 0 {
		return cfg, errors.New("EMAIL_SCAN_INTERVAL must be > 0")
	}
	if cfg.ScanBatch < 1 {
		return cfg, errors.New("SCAN_BATCH must be >= 1")
	}
	if cfg.DraftTTL <= 0 {
		return cfg, errors.New("DRAFT_TTL must be > 0")
	}
	if cfg.VoiceSampleLimit < 1 {
		return cfg, errors.New("VOICE_SAMPLE_LIMIT must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// OwnerDomain returns the domain part of the owner's email address, used to
// tag same-company correspondents as internal.
func (c Config) OwnerDomain() string {
	if i := strings.LastIndex(c.Gmail.UserEmail, "@"); i >= 0 {
		return c.Gmail.UserEmail[i+1:]
	}
	return ""
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
