package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Extractor ExtractorConfig
	Parser    ParserConfig
	S3        S3Config
	Split     SplitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExtractorConfig controls how page text is pulled out of a document.
type ExtractorConfig struct {
	Reader        string `mapstructure:"reader"`
	PdftotextPath string `mapstructure:"pdftotext_path"`
	PageMarkers   bool   `mapstructure:"page_markers"`
	MaxPages      int    `mapstructure:"max_pages"`
}

// ParserProviderConfig holds settings for a single completion provider.
type ParserProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	BaseURL      string `mapstructure:"base_url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ParserConfig holds structured extraction settings.
type ParserConfig struct {
	Primary   ParserProviderConfig `mapstructure:"primary"`
	Secondary ParserProviderConfig `mapstructure:"secondary"`

	MaxOutputTokens    int `mapstructure:"max_output_tokens"`
	ContextWindow      int `mapstructure:"context_window"`
	TokenWarnThreshold int `mapstructure:"token_warn_threshold"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (p *ParserConfig) SecondaryConfig() *ParserProviderConfig {
	if p.Secondary.Provider != "" {
		return &p.Secondary
	}
	return nil
}

// S3Config holds AWS S3 settings for s3:// documents and export uploads.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// SplitConfig holds participant defaults and session retention.
type SplitConfig struct {
	ParticipantA string        `mapstructure:"participant_a"`
	ParticipantB string        `mapstructure:"participant_b"`
	Currency     string        `mapstructure:"currency"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	MaxSessions  int           `mapstructure:"max_sessions"`
}

// Load reads configuration from .env, the environment (SPLITTER_ prefix) and,
// when configFile is set, a YAML file.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SPLITTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Extractor defaults
	v.SetDefault("extractor.reader", "native")
	v.SetDefault("extractor.pdftotext_path", "pdftotext")
	v.SetDefault("extractor.page_markers", true)
	v.SetDefault("extractor.max_pages", 0)

	// Parser defaults
	v.SetDefault("parser.max_output_tokens", 2048)
	v.SetDefault("parser.context_window", 8192)
	v.SetDefault("parser.token_warn_threshold", 6000)
	v.SetDefault("parser.primary.provider", "openrouter")
	v.SetDefault("parser.primary.api_key", "")
	v.SetDefault("parser.primary.default_model", "openai/gpt-4o")
	v.SetDefault("parser.primary.base_url", "")
	v.SetDefault("parser.primary.max_retries", 2)
	v.SetDefault("parser.primary.timeout_secs", 120)
	v.SetDefault("parser.secondary.provider", "")
	v.SetDefault("parser.secondary.api_key", "")
	v.SetDefault("parser.secondary.default_model", "")
	v.SetDefault("parser.secondary.base_url", "")
	v.SetDefault("parser.secondary.max_retries", 2)
	v.SetDefault("parser.secondary.timeout_secs", 120)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")

	// Split defaults
	v.SetDefault("split.participant_a", "Person 1")
	v.SetDefault("split.participant_b", "Person 2")
	v.SetDefault("split.currency", "€")
	v.SetDefault("split.session_ttl", "24h")
	v.SetDefault("split.max_sessions", 1000)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "SPLITTER_SERVER_PORT",
		"server.read_timeout":            "SPLITTER_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "SPLITTER_SERVER_WRITE_TIMEOUT",
		"server.shutdown_timeout":        "SPLITTER_SERVER_SHUTDOWN_TIMEOUT",
		"server.environment":             "SPLITTER_SERVER_ENVIRONMENT",
		"server.max_upload_mb":           "SPLITTER_SERVER_MAX_UPLOAD_MB",
		"server.cors_origins":            "SPLITTER_SERVER_CORS_ORIGINS",
		"log.level":                      "SPLITTER_LOG_LEVEL",
		"log.format":                     "SPLITTER_LOG_FORMAT",
		"extractor.reader":               "SPLITTER_EXTRACTOR_READER",
		"extractor.pdftotext_path":       "SPLITTER_EXTRACTOR_PDFTOTEXT_PATH",
		"extractor.page_markers":         "SPLITTER_EXTRACTOR_PAGE_MARKERS",
		"extractor.max_pages":            "SPLITTER_EXTRACTOR_MAX_PAGES",
		"parser.max_output_tokens":       "SPLITTER_PARSER_MAX_OUTPUT_TOKENS",
		"parser.context_window":          "SPLITTER_PARSER_CONTEXT_WINDOW",
		"parser.token_warn_threshold":    "SPLITTER_PARSER_TOKEN_WARN_THRESHOLD",
		"parser.primary.provider":        "SPLITTER_PARSER_PRIMARY_PROVIDER",
		"parser.primary.api_key":         "SPLITTER_PARSER_PRIMARY_API_KEY",
		"parser.primary.default_model":   "SPLITTER_PARSER_PRIMARY_DEFAULT_MODEL",
		"parser.primary.base_url":        "SPLITTER_PARSER_PRIMARY_BASE_URL",
		"parser.primary.max_retries":     "SPLITTER_PARSER_PRIMARY_MAX_RETRIES",
		"parser.primary.timeout_secs":    "SPLITTER_PARSER_PRIMARY_TIMEOUT_SECS",
		"parser.secondary.provider":      "SPLITTER_PARSER_SECONDARY_PROVIDER",
		"parser.secondary.api_key":       "SPLITTER_PARSER_SECONDARY_API_KEY",
		"parser.secondary.default_model": "SPLITTER_PARSER_SECONDARY_DEFAULT_MODEL",
		"parser.secondary.base_url":      "SPLITTER_PARSER_SECONDARY_BASE_URL",
		"parser.secondary.max_retries":   "SPLITTER_PARSER_SECONDARY_MAX_RETRIES",
		"parser.secondary.timeout_secs":  "SPLITTER_PARSER_SECONDARY_TIMEOUT_SECS",
		"s3.region":                      "SPLITTER_S3_REGION",
		"s3.bucket":                      "SPLITTER_S3_BUCKET",
		"s3.endpoint":                    "SPLITTER_S3_ENDPOINT",
		"s3.access_key":                  "SPLITTER_S3_ACCESS_KEY",
		"s3.secret_key":                  "SPLITTER_S3_SECRET_KEY",
		"split.participant_a":            "SPLITTER_SPLIT_PARTICIPANT_A",
		"split.participant_b":            "SPLITTER_SPLIT_PARTICIPANT_B",
		"split.currency":                 "SPLITTER_SPLIT_CURRENCY",
		"split.session_ttl":              "SPLITTER_SPLIT_SESSION_TTL",
		"split.max_sessions":             "SPLITTER_SPLIT_MAX_SESSIONS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}

	// PORT is set by most PaaS hosts. Use it if SPLITTER_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SPLITTER_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:            serverPort,
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		Environment:     v.GetString("server.environment"),
		MaxUploadMB:     v.GetInt64("server.max_upload_mb"),
		CORSOrigins:     splitList(v.GetStringSlice("server.cors_origins")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Extractor = ExtractorConfig{
		Reader:        v.GetString("extractor.reader"),
		PdftotextPath: v.GetString("extractor.pdftotext_path"),
		PageMarkers:   v.GetBool("extractor.page_markers"),
		MaxPages:      v.GetInt("extractor.max_pages"),
	}

	cfg.Parser = ParserConfig{
		MaxOutputTokens:    v.GetInt("parser.max_output_tokens"),
		ContextWindow:      v.GetInt("parser.context_window"),
		TokenWarnThreshold: v.GetInt("parser.token_warn_threshold"),
		Primary: ParserProviderConfig{
			Provider:     v.GetString("parser.primary.provider"),
			APIKey:       v.GetString("parser.primary.api_key"),
			DefaultModel: v.GetString("parser.primary.default_model"),
			BaseURL:      v.GetString("parser.primary.base_url"),
			MaxRetries:   v.GetInt("parser.primary.max_retries"),
			TimeoutSecs:  v.GetInt("parser.primary.timeout_secs"),
		},
		Secondary: ParserProviderConfig{
			Provider:     v.GetString("parser.secondary.provider"),
			APIKey:       v.GetString("parser.secondary.api_key"),
			DefaultModel: v.GetString("parser.secondary.default_model"),
			BaseURL:      v.GetString("parser.secondary.base_url"),
			MaxRetries:   v.GetInt("parser.secondary.max_retries"),
			TimeoutSecs:  v.GetInt("parser.secondary.timeout_secs"),
		},
	}
	if cfg.Parser.Primary.APIKey == "" {
		cfg.Parser.Primary.APIKey = providerKeyFromEnv(cfg.Parser.Primary.Provider)
	}
	if cfg.Parser.Secondary.APIKey == "" && cfg.Parser.Secondary.Provider != "" {
		cfg.Parser.Secondary.APIKey = providerKeyFromEnv(cfg.Parser.Secondary.Provider)
	}

	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.Split = SplitConfig{
		ParticipantA: v.GetString("split.participant_a"),
		ParticipantB: v.GetString("split.participant_b"),
		Currency:     v.GetString("split.currency"),
		SessionTTL:   v.GetDuration("split.session_ttl"),
		MaxSessions:  v.GetInt("split.max_sessions"),
	}

	return cfg, nil
}

// providerKeyFromEnv falls back to the vendor's conventional API key variable.
func providerKeyFromEnv(provider string) string {
	switch provider {
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// splitList flattens comma-separated entries, as env vars deliver lists as one string.
func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
