package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the runtime's single configuration structure, loaded once at
// startup from a YAML file and then consulted read-only everywhere except
// the Settings section, whose live values flow through a SettingsStore
// (settings_store.go).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Skills   SkillsConfig   `yaml:"skills"`
	Memory   MemoryConfig   `yaml:"memory"`
	LLM      LLMConfig      `yaml:"llm"`
	Tools    ToolsConfig    `yaml:"tools"`
	Channels ChannelsConfig `yaml:"channels"`
	Logging  LoggingConfig  `yaml:"logging"`
	Settings SettingsConfig `yaml:"settings"`
}

// ServerConfig configures the HTTP admin surface and the WebSocket gateway
// (§4.9, §6).
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	GatewayPort int    `yaml:"gateway_port"`
}

// DatabaseConfig configures the Postgres-backed Persistence Store
// (internal/storage).
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// AuthConfig configures the gateway's bearer-token Authenticator (§4.9).
type AuthConfig struct {
	SecretKey string `yaml:"secret_key"`
}

// GatewayConfig holds Event Gateway settings (§4.9). SendQueueCapacity is
// defaulted to 256 here but is not read by the gateway: gateway.NewHub
// always sizes send queues with gateway.DefaultSendQueueCapacity.
type GatewayConfig struct {
	SendQueueCapacity int `yaml:"send_queue_capacity"`
}

// SkillsConfig points the Skill Loader (§4.4) at its two source roots.
type SkillsConfig struct {
	BundledDir string `yaml:"bundled_dir"`
	ManagedDir string `yaml:"managed_dir"`
}

// MemoryConfig tunes the Memory Subsystem (§4.5).
type MemoryConfig struct {
	CompactionCadence time.Duration `yaml:"compaction_cadence"`
}

// LLMConfig configures the Completion Provider (§5).
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// ToolsConfig holds the dispatcher's tool-loop settings: runServe copies
// max_iterations, timeout and retry_schedule into agent.Config's
// MaxToolIterations, ProviderTimeout and ProviderRetrySchedule. The Tool
// Executor (§4.3) itself runs with tools.DefaultExecutorConfig().
type ToolsConfig struct {
	Execution ToolExecutionConfig `yaml:"execution"`
}

type ToolExecutionConfig struct {
	MaxIterations int             `yaml:"max_iterations"`
	Timeout       time.Duration   `yaml:"timeout"`
	RetrySchedule []time.Duration `yaml:"retry_schedule"`
}

// ChannelsConfig configures the Channel Façade's reference adapters
// (§4.10).
type ChannelsConfig struct {
	Discord  DiscordChannelConfig  `yaml:"discord"`
	Slack    SlackChannelConfig    `yaml:"slack"`
	Telegram TelegramChannelConfig `yaml:"telegram"`
}

type DiscordChannelConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BotToken  string  `yaml:"bot_token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type SlackChannelConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BotToken  string  `yaml:"bot_token"`
	AppToken  string  `yaml:"app_token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type TelegramChannelConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BotToken  string  `yaml:"bot_token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// LoggingConfig configures the slog handler (§4.11).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SettingsConfig seeds the initial values of the live SettingsStore
// (§9's "global mutable settings" snapshot: bot name, confirmation
// policy, default model).
type SettingsConfig struct {
	BotName             string `yaml:"bot_name"`
	RequireConfirmation *bool  `yaml:"require_confirmation"`
	DefaultModel        string `yaml:"default_model"`
}

// Load reads path, expands ${VAR} references against the process
// environment, decodes strict YAML (unknown fields reject the file), layers
// the documented STARK_* environment overrides on top, then applies
// defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected a single YAML document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides layers the documented STARK_* environment variables
// (§4.11, §6) over whatever the file set, so operators can override secrets
// and ports without editing the file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("STARK_SECRET_KEY")); v != "" {
		cfg.Auth.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv("STARK_DATABASE_URL")); v != "" {
		cfg.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("STARK_HTTP_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("STARK_GATEWAY_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.GatewayPort = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("STARK_BUNDLED_SKILLS_DIR")); v != "" {
		cfg.Skills.BundledDir = v
	}
	if v := strings.TrimSpace(os.Getenv("STARK_MANAGED_SKILLS_DIR")); v != "" {
		cfg.Skills.ManagedDir = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.GatewayPort == 0 {
		cfg.Server.GatewayPort = 8081
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Gateway.SendQueueCapacity == 0 {
		cfg.Gateway.SendQueueCapacity = 256
	}
	if cfg.Skills.BundledDir == "" {
		cfg.Skills.BundledDir = "skills/bundled"
	}
	if cfg.Skills.ManagedDir == "" {
		cfg.Skills.ManagedDir = "skills/managed"
	}
	if cfg.Memory.CompactionCadence == 0 {
		cfg.Memory.CompactionCadence = 6 * time.Hour
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Tools.Execution.MaxIterations == 0 {
		cfg.Tools.Execution.MaxIterations = 12
	}
	if cfg.Tools.Execution.Timeout == 0 {
		cfg.Tools.Execution.Timeout = 60 * time.Second
	}
	if len(cfg.Tools.Execution.RetrySchedule) == 0 {
		cfg.Tools.Execution.RetrySchedule = []time.Duration{500 * time.Millisecond, 2 * time.Second}
	}
	if cfg.Channels.Discord.RateLimit == 0 {
		cfg.Channels.Discord.RateLimit = 5
	}
	if cfg.Channels.Discord.RateBurst == 0 {
		cfg.Channels.Discord.RateBurst = 10
	}
	if cfg.Channels.Slack.RateLimit == 0 {
		cfg.Channels.Slack.RateLimit = 5
	}
	if cfg.Channels.Slack.RateBurst == 0 {
		cfg.Channels.Slack.RateBurst = 10
	}
	if cfg.Channels.Telegram.RateLimit == 0 {
		cfg.Channels.Telegram.RateLimit = 30
	}
	if cfg.Channels.Telegram.RateBurst == 0 {
		cfg.Channels.Telegram.RateBurst = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Settings.BotName == "" {
		cfg.Settings.BotName = "stark"
	}
	if cfg.Settings.RequireConfirmation == nil {
		enabled := true
		cfg.Settings.RequireConfirmation = &enabled
	}
	if cfg.Settings.DefaultModel == "" {
		cfg.Settings.DefaultModel = "claude-sonnet-4-5"
	}
}

// ValidationError collects every problem found while validating a Config,
// so an operator sees every mistake in one pass instead of one at a time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if cfg.Database.MaxConnections < 0 {
		issues = append(issues, "database.max_connections must be >= 0")
	}
	if cfg.Tools.Execution.MaxIterations < 0 {
		issues = append(issues, "tools.execution.max_iterations must be >= 0")
	}
	if cfg.Tools.Execution.Timeout < 0 {
		issues = append(issues, "tools.execution.timeout must be >= 0")
	}
	if secret := strings.TrimSpace(cfg.Auth.SecretKey); secret != "" && len(secret) < 32 {
		issues = append(issues, "auth.secret_key must be at least 32 characters when set")
	}
	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok && len(cfg.LLM.Providers) > 0 {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}
	if cfg.Channels.Discord.Enabled && strings.TrimSpace(cfg.Channels.Discord.BotToken) == "" {
		issues = append(issues, "channels.discord.bot_token is required when channels.discord.enabled is true")
	}
	if cfg.Channels.Slack.Enabled && (strings.TrimSpace(cfg.Channels.Slack.BotToken) == "" || strings.TrimSpace(cfg.Channels.Slack.AppToken) == "") {
		issues = append(issues, "channels.slack.bot_token and channels.slack.app_token are both required when channels.slack.enabled is true")
	}
	if cfg.Channels.Telegram.Enabled && strings.TrimSpace(cfg.Channels.Telegram.BotToken) == "" {
		issues = append(issues, "channels.telegram.bot_token is required when channels.telegram.enabled is true")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "json", "text":
	default:
		issues = append(issues, "logging.format must be \"json\" or \"text\"")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
