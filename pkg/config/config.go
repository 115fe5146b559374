package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	envConfigPath        = "CHATROUTER_CONFIG"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envRouterAllowFrom   = "CHATROUTER_ALLOW_FROM"
)

// ErrNotFound is returned by LoadConfig when no config file exists.
var ErrNotFound = errors.New("config file not found")

const (
	defaultMaxConcurrency       = 16
	defaultUpdateTimeoutSeconds = 30
	defaultConsoleChatID        = 1
	defaultGatewayHost          = "0.0.0.0"
	defaultGatewayPort          = 18790
)

// Config is the root runtime configuration loaded from config.json or config.yaml.
type Config struct {
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Router   RouterConfig   `json:"router" yaml:"router"`
	Sessions SessionsConfig `json:"sessions" yaml:"sessions"`
	I18n     I18nConfig     `json:"i18n" yaml:"i18n"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Console  ConsoleConfig  `json:"console" yaml:"console"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token"`
	AllowFrom []string `json:"allow_from" yaml:"allow_from"`
}

// ConsoleConfig configures the local stdin/stdout channel.
type ConsoleConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	ChatID   int64  `json:"chat_id" yaml:"chat_id"`
	Username string `json:"username" yaml:"username"`
}

// RouterConfig tunes how updates are dispatched.
type RouterConfig struct {
	// MaxConcurrency bounds how many updates are routed at once.
	MaxConcurrency       int  `json:"max_concurrency" yaml:"max_concurrency"`
	UpdateTimeoutSeconds int  `json:"update_timeout_seconds" yaml:"update_timeout_seconds"`
	SerializePerChat     bool `json:"serialize_per_chat" yaml:"serialize_per_chat"`
	EditedMessages       bool `json:"edited_messages" yaml:"edited_messages"`
	// ErrorReply is sent to the chat when routing an update fails. Empty sends nothing.
	ErrorReply string `json:"error_reply" yaml:"error_reply"`
	// AllowFrom restricts every channel to these user ids or usernames.
	AllowFrom []string `json:"allow_from" yaml:"allow_from"`
	DenyReply string   `json:"deny_reply" yaml:"deny_reply"`
}

// SessionsConfig bounds the in-memory session store.
type SessionsConfig struct {
	TTLMinutes int `json:"ttl_minutes" yaml:"ttl_minutes"`
	MaxEntries int `json:"max_entries" yaml:"max_entries"`
}

// I18nConfig lists the languages users may pick. Empty disables language selection.
type I18nConfig struct {
	Languages  []string `json:"languages" yaml:"languages"`
	Prompt     string   `json:"prompt" yaml:"prompt"`
	FromClient bool     `json:"from_client" yaml:"from_client"`
}

// GatewayConfig configures HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Channels: ChannelsConfig{
			Console: ConsoleConfig{ChatID: defaultConsoleChatID},
		},
		Router: RouterConfig{
			MaxConcurrency:       defaultMaxConcurrency,
			UpdateTimeoutSeconds: defaultUpdateTimeoutSeconds,
			SerializePerChat:     true,
		},
		Gateway: GatewayConfig{Host: defaultGatewayHost, Port: defaultGatewayPort},
	}
}

// LoadConfig resolves the config file, decodes it over Default, and applies
// environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFile(configPath)
}

// LoadFile decodes one config file. Files ending in .yaml or .yml are read as
// YAML, everything else as JSON.
func LoadFile(configPath string) (*Config, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, cfg)
	default:
		err = json.Unmarshal(content, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Router.MaxConcurrency < 0 {
		return fmt.Errorf("router.max_concurrency must not be negative, got %d", c.Router.MaxConcurrency)
	}
	if c.Router.UpdateTimeoutSeconds < 0 {
		return fmt.Errorf("router.update_timeout_seconds must not be negative, got %d", c.Router.UpdateTimeoutSeconds)
	}
	if c.Sessions.TTLMinutes < 0 || c.Sessions.MaxEntries < 0 {
		return errors.New("sessions.ttl_minutes and sessions.max_entries must not be negative")
	}
	if c.Channels.Telegram.Enabled && strings.TrimSpace(c.Channels.Telegram.Token) == "" {
		return errors.New("channels.telegram.token is required when telegram is enabled")
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envRouterAllowFrom)); rawAllowFrom != "" {
		cfg.Router.AllowFrom = parseCSV(rawAllowFrom)
	}
}

// ApplyEnv applies environment overrides to a config that was not loaded from
// a file, such as Default().
func ApplyEnv(cfg *Config) {
	applyEnvOverrides(cfg)
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is CHATROUTER_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w (checked %s)", ErrNotFound, strings.Join(candidates, ", "))
}
