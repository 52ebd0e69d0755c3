// Package config loads runtime configuration from a JSON5 file with env
// overrides. Secrets are env-only and never read from the file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"github.com/grupovorp/adpilot/internal/telemetry"
)

type Config struct {
	Server    ServerConfig     `json:"server"`
	Channel   ChannelConfig    `json:"channel"`
	WhatsApp  WhatsAppConfig   `json:"whatsapp"`
	Evolution EvolutionConfig  `json:"evolution"`
	Telegram  TelegramConfig   `json:"telegram"`
	Facebook  FacebookConfig   `json:"facebook"`
	OpenAI    OpenAIConfig     `json:"openai"`
	Database  DatabaseConfig   `json:"database"`
	Agent     AgentConfig      `json:"agent"`
	Telemetry telemetry.Config `json:"telemetry"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ChannelConfig selects the active messaging adapter.
type ChannelConfig struct {
	Provider string `json:"provider"` // "cloudapi", "evolution", "telegram"
}

type WhatsAppConfig struct {
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"-"` // WHATSAPP_ACCESS_TOKEN
	VerifyToken   string `json:"-"` // VERIFY_TOKEN
	AppSecret     string `json:"-"` // APP_SECRET
}

type EvolutionConfig struct {
	BaseURL  string `json:"base_url"`
	Instance string `json:"instance"`
	APIKey   string `json:"-"` // EVOLUTION_API_KEY
}

type TelegramConfig struct {
	Token string `json:"-"` // TELEGRAM_BOT_TOKEN
}

type FacebookConfig struct {
	AccessToken string `json:"-"` // FACEBOOK_ACCESS_TOKEN
	BusinessID  string `json:"business_id"`
}

type OpenAIConfig struct {
	APIKey  string `json:"-"` // OPENAI_API_KEY
	APIBase string `json:"api_base"`
	Model   string `json:"model"`
}

type DatabaseConfig struct {
	PostgresDSN string `json:"-"` // POSTGRES_DSN
	SQLitePath  string `json:"sqlite_path"`
}

// AgentConfig tunes the run loop and inbound batching. These fields are
// hot-reloadable via the config watcher.
type AgentConfig struct {
	MaxIterations     int     `json:"max_iterations"`
	RunTimeoutSeconds int     `json:"run_timeout_seconds"`
	HistoryLimit      int     `json:"history_limit"`
	DebounceSeconds   float64 `json:"debounce_seconds"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Channel: ChannelConfig{
			Provider: "cloudapi",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Database: DatabaseConfig{
			SQLitePath: "adpilot.db",
		},
		Agent: AgentConfig{
			MaxIterations:     10,
			RunTimeoutSeconds: 120,
			HistoryLimit:      10,
			DebounceSeconds:   6,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; defaults plus env apply. A .env file in the working
// directory is picked up first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Secrets: env only
	envStr("WHATSAPP_ACCESS_TOKEN", &c.WhatsApp.AccessToken)
	envStr("VERIFY_TOKEN", &c.WhatsApp.VerifyToken)
	envStr("APP_SECRET", &c.WhatsApp.AppSecret)
	envStr("EVOLUTION_API_KEY", &c.Evolution.APIKey)
	envStr("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	envStr("FACEBOOK_ACCESS_TOKEN", &c.Facebook.AccessToken)
	envStr("OPENAI_API_KEY", &c.OpenAI.APIKey)
	envStr("POSTGRES_DSN", &c.Database.PostgresDSN)

	// Non-secret overrides
	envStr("ADPILOT_CHANNEL", &c.Channel.Provider)
	envStr("ADPILOT_HOST", &c.Server.Host)
	if v := os.Getenv("ADPILOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	envStr("ADPILOT_MODEL", &c.OpenAI.Model)
	envStr("ADPILOT_SQLITE_PATH", &c.Database.SQLitePath)
	envStr("WHATSAPP_PHONE_NUMBER_ID", &c.WhatsApp.PhoneNumberID)
	envStr("EVOLUTION_BASE_URL", &c.Evolution.BaseURL)
	envStr("EVOLUTION_INSTANCE", &c.Evolution.Instance)

	envStr("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	if v := os.Getenv("ADPILOT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
}

// Validate checks the parts required to boot with the selected channel.
func (c *Config) Validate() error {
	switch c.Channel.Provider {
	case "cloudapi":
		if c.WhatsApp.PhoneNumberID == "" {
			return fmt.Errorf("whatsapp.phone_number_id is required for the cloudapi channel")
		}
		if c.WhatsApp.AccessToken == "" {
			return fmt.Errorf("WHATSAPP_ACCESS_TOKEN is required for the cloudapi channel")
		}
	case "evolution":
		if c.Evolution.BaseURL == "" || c.Evolution.Instance == "" {
			return fmt.Errorf("evolution.base_url and evolution.instance are required for the evolution channel")
		}
	case "telegram":
		if c.Telegram.Token == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required for the telegram channel")
		}
	default:
		return fmt.Errorf("unknown channel provider %q", c.Channel.Provider)
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Facebook.AccessToken == "" {
		return fmt.Errorf("FACEBOOK_ACCESS_TOKEN is required")
	}
	return nil
}
