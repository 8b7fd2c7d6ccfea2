package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in data_source.provider.
const (
	ProviderYahoo  = "yahoo"
	ProviderAlpaca = "alpaca"
	ProviderREST   = "rest"
	ProviderMock   = "mock"
)

// Config holds the bootstrap configuration. Operator-tunable values live in the store (see Settings).
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"data_source"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Admin struct {
		UserID string `yaml:"user_id"`
	} `yaml:"admin"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads an optional .env file and the YAML config, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "error", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{"TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID},
		{"DATA_PROVIDER", &cfg.DataSource.Provider},
		{"REST_BASE_URL", &cfg.DataSource.BaseURL},
		{"REST_API_KEY", &cfg.DataSource.APIKey},
		{"ALPACA_API_KEY", &cfg.DataSource.APIKey},
		{"ALPACA_API_SECRET", &cfg.DataSource.APISecret},
		{"SQLITE_PATH", &cfg.Database.SQLitePath},
		{"ADMIN_USER_ID", &cfg.Admin.UserID},
		{"METRICS_ADDR", &cfg.Metrics.Addr},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
		{"HTTPS_PROXY", &cfg.Proxy},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	// Defaults
	cfg.DataSource.Provider = strings.ToLower(cfg.DataSource.Provider)
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = ProviderYahoo
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/signal_sentinel.db"
	}
	if cfg.Admin.UserID == "" {
		cfg.Admin.UserID = cfg.Telegram.ChatID
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	switch c.DataSource.Provider {
	case ProviderYahoo, ProviderMock:
	case ProviderAlpaca:
		if c.DataSource.APIKey == "" || c.DataSource.APISecret == "" {
			return fmt.Errorf("data_source.api_key and data_source.api_secret are required for alpaca")
		}
	case ProviderREST:
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for rest")
		}
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}
	if _, err := ValidateSetting(KeyAdminUserID, c.Admin.UserID); err != nil {
		return fmt.Errorf("admin.user_id: %w", err)
	}
	return nil
}

// LogLevel maps the configured level name to a slog.Level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
