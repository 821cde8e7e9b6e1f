package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"spot-arbitrage/internal/domain"

	"github.com/spf13/viper"
)

// Config holds the bot configuration.
type Config struct {
	Dry               bool             `mapstructure:"dry" json:"dry"`
	DryBalance        float64          `mapstructure:"dry_balance" json:"dry_balance"`
	OrderSize         float64          `mapstructure:"order_size" json:"order_size"`
	MinProfit         float64          `mapstructure:"min_profit" json:"min_profit"`
	Symbol            string           `mapstructure:"symbol" json:"symbol"`
	TickInterval      time.Duration    `mapstructure:"tick_interval" json:"tick_interval"`
	HeartbeatInterval time.Duration    `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
	Retries           int              `mapstructure:"retries" json:"retries"`
	Exchanges         []ExchangeConfig `mapstructure:"exchanges" json:"exchanges"`
	Telegram          TelegramConfig   `mapstructure:"telegram" json:"telegram"`
	Discord           DiscordConfig    `mapstructure:"discord" json:"discord"`
	Server            ServerConfig     `mapstructure:"server" json:"server"`
	Log               LogConfig        `mapstructure:"log" json:"log"`
}

type ExchangeConfig struct {
	Name      string  `mapstructure:"name" json:"name"`
	Key       string  `mapstructure:"key" json:"key"`
	Secret    string  `mapstructure:"secret" json:"secret"`
	Sandbox   bool    `mapstructure:"sandbox" json:"sandbox"`
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit"` // requests per second, 0 disables
	Stream    bool    `mapstructure:"stream" json:"stream"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Token   string `mapstructure:"token" json:"token"`
	ChatID  int64  `mapstructure:"chat_id" json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

type ServerConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	Port    int  `mapstructure:"port" json:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// ErrExists is returned by Create when the target file is already present.
var ErrExists = errors.New("config file already exists")

func setDefaults(v *viper.Viper) {
	v.SetDefault("dry", true)
	v.SetDefault("dry_balance", 1000)
	v.SetDefault("order_size", 1000)
	v.SetDefault("min_profit", 0.01)
	v.SetDefault("symbol", "BTC/USDT")
	v.SetDefault("tick_interval", "1s")
	v.SetDefault("heartbeat_interval", "60s")
	v.SetDefault("retries", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/app.log")
}

// Load reads the JSON config at path. Environment variables prefixed with ARB_
// override file values, and PORT overrides server.port.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "ARB_SERVER_PORT", "PORT")

	if err := v.ReadInConfig(); err != nil {
		return nil, domain.NewConfigurationError("", "failed to read config file "+path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, domain.NewConfigurationError("", "failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := domain.ParseSymbol(c.Symbol); err != nil {
		return domain.NewConfigurationError("", "symbol", err)
	}
	if c.OrderSize <= 0 {
		return domain.NewConfigurationError("", "order_size must be positive", nil)
	}
	if c.DryBalance < 0 {
		return domain.NewConfigurationError("", "dry_balance must not be negative", nil)
	}
	if c.MinProfit < 0 {
		return domain.NewConfigurationError("", "min_profit must not be negative", nil)
	}
	if c.Retries < 0 {
		return domain.NewConfigurationError("", "retries must not be negative", nil)
	}
	if c.TickInterval <= 0 {
		return domain.NewConfigurationError("", "tick_interval must be positive", nil)
	}
	if len(c.Exchanges) == 0 {
		return domain.NewConfigurationError("", "at least one exchange is required", nil)
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		name := strings.ToLower(strings.TrimSpace(ex.Name))
		if name == "" {
			return domain.NewConfigurationError("", "exchange name must not be empty", nil)
		}
		if seen[name] {
			return domain.NewConfigurationError(name, "exchange configured more than once", nil)
		}
		if ex.RateLimit < 0 {
			return domain.NewConfigurationError(name, "rate_limit must not be negative", nil)
		}
		seen[name] = true
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return domain.NewConfigurationError("", "telegram is enabled but token or chat_id is missing", nil)
	}
	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return domain.NewConfigurationError("", "discord is enabled but webhook_url is missing", nil)
	}
	return nil
}

// Template is the configuration written by create-config.
func Template() map[string]any {
	return map[string]any{
		"dry":                true,
		"dry_balance":        1000,
		"order_size":         1000,
		"min_profit":         0.01,
		"symbol":             "BTC/USDT",
		"tick_interval":      "1s",
		"heartbeat_interval": "60s",
		"retries":            4,
		"exchanges": []map[string]any{
			{"name": "binance", "key": "", "secret": "", "sandbox": false, "rate_limit": 10},
			{"name": "luno", "key": "", "secret": "", "sandbox": false, "rate_limit": 5, "stream": false},
		},
		"telegram": map[string]any{"enabled": false, "token": "", "chat_id": 0},
		"discord":  map[string]any{"enabled": false, "webhook_url": ""},
		"server":   map[string]any{"enabled": false, "port": 8080},
		"log":      map[string]any{"level": "info", "file": "logs/app.log"},
	}
}

// Create writes the template to path. It never overwrites an existing file.
func Create(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}
	data, err := json.MarshalIndent(Template(), "", "    ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
