// Package config loads builderfee.yaml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// Approval modes.
const (
	ModeExchange    = "exchange"
	ModeTransaction = "transaction"
)

type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Approval ApprovalConfig `yaml:"approval"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
}

type ProviderConfig struct {
	URL         string        `yaml:"url"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type ApprovalConfig struct {
	Mode                string        `yaml:"mode"`
	ExchangeURL         string        `yaml:"exchange_url"`
	ExchangeChain       string        `yaml:"exchange_chain"`
	ConfirmPollInterval time.Duration `yaml:"confirm_poll_interval"`
	ConfirmTimeout      time.Duration `yaml:"confirm_timeout"`
}

type SessionConfig struct {
	// ReloadOnChainChange re-derives the whole session after a network
	// switch instead of only recording the new chain id.
	ReloadOnChainChange bool `yaml:"reload_on_chain_change"`
}

type LogConfig struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "terminal" | "json"
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			URL:         "ws://127.0.0.1:1248",
			DialTimeout: 5 * time.Second,
		},
		Approval: ApprovalConfig{
			Mode:                ModeExchange,
			ExchangeURL:         "https://api.hyperliquid.xyz",
			ExchangeChain:       "Mainnet",
			ConfirmPollInterval: 2 * time.Second,
			ConfirmTimeout:      5 * time.Minute,
		},
		Session: SessionConfig{
			ReloadOnChainChange: true,
		},
		Log: LogConfig{
			File:   "builderfee.log",
			Level:  "info",
			Format: "terminal",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the session cannot run with.
func (c *Config) Validate() error {
	if c.Provider.URL == "" {
		return errors.New("provider.url must be set")
	}
	switch c.Approval.Mode {
	case ModeExchange, ModeTransaction:
	default:
		return fmt.Errorf("approval.mode %q: want %q or %q", c.Approval.Mode, ModeExchange, ModeTransaction)
	}
	if c.Approval.Mode == ModeExchange && c.Approval.ExchangeURL == "" {
		return errors.New("approval.exchange_url must be set in exchange mode")
	}
	switch c.Approval.ExchangeChain {
	case "Mainnet", "Testnet":
	default:
		return fmt.Errorf("approval.exchange_chain %q: want Mainnet or Testnet", c.Approval.ExchangeChain)
	}
	if c.Approval.ConfirmPollInterval <= 0 {
		return errors.New("approval.confirm_poll_interval must be positive")
	}
	if c.Approval.ConfirmTimeout < c.Approval.ConfirmPollInterval {
		return errors.New("approval.confirm_timeout must be at least one poll interval")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "terminal", "json":
	default:
		return fmt.Errorf("log.format %q: want terminal or json", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level %q: unknown level", name)
}
