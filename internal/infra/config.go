package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"queue_go/internal/domain"
)

// Config holds every application setting. Secrets loaded from the file can
// be overridden through environment variables after parsing.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Binance struct {
			WSURL       string   `yaml:"ws_url"`
			RestURL     string   `yaml:"rest_url"`
			APIKey      string   `yaml:"api_key"`
			SecretKey   string   `yaml:"secret_key"`
			Instruments []string `yaml:"instruments"`
			DepthLimit  int      `yaml:"depth_limit"`
		} `yaml:"binance"`
	} `yaml:"api"`

	Redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`

	Push struct {
		Enabled bool     `yaml:"enabled"`
		Tokens  []string `yaml:"tokens"`
	} `yaml:"push"`

	Engine struct {
		// DryRun routes order actions to the in-memory paper executor
		// instead of the exchange.
		DryRun              bool            `yaml:"dry_run"`
		InboxSize           int             `yaml:"inbox_size"`
		BuyDepthFloor       decimal.Decimal `yaml:"buy_depth_floor"`
		SecondBidQueueFloor decimal.Decimal `yaml:"second_bid_queue_floor"`
		SecondBidDepthFloor decimal.Decimal `yaml:"second_bid_depth_floor"`
		EntryBandLower      decimal.Decimal `yaml:"entry_band_lower"`
		EntryBandUpper      decimal.Decimal `yaml:"entry_band_upper"`
		RetryAttempts       int             `yaml:"retry_attempts"`
		RetryDelayMS        int             `yaml:"retry_delay_ms"`
	} `yaml:"engine"`

	Central struct {
		CollapseFloor  decimal.Decimal   `yaml:"collapse_floor"`
		DropThresholds []decimal.Decimal `yaml:"drop_thresholds"`
	} `yaml:"central"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity. Credential or endpoint problems
// must surface at startup, never mid-run.
func (c *Config) Validate() error {
	b := c.API.Binance
	if !strings.HasPrefix(b.WSURL, "ws://") && !strings.HasPrefix(b.WSURL, "wss://") {
		return fmt.Errorf("invalid Binance WS URL: %s", b.WSURL)
	}
	if !strings.HasPrefix(b.RestURL, "http://") && !strings.HasPrefix(b.RestURL, "https://") {
		return fmt.Errorf("invalid Binance REST URL: %s", b.RestURL)
	}
	if b.APIKey == "" || b.SecretKey == "" {
		return fmt.Errorf("Binance credentials are required")
	}
	if len(b.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("Redis address is required")
	}

	if c.Push.Enabled && len(c.Push.Tokens) == 0 {
		return fmt.Errorf("push is enabled but no device tokens are configured")
	}

	if c.Engine.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must not be negative")
	}

	return nil
}

// overrideWithEnv replaces config values with environment variables when
// present, so secrets stay out of the config file.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("QUEUE_BINANCE_KEY"); key != "" {
		cfg.API.Binance.APIKey = key
	}
	if secret := os.Getenv("QUEUE_BINANCE_SECRET"); secret != "" {
		cfg.API.Binance.SecretKey = secret
	}
	if addr := os.Getenv("QUEUE_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
}
