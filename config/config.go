package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime settings for the stablemint daemon.
type Config struct {
	ListenAddress string       `toml:"ListenAddress"`
	DataDir       string       `toml:"DataDir"`
	Environment   string       `toml:"Environment"`
	Engine        EngineConfig `toml:"Engine"`
}

// EngineConfig holds the risk parameters and the parallel asset/oracle lists
// the engine is constructed from.
type EngineConfig struct {
	LiquidationThresholdBps uint64   `toml:"LiquidationThresholdBps"`
	LiquidationBonusBps     uint64   `toml:"LiquidationBonusBps"`
	MaxQuoteAgeSeconds      uint64   `toml:"MaxQuoteAgeSeconds"`
	Assets                  []string `toml:"Assets"`
	Oracles                 []string `toml:"Oracles"`
}

// MaxQuoteAge returns the staleness window as a duration.
func (e EngineConfig) MaxQuoteAge() time.Duration {
	return time.Duration(e.MaxQuoteAgeSeconds) * time.Second
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	if c.ListenAddress == "" {
		c.ListenAddress = ":8546"
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	c.Environment = strings.TrimSpace(c.Environment)
	for i, asset := range c.Engine.Assets {
		c.Engine.Assets[i] = strings.TrimSpace(asset)
	}
	for i, oracle := range c.Engine.Oracles {
		c.Engine.Oracles[i] = strings.TrimSpace(oracle)
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8546",
		DataDir:       "./data",
		Engine: EngineConfig{
			LiquidationThresholdBps: 5000,
			LiquidationBonusBps:     1000,
			MaxQuoteAgeSeconds:      3600,
			Assets:                  []string{"WETH"},
			Oracles:                 []string{"manual:200000000000:8"},
		},
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create default config: %w", err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}
	return cfg, nil
}
