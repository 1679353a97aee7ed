package config

import (
	"errors"
	"fmt"
)

// ErrAssetOracleMismatch mirrors the engine's construction-time check so a
// bad configuration is caught before any wiring happens.
var ErrAssetOracleMismatch = errors.New("config: asset and oracle lists must have equal length")

// Validate rejects configurations the engine could not be constructed from.
func (c *Config) Validate() error {
	engine := c.Engine
	if len(engine.Assets) != len(engine.Oracles) {
		return fmt.Errorf("%w: %d assets, %d oracles", ErrAssetOracleMismatch, len(engine.Assets), len(engine.Oracles))
	}
	if len(engine.Assets) == 0 {
		return fmt.Errorf("config: at least one collateral asset required")
	}
	seen := make(map[string]struct{}, len(engine.Assets))
	for i, asset := range engine.Assets {
		if asset == "" {
			return fmt.Errorf("config: empty asset symbol at index %d", i)
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("config: duplicate asset symbol %q", asset)
		}
		seen[asset] = struct{}{}
		if engine.Oracles[i] == "" {
			return fmt.Errorf("config: empty oracle reference for asset %q", asset)
		}
	}
	if engine.LiquidationThresholdBps == 0 || engine.LiquidationThresholdBps > 10_000 {
		return fmt.Errorf("config: LiquidationThresholdBps must be in (0, 10000], got %d", engine.LiquidationThresholdBps)
	}
	if engine.LiquidationBonusBps >= 10_000 {
		return fmt.Errorf("config: LiquidationBonusBps must be below 10000, got %d", engine.LiquidationBonusBps)
	}
	return nil
}
