package collateral

import (
	"math/big"
	"time"

	"stablemint/crypto"
)

// Position captures an account's deposited collateral and minted debt.
// Collateral amounts are in asset-native units keyed by asset symbol; Debt is
// denominated in the valuation currency at 18-decimal fixed point.
type Position struct {
	Address    crypto.Address
	Collateral map[string]*big.Int
	Debt       *big.Int
}

// NewPosition returns an empty position for the address.
func NewPosition(addr crypto.Address) *Position {
	return &Position{
		Address:    addr,
		Collateral: make(map[string]*big.Int),
		Debt:       big.NewInt(0),
	}
}

// CollateralOf returns the deposited amount for the asset, zero when absent.
func (p *Position) CollateralOf(symbol string) *big.Int {
	if p == nil || p.Collateral == nil {
		return big.NewInt(0)
	}
	if amount, ok := p.Collateral[symbol]; ok && amount != nil {
		return amount
	}
	return big.NewInt(0)
}

// Clone returns a deep copy so callers can stage mutations without touching
// committed state.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := NewPosition(p.Address)
	for symbol, amount := range p.Collateral {
		if amount != nil {
			clone.Collateral[symbol] = new(big.Int).Set(amount)
		}
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	}
	return clone
}

// Quote is a single oracle price observation. Price is an integer scaled by
// 10^Decimals in the valuation currency; ObservedAt is the feed's report time.
type Quote struct {
	Price      *big.Int
	Decimals   uint8
	ObservedAt time.Time
}

// RiskParameters groups the safety limits applied by the risk engine.
type RiskParameters struct {
	// LiquidationThresholdBps is the share of collateral value counted toward
	// backing debt, in basis points. 5000 means a 200% overcollateralization
	// requirement.
	LiquidationThresholdBps uint64
	// LiquidationBonusBps is the extra collateral awarded to liquidators on
	// top of the USD-equivalent of the debt they cover, in basis points.
	LiquidationBonusBps uint64
	// MaxQuoteAge bounds how old an oracle quote may be before valuation
	// rejects it. Zero disables the staleness check.
	MaxQuoteAge time.Duration
}
