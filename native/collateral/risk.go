package collateral

import (
	"math/big"

	"stablemint/crypto"
)

// MinimumHealthFactor is 1.0 at 18-decimal fixed point. An account at exactly
// the minimum is solvent; only strictly smaller values are liquidatable.
var MinimumHealthFactor = mustBigInt("1000000000000000000")

// unboundedHealthFactor stands in for the ratio of a debt-free account. No
// debt means the account can never be undercollateralized.
var unboundedHealthFactor = new(big.Int).Lsh(big.NewInt(1), 256)

// Unbounded reports whether the ratio is the sentinel for a debt-free account.
func Unbounded(ratio *big.Int) bool {
	return ratio != nil && ratio.Cmp(unboundedHealthFactor) >= 0
}

// healthFactorFor computes the solvency ratio for a position from current
// oracle prices: threshold-adjusted collateral value over debt, at 18-decimal
// fixed point. Division truncates, rounding against the account holder.
func (e *Engine) healthFactorFor(pos *Position) (*big.Int, error) {
	if pos == nil || pos.Debt == nil || pos.Debt.Sign() == 0 {
		return new(big.Int).Set(unboundedHealthFactor), nil
	}
	value, err := e.collateralValue(pos)
	if err != nil {
		return nil, err
	}
	threshold := new(big.Int).SetUint64(e.params.LiquidationThresholdBps)
	adjusted := mulDivFloor(value, threshold, basisPoints)
	return mulDivFloor(adjusted, precision, pos.Debt), nil
}

// HealthFactor reports the account's current solvency ratio. The value is
// derived, never stored: it is recomputed from live positions and quotes, so
// it can change between calls without any engine mutation.
func (e *Engine) HealthFactor(addr crypto.Address) (*big.Int, error) {
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return e.healthFactorFor(pos)
}

// debtShortfall reports how much of the position's debt is not backed by
// threshold-adjusted collateral. Solvent positions report zero. Liquidation
// progress is measured by this value strictly shrinking.
func (e *Engine) debtShortfall(pos *Position) (*big.Int, error) {
	if pos == nil || pos.Debt == nil || pos.Debt.Sign() == 0 {
		return big.NewInt(0), nil
	}
	value, err := e.collateralValue(pos)
	if err != nil {
		return nil, err
	}
	threshold := new(big.Int).SetUint64(e.params.LiquidationThresholdBps)
	adjusted := mulDivFloor(value, threshold, basisPoints)
	shortfall := new(big.Int).Sub(pos.Debt, adjusted)
	if shortfall.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return shortfall, nil
}

// assertSolvent fails with a HealthFactorError when the position's ratio is
// strictly below the minimum.
func (e *Engine) assertSolvent(pos *Position) error {
	ratio, err := e.healthFactorFor(pos)
	if err != nil {
		return err
	}
	if ratio.Cmp(MinimumHealthFactor) < 0 {
		return &HealthFactorError{Value: ratio}
	}
	return nil
}
