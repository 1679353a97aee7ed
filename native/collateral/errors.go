package collateral

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrInvalidAmount rejects zero or negative quantities.
	ErrInvalidAmount = errors.New("collateral engine: amount must be positive")
	// ErrAssetNotAllowed rejects assets outside the construction-time registry.
	ErrAssetNotAllowed = errors.New("collateral engine: asset not registered")
	// ErrConfigurationMismatch signals construction-time parallel list length mismatch.
	ErrConfigurationMismatch = errors.New("collateral engine: asset, oracle and token lists must have equal length")
	// ErrTransferFailed wraps a failed collateral token movement.
	ErrTransferFailed = errors.New("collateral engine: collateral transfer failed")
	// ErrMintFailed wraps a failed stablecoin ledger mint.
	ErrMintFailed = errors.New("collateral engine: stablecoin mint failed")
	// ErrBurnFailed wraps a failed stablecoin ledger burn.
	ErrBurnFailed = errors.New("collateral engine: stablecoin burn failed")
	// ErrInsufficientCollateral rejects debits beyond the deposited position.
	ErrInsufficientCollateral = errors.New("collateral engine: insufficient collateral")
	// ErrInsufficientDebt rejects burns or liquidations beyond the minted debt.
	ErrInsufficientDebt = errors.New("collateral engine: insufficient debt")
	// ErrHealthFactorOk rejects liquidation of a solvent account.
	ErrHealthFactorOk = errors.New("collateral engine: target health factor above minimum")
	// ErrHealthFactorNotImproved rejects a liquidation that makes no progress
	// toward restoring the target's solvency.
	ErrHealthFactorNotImproved = errors.New("collateral engine: liquidation did not improve target health factor")
	// ErrOracleUnavailable signals a missing or failing price feed.
	ErrOracleUnavailable = errors.New("collateral engine: oracle unavailable for asset")
	// ErrInvalidPrice rejects non-positive oracle prices.
	ErrInvalidPrice = errors.New("collateral engine: oracle reported non-positive price")
	// ErrStalePrice rejects quotes older than the configured maximum age.
	ErrStalePrice = errors.New("collateral engine: oracle quote exceeds maximum age")
	// ErrReentrant rejects nested invocation of engine entry points.
	ErrReentrant = errors.New("collateral engine: reentrant call")

	errNilState = errors.New("collateral engine: state not configured")
)

// ErrHealthFactorBroken is the match target for HealthFactorError values.
var ErrHealthFactorBroken = errors.New("collateral engine: health factor below minimum")

// HealthFactorError reports a solvency violation together with the computed
// ratio for diagnostics. errors.Is matches it against ErrHealthFactorBroken.
type HealthFactorError struct {
	Value *big.Int
}

func (e *HealthFactorError) Error() string {
	value := "0"
	if e.Value != nil {
		value = e.Value.String()
	}
	return fmt.Sprintf("collateral engine: health factor %s below minimum", value)
}

// Is implements errors.Is matching against ErrHealthFactorBroken.
func (e *HealthFactorError) Is(target error) bool {
	return target == ErrHealthFactorBroken
}
