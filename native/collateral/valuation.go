package collateral

import (
	"fmt"
	"math/big"

	"stablemint/crypto"
)

const valuationDecimals = 18

// quoteFor fetches and validates the latest oracle quote for the asset.
func (e *Engine) quoteFor(symbol string) (Quote, error) {
	feed, ok := e.registry.feed(symbol)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrOracleUnavailable, symbol)
	}
	quote, err := feed.LatestQuote()
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s: %w", ErrOracleUnavailable, symbol, err)
	}
	if quote.Price == nil || quote.Price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("%w: %s", ErrInvalidPrice, symbol)
	}
	if e.params.MaxQuoteAge > 0 && e.now().Sub(quote.ObservedAt) > e.params.MaxQuoteAge {
		return Quote{}, fmt.Errorf("%w: %s", ErrStalePrice, symbol)
	}
	return quote, nil
}

// normalizedPrice scales the feed price to 18-decimal fixed point. The factor
// is derived from the feed's declared decimals so heterogeneous feeds value
// consistently.
func normalizedPrice(quote Quote) *big.Int {
	if quote.Decimals == valuationDecimals {
		return new(big.Int).Set(quote.Price)
	}
	if quote.Decimals < valuationDecimals {
		factor := pow10(valuationDecimals - quote.Decimals)
		return new(big.Int).Mul(quote.Price, factor)
	}
	factor := pow10(quote.Decimals - valuationDecimals)
	return new(big.Int).Quo(new(big.Int).Set(quote.Price), factor)
}

// ValueInUSD converts an asset amount in native units to 18-decimal USD
// value. Rounds down: collateral value is never overstated.
func (e *Engine) ValueInUSD(symbol string, amount *big.Int) (*big.Int, error) {
	if !e.registry.contains(symbol) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotAllowed, symbol)
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	quote, err := e.quoteFor(symbol)
	if err != nil {
		return nil, err
	}
	return mulDivFloor(normalizedPrice(quote), amount, precision), nil
}

// collateralFromUSD converts an 18-decimal USD value to the asset amount in
// native units. Rounds down so a liquidator's base seize never exceeds the
// exact USD equivalent.
func (e *Engine) collateralFromUSD(symbol string, usdValue *big.Int) (*big.Int, error) {
	quote, err := e.quoteFor(symbol)
	if err != nil {
		return nil, err
	}
	return mulDivFloor(usdValue, precision, normalizedPrice(quote)), nil
}

// collateralValue sums the USD value of every registered asset held in the
// position. Iteration covers the whole registry: cost scales with the fixed
// asset list, not with the account's holdings.
func (e *Engine) collateralValue(pos *Position) (*big.Int, error) {
	total := big.NewInt(0)
	for _, symbol := range e.registry.symbols {
		amount := pos.CollateralOf(symbol)
		if amount.Sign() == 0 {
			continue
		}
		value, err := e.ValueInUSD(symbol, amount)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// AccountCollateralValue reports the total USD value of the account's
// deposited collateral. Read-only.
func (e *Engine) AccountCollateralValue(addr crypto.Address) (*big.Int, error) {
	pos, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	return e.collateralValue(pos)
}
