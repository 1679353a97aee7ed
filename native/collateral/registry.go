package collateral

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"stablemint/crypto"
)

// AssetToken is the transfer interface each collateral asset must expose. The
// engine is the spender for deposits and the sender for releases.
type AssetToken interface {
	Transfer(from, to crypto.Address, amount *big.Int) error
	TransferFrom(spender, from, to crypto.Address, amount *big.Int) error
}

// registry is the immutable asset -> oracle/token mapping built during engine
// construction. Entries are never added or removed afterwards, which keeps
// valuation iteration deterministic and free of reentrancy hazards.
type registry struct {
	symbols []string
	feeds   map[string]PriceFeed
	tokens  map[string]AssetToken
}

func newRegistry(symbols []string, feeds []PriceFeed, tokens []AssetToken) (*registry, error) {
	if len(symbols) != len(feeds) || len(symbols) != len(tokens) {
		return nil, ErrConfigurationMismatch
	}
	reg := &registry{
		feeds:  make(map[string]PriceFeed, len(symbols)),
		tokens: make(map[string]AssetToken, len(symbols)),
	}
	for i, symbol := range symbols {
		trimmed := strings.TrimSpace(symbol)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: empty asset symbol at index %d", ErrConfigurationMismatch, i)
		}
		if _, exists := reg.feeds[trimmed]; exists {
			return nil, fmt.Errorf("%w: duplicate asset symbol %q", ErrConfigurationMismatch, trimmed)
		}
		reg.symbols = append(reg.symbols, trimmed)
		reg.feeds[trimmed] = feeds[i]
		reg.tokens[trimmed] = tokens[i]
	}
	sort.Strings(reg.symbols)
	return reg, nil
}

func (r *registry) contains(symbol string) bool {
	if r == nil {
		return false
	}
	_, ok := r.tokens[symbol]
	return ok
}

func (r *registry) feed(symbol string) (PriceFeed, bool) {
	if r == nil {
		return nil, false
	}
	feed, ok := r.feeds[symbol]
	return feed, ok && feed != nil
}

func (r *registry) token(symbol string) (AssetToken, bool) {
	if r == nil {
		return nil, false
	}
	token, ok := r.tokens[symbol]
	return token, ok && token != nil
}

// Assets returns the registered symbols in sorted order.
func (r *registry) assets() []string {
	if r == nil {
		return nil
	}
	return append([]string{}, r.symbols...)
}
