package collateral

import (
	"errors"
	"math/big"
	"sync"
	"time"
)

// PriceFeed resolves the latest quote for a single asset.
type PriceFeed interface {
	LatestQuote() (Quote, error)
}

// ErrNoFreshQuote indicates that no registered feed produced a usable quote
// within the freshness window.
var ErrNoFreshQuote = errors.New("collateral oracle: no fresh quote available")

// ManualFeed is an operator-settable quote source used for bootstrap
// deployments and tests.
type ManualFeed struct {
	mu    sync.RWMutex
	quote Quote
}

// NewManualFeed constructs a feed reporting the given price at the given
// feed precision, observed now.
func NewManualFeed(price *big.Int, decimals uint8) *ManualFeed {
	feed := &ManualFeed{}
	feed.Set(price, time.Now())
	feed.quote.Decimals = decimals
	return feed
}

// Set replaces the reported price and observation time.
func (f *ManualFeed) Set(price *big.Int, observedAt time.Time) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if price != nil {
		f.quote.Price = new(big.Int).Set(price)
	} else {
		f.quote.Price = big.NewInt(0)
	}
	f.quote.ObservedAt = observedAt
}

// LatestQuote implements the PriceFeed interface.
func (f *ManualFeed) LatestQuote() (Quote, error) {
	if f == nil {
		return Quote{}, ErrNoFreshQuote
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	quote := f.quote
	if quote.Price != nil {
		quote.Price = new(big.Int).Set(quote.Price)
	}
	return quote, nil
}

// MultiFeed consults child feeds in priority order and returns the first
// quote that is valid and, when maxAge is positive, fresh enough. It lets a
// secondary oracle back up the primary without widening the engine's view.
type MultiFeed struct {
	feeds  []PriceFeed
	maxAge time.Duration
	now    func() time.Time
}

// NewMultiFeed constructs an ordered fallback over the provided feeds.
func NewMultiFeed(maxAge time.Duration, feeds ...PriceFeed) *MultiFeed {
	return &MultiFeed{
		feeds:  append([]PriceFeed{}, feeds...),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// LatestQuote implements the PriceFeed interface.
func (m *MultiFeed) LatestQuote() (Quote, error) {
	if m == nil || len(m.feeds) == 0 {
		return Quote{}, ErrNoFreshQuote
	}
	var lastErr error
	for _, feed := range m.feeds {
		if feed == nil {
			continue
		}
		quote, err := feed.LatestQuote()
		if err != nil {
			lastErr = err
			continue
		}
		if quote.Price == nil || quote.Price.Sign() <= 0 {
			lastErr = ErrInvalidPrice
			continue
		}
		if m.maxAge > 0 && m.now().Sub(quote.ObservedAt) > m.maxAge {
			lastErr = ErrStalePrice
			continue
		}
		return quote, nil
	}
	if lastErr != nil {
		return Quote{}, lastErr
	}
	return Quote{}, ErrNoFreshQuote
}
