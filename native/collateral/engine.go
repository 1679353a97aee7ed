package collateral

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"stablemint/core/events"
	"stablemint/crypto"
	nativecommon "stablemint/native/common"
)

const moduleName = "collateral"

// StableToken is the pegged-currency ledger the engine issues against
// collateral. Mint and burn are authority-gated; the engine passes its module
// address as the caller.
type StableToken interface {
	Mint(caller, to crypto.Address, amount *big.Int) error
	Burn(caller, from crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) *big.Int
}

type engineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(pos *Position) error
}

// Engine orchestrates the collateral, debt and liquidation state transitions.
// Every mutating entry point runs to completion or leaves the ledgers
// unchanged; nested invocation is rejected.
type Engine struct {
	state    engineState
	module   crypto.Address
	params   RiskParameters
	registry *registry
	stable   StableToken
	pauses   nativecommon.PauseView
	emitter  events.Emitter
	now      func() time.Time

	opMu sync.Mutex
	busy bool
}

// NewEngine constructs the engine from parallel asset, oracle and token
// lists. The lists must have equal length or construction fails.
func NewEngine(module crypto.Address, params RiskParameters, stable StableToken, symbols []string, feeds []PriceFeed, tokens []AssetToken) (*Engine, error) {
	reg, err := newRegistry(symbols, feeds, tokens)
	if err != nil {
		return nil, err
	}
	return &Engine{
		module:   module,
		params:   params,
		registry: reg,
		stable:   stable,
		emitter:  events.NoopEmitter{},
		now:      time.Now,
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the operator pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter replaces the event sink. A nil emitter restores the noop default.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetClock overrides the time source used for quote staleness checks.
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

// ModuleAddress returns the engine's custody address. The stablecoin ledger
// must grant this address its mint and burn authority.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.module
}

// Params returns the configured risk parameters.
func (e *Engine) Params() RiskParameters {
	return e.params
}

// Assets returns the registered collateral symbols in sorted order.
func (e *Engine) Assets() []string {
	return e.registry.assets()
}

// begin guards a mutating entry point: state wired, module not paused, no
// operation already in flight. An external callback re-entering the engine
// before end() runs is rejected with ErrReentrant.
func (e *Engine) begin() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.busy {
		return ErrReentrant
	}
	e.busy = true
	return nil
}

func (e *Engine) end() {
	e.opMu.Lock()
	e.busy = false
	e.opMu.Unlock()
}

func (e *Engine) loadPosition(addr crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return NewPosition(addr), nil
	}
	if pos.Collateral == nil {
		pos.Collateral = make(map[string]*big.Int)
	}
	if pos.Debt == nil {
		pos.Debt = big.NewInt(0)
	}
	return pos, nil
}

// DepositCollateral locks collateral for the account. The engine pulls the
// asset via the token's allowance, so the account must approve the module
// address beforehand.
func (e *Engine) DepositCollateral(account crypto.Address, symbol string, amount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.deposit(account, symbol, amount)
}

func (e *Engine) deposit(account crypto.Address, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	token, ok := e.registry.token(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotAllowed, symbol)
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	updated := pos.Clone()
	updated.Collateral[symbol] = new(big.Int).Add(updated.CollateralOf(symbol), amount)

	if err := token.TransferFrom(e.module, account, e.module, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := e.state.PutPosition(updated); err != nil {
		// Bookkeeping and custody move together: return the asset on failure.
		_ = token.Transfer(e.module, account, amount)
		return err
	}
	e.emitter.Emit(events.CollateralDeposited{Account: account, Asset: symbol, Amount: new(big.Int).Set(amount)})
	return nil
}

// MintStable issues pegged currency against the account's collateral. The
// solvency invariant is checked on the projected debt before any effect.
func (e *Engine) MintStable(account crypto.Address, amount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.mint(account, amount)
}

func (e *Engine) mint(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	updated := pos.Clone()
	updated.Debt = new(big.Int).Add(updated.Debt, amount)
	if err := e.assertSolvent(updated); err != nil {
		return err
	}
	if err := e.stable.Mint(e.module, account, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrMintFailed, err)
	}
	if err := e.state.PutPosition(updated); err != nil {
		_ = e.stable.Burn(e.module, account, amount)
		return err
	}
	e.emitter.Emit(events.StableMinted{Account: account, Amount: new(big.Int).Set(amount)})
	return nil
}

// DepositCollateralAndMint composes deposit and mint as one atomic unit. If
// the mint's solvency check fails the deposit never happens.
func (e *Engine) DepositCollateralAndMint(account crypto.Address, symbol string, collateralAmount, mintAmount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if collateralAmount == nil || collateralAmount.Sign() <= 0 || mintAmount == nil || mintAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	token, ok := e.registry.token(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotAllowed, symbol)
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	updated := pos.Clone()
	updated.Collateral[symbol] = new(big.Int).Add(updated.CollateralOf(symbol), collateralAmount)
	updated.Debt = new(big.Int).Add(updated.Debt, mintAmount)
	if err := e.assertSolvent(updated); err != nil {
		return err
	}

	if err := token.TransferFrom(e.module, account, e.module, collateralAmount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := e.stable.Mint(e.module, account, mintAmount); err != nil {
		_ = token.Transfer(e.module, account, collateralAmount)
		return fmt.Errorf("%w: %w", ErrMintFailed, err)
	}
	if err := e.state.PutPosition(updated); err != nil {
		_ = e.stable.Burn(e.module, account, mintAmount)
		_ = token.Transfer(e.module, account, collateralAmount)
		return err
	}
	e.emitter.Emit(events.CollateralDeposited{Account: account, Asset: symbol, Amount: new(big.Int).Set(collateralAmount)})
	e.emitter.Emit(events.StableMinted{Account: account, Amount: new(big.Int).Set(mintAmount)})
	return nil
}

// RedeemCollateral releases collateral back to the account. With outstanding
// debt the projected position must stay solvent or the whole redemption is
// rejected.
func (e *Engine) RedeemCollateral(account crypto.Address, symbol string, amount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.redeem(account, symbol, amount)
}

func (e *Engine) redeem(account crypto.Address, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	token, ok := e.registry.token(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotAllowed, symbol)
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if pos.CollateralOf(symbol).Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	updated := pos.Clone()
	updated.Collateral[symbol] = new(big.Int).Sub(updated.CollateralOf(symbol), amount)
	if updated.Debt.Sign() > 0 {
		if err := e.assertSolvent(updated); err != nil {
			return err
		}
	}

	if err := token.Transfer(e.module, account, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := e.state.PutPosition(updated); err != nil {
		_ = token.Transfer(account, e.module, amount)
		return err
	}
	e.emitter.Emit(events.CollateralRedeemed{Account: account, Asset: symbol, Amount: new(big.Int).Set(amount)})
	return nil
}

// BurnStable retires pegged currency and reduces the account's debt.
func (e *Engine) BurnStable(account crypto.Address, amount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.burn(account, amount)
}

func (e *Engine) burn(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if pos.Debt.Cmp(amount) < 0 {
		return ErrInsufficientDebt
	}
	updated := pos.Clone()
	updated.Debt = new(big.Int).Sub(updated.Debt, amount)

	if err := e.stable.Burn(e.module, account, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrBurnFailed, err)
	}
	if err := e.state.PutPosition(updated); err != nil {
		_ = e.stable.Mint(e.module, account, amount)
		return err
	}
	e.emitter.Emit(events.StableBurned{Account: account, Amount: new(big.Int).Set(amount)})
	return nil
}

// RedeemCollateralForStable composes burn and redeem atomically: debt is
// retired first so the redemption is checked against the reduced debt.
func (e *Engine) RedeemCollateralForStable(account crypto.Address, symbol string, amount, burnAmount *big.Int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if amount == nil || amount.Sign() <= 0 || burnAmount == nil || burnAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	token, ok := e.registry.token(symbol)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotAllowed, symbol)
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if pos.Debt.Cmp(burnAmount) < 0 {
		return ErrInsufficientDebt
	}
	if pos.CollateralOf(symbol).Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	updated := pos.Clone()
	updated.Debt = new(big.Int).Sub(updated.Debt, burnAmount)
	updated.Collateral[symbol] = new(big.Int).Sub(updated.CollateralOf(symbol), amount)
	if updated.Debt.Sign() > 0 {
		if err := e.assertSolvent(updated); err != nil {
			return err
		}
	}

	if err := e.stable.Burn(e.module, account, burnAmount); err != nil {
		return fmt.Errorf("%w: %w", ErrBurnFailed, err)
	}
	if err := token.Transfer(e.module, account, amount); err != nil {
		_ = e.stable.Mint(e.module, account, burnAmount)
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := e.state.PutPosition(updated); err != nil {
		_ = e.stable.Mint(e.module, account, burnAmount)
		_ = token.Transfer(account, e.module, amount)
		return err
	}
	e.emitter.Emit(events.StableBurned{Account: account, Amount: new(big.Int).Set(burnAmount)})
	e.emitter.Emit(events.CollateralRedeemed{Account: account, Asset: symbol, Amount: new(big.Int).Set(amount)})
	return nil
}

// Liquidate lets a third party repay part of an undercollateralized account's
// debt in exchange for a discounted share of its collateral in the chosen
// asset. Returns the seized collateral amount in native units.
func (e *Engine) Liquidate(liquidator, target crypto.Address, symbol string, debtToCover *big.Int) (*big.Int, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	token, ok := e.registry.token(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotAllowed, symbol)
	}
	targetPos, err := e.loadPosition(target)
	if err != nil {
		return nil, err
	}
	if targetPos.Debt.Sign() == 0 || targetPos.Debt.Cmp(debtToCover) < 0 {
		return nil, ErrInsufficientDebt
	}
	startingHealth, err := e.healthFactorFor(targetPos)
	if err != nil {
		return nil, err
	}
	if startingHealth.Cmp(MinimumHealthFactor) >= 0 {
		return nil, ErrHealthFactorOk
	}

	base, err := e.collateralFromUSD(symbol, debtToCover)
	if err != nil {
		return nil, err
	}
	bonus := mulDivFloor(base, new(big.Int).SetUint64(e.params.LiquidationBonusBps), basisPoints)
	seize := new(big.Int).Add(base, bonus)
	if targetPos.CollateralOf(symbol).Cmp(seize) < 0 {
		// Policy: no clamping. The liquidator chooses a smaller debtToCover
		// rather than the engine silently changing the economics.
		return nil, ErrInsufficientCollateral
	}

	updated := targetPos.Clone()
	updated.Collateral[symbol] = new(big.Int).Sub(updated.CollateralOf(symbol), seize)
	updated.Debt = new(big.Int).Sub(updated.Debt, debtToCover)

	endingHealth, err := e.healthFactorFor(updated)
	if err != nil {
		return nil, err
	}
	if endingHealth.Cmp(MinimumHealthFactor) < 0 {
		// The target stays broken, so the liquidation must at least shrink
		// the unbacked share of its debt. A seizure that deepens the hole is
		// rejected outright.
		before, err := e.debtShortfall(targetPos)
		if err != nil {
			return nil, err
		}
		after, err := e.debtShortfall(updated)
		if err != nil {
			return nil, err
		}
		if after.Cmp(before) >= 0 {
			return nil, ErrHealthFactorNotImproved
		}
	}
	if !liquidator.Equal(target) {
		liquidatorPos, err := e.loadPosition(liquidator)
		if err != nil {
			return nil, err
		}
		if err := e.assertSolvent(liquidatorPos); err != nil {
			return nil, err
		}
	}

	if err := e.stable.Burn(e.module, liquidator, debtToCover); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBurnFailed, err)
	}
	if err := token.Transfer(e.module, liquidator, seize); err != nil {
		_ = e.stable.Mint(e.module, liquidator, debtToCover)
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := e.state.PutPosition(updated); err != nil {
		_ = e.stable.Mint(e.module, liquidator, debtToCover)
		_ = token.Transfer(liquidator, e.module, seize)
		return nil, err
	}
	e.emitter.Emit(events.Liquidated{
		Liquidator:  liquidator,
		Target:      target,
		Asset:       symbol,
		DebtCovered: new(big.Int).Set(debtToCover),
		Seized:      new(big.Int).Set(seize),
	})
	return seize, nil
}
