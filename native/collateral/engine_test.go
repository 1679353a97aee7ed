package collateral

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"stablemint/crypto"
	nativecommon "stablemint/native/common"
	"stablemint/native/token"
)

const wethSymbol = "WETH"

var (
	oneWETH   = mustBigInt("1000000000000000000")
	price2000 = big.NewInt(200_000_000_000) // $2000 at 8 feed decimals
	price1000 = big.NewInt(100_000_000_000) // $1000 at 8 feed decimals
	usd1000   = mustBigInt("1000000000000000000000")
	usd1001   = mustBigInt("1001000000000000000000")
	usd500    = mustBigInt("500000000000000000000")
	usd2000   = mustBigInt("2000000000000000000000")
)

func makeAddress(last byte) crypto.Address {
	buf := make([]byte, 20)
	buf[19] = last
	return crypto.NewAddress(crypto.SMTPrefix, buf)
}

type mockEngineState struct {
	positions map[string]*Position
	putErr    error
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{positions: make(map[string]*Position)}
}

func (s *mockEngineState) key(addr crypto.Address) string { return string(addr.Bytes()) }

func (s *mockEngineState) GetPosition(addr crypto.Address) (*Position, error) {
	if pos, ok := s.positions[s.key(addr)]; ok {
		return pos.Clone(), nil
	}
	return nil, nil
}

func (s *mockEngineState) PutPosition(pos *Position) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.positions[s.key(pos.Address)] = pos.Clone()
	return nil
}

type fixture struct {
	engine    *Engine
	state     *mockEngineState
	stable    *token.Ledger
	weth      *token.Ledger
	feed      *ManualFeed
	module    crypto.Address
	authority crypto.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newRiskFixture(t, RiskParameters{
		LiquidationThresholdBps: 5000,
		LiquidationBonusBps:     1000,
		MaxQuoteAge:             time.Hour,
	})
}

func newRiskFixture(t *testing.T, params RiskParameters) *fixture {
	t.Helper()
	module := makeAddress(0x01)
	authority := makeAddress(0x02)
	feed := NewManualFeed(price2000, 8)
	stable := token.NewLedger("SUSD", module)
	weth := token.NewLedger(wethSymbol, authority)

	engine, err := NewEngine(module, params, stable, []string{wethSymbol}, []PriceFeed{feed}, []AssetToken{weth})
	if err != nil {
		t.Fatalf("construct engine: %v", err)
	}
	state := newMockEngineState()
	engine.SetState(state)

	return &fixture{
		engine:    engine,
		state:     state,
		stable:    stable,
		weth:      weth,
		feed:      feed,
		module:    module,
		authority: authority,
	}
}

// fund mints collateral into the account's wallet and approves the engine.
func (f *fixture) fund(t *testing.T, account crypto.Address, amount *big.Int) {
	t.Helper()
	if err := f.weth.Mint(f.authority, account, amount); err != nil {
		t.Fatalf("fund account: %v", err)
	}
	f.weth.Approve(account, f.module, amount)
}

func TestValueInUSDNormalizesFeedDecimals(t *testing.T) {
	f := newFixture(t)

	value, err := f.engine.ValueInUSD(wethSymbol, oneWETH)
	if err != nil {
		t.Fatalf("value in usd: %v", err)
	}
	if value.Cmp(usd2000) != 0 {
		t.Fatalf("expected 2000e18, got %s", value)
	}
}

func TestValueInUSDZeroAmount(t *testing.T) {
	f := newFixture(t)

	value, err := f.engine.ValueInUSD(wethSymbol, big.NewInt(0))
	if err != nil {
		t.Fatalf("value in usd: %v", err)
	}
	if value.Sign() != 0 {
		t.Fatalf("expected zero value, got %s", value)
	}
}

func TestDepositRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)

	if err := f.engine.DepositCollateral(user, wethSymbol, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := f.engine.DepositCollateral(user, "DOGE", oneWETH); !errors.Is(err, ErrAssetNotAllowed) {
		t.Fatalf("expected ErrAssetNotAllowed, got %v", err)
	}

	if len(f.state.positions) != 0 {
		t.Fatalf("expected no ledger mutation, found %d positions", len(f.state.positions))
	}
	if balance := f.weth.BalanceOf(user); balance.Cmp(oneWETH) != 0 {
		t.Fatalf("expected wallet untouched, got %s", balance)
	}
}

func TestDepositRedeemRoundTrip(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)

	if err := f.engine.DepositCollateral(user, wethSymbol, oneWETH); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balance := f.weth.BalanceOf(user); balance.Sign() != 0 {
		t.Fatalf("expected wallet drained after deposit, got %s", balance)
	}
	if custody := f.weth.BalanceOf(f.module); custody.Cmp(oneWETH) != 0 {
		t.Fatalf("expected module custody of deposit, got %s", custody)
	}

	if err := f.engine.RedeemCollateral(user, wethSymbol, oneWETH); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	pos := f.state.positions[f.state.key(user)]
	if pos.CollateralOf(wethSymbol).Sign() != 0 {
		t.Fatalf("expected zero position after round trip, got %s", pos.CollateralOf(wethSymbol))
	}
	if balance := f.weth.BalanceOf(user); balance.Cmp(oneWETH) != 0 {
		t.Fatalf("expected wallet restored, got %s", balance)
	}
}

func TestMintRequiresOvercollateralization(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)

	if err := f.engine.DepositCollateral(user, wethSymbol, oneWETH); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// $2000 collateral at a 50% threshold backs at most 1000 units.
	err := f.engine.MintStable(user, usd1001)
	if !errors.Is(err, ErrHealthFactorBroken) {
		t.Fatalf("expected health factor error, got %v", err)
	}
	var hfErr *HealthFactorError
	if !errors.As(err, &hfErr) {
		t.Fatalf("expected HealthFactorError, got %T", err)
	}
	if hfErr.Value == nil || hfErr.Value.Cmp(MinimumHealthFactor) >= 0 {
		t.Fatalf("expected diagnostic ratio below minimum, got %s", hfErr.Value)
	}

	pos := f.state.positions[f.state.key(user)]
	if pos.Debt.Sign() != 0 {
		t.Fatalf("expected debt unchanged, got %s", pos.Debt)
	}
	if supply := f.stable.BalanceOf(user); supply.Sign() != 0 {
		t.Fatalf("expected no stablecoin issued, got %s", supply)
	}
}

func TestMintAtThresholdBoundary(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)

	if err := f.engine.DepositCollateral(user, wethSymbol, oneWETH); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.MintStable(user, usd1000); err != nil {
		t.Fatalf("mint at boundary: %v", err)
	}

	ratio, err := f.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if ratio.Cmp(MinimumHealthFactor) != 0 {
		t.Fatalf("expected health factor exactly at minimum, got %s", ratio)
	}
	if balance := f.stable.BalanceOf(user); balance.Cmp(usd1000) != 0 {
		t.Fatalf("expected 1000e18 stablecoin issued, got %s", balance)
	}
}

func TestRedeemGuardsSolvency(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)

	if err := f.engine.DepositCollateral(user, wethSymbol, oneWETH); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.MintStable(user, usd1000); err != nil {
		t.Fatalf("mint: %v", err)
	}

	err := f.engine.RedeemCollateral(user, wethSymbol, big.NewInt(1))
	if !errors.Is(err, ErrHealthFactorBroken) {
		t.Fatalf("expected health factor error, got %v", err)
	}
	pos := f.state.positions[f.state.key(user)]
	if pos.CollateralOf(wethSymbol).Cmp(oneWETH) != 0 {
		t.Fatalf("expected position unchanged, got %s", pos.CollateralOf(wethSymbol))
	}
}

func TestBurnReducesDebt(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)

	if err := f.engine.DepositCollateral(user, wethSymbol, oneWETH); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.MintStable(user, usd1000); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := f.engine.BurnStable(user, usd500); err != nil {
		t.Fatalf("burn: %v", err)
	}
	pos := f.state.positions[f.state.key(user)]
	if pos.Debt.Cmp(usd500) != 0 {
		t.Fatalf("expected 500e18 debt remaining, got %s", pos.Debt)
	}
	if balance := f.stable.BalanceOf(user); balance.Cmp(usd500) != 0 {
		t.Fatalf("expected 500e18 stablecoin remaining, got %s", balance)
	}

	if err := f.engine.BurnStable(user, usd1000); !errors.Is(err, ErrInsufficientDebt) {
		t.Fatalf("expected ErrInsufficientDebt, got %v", err)
	}
}

func TestRedeemCollateralForStable(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)

	if err := f.engine.DepositCollateralAndMint(user, wethSymbol, oneWETH, usd1000); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}

	half := new(big.Int).Rsh(oneWETH, 1)
	if err := f.engine.RedeemCollateralForStable(user, wethSymbol, half, usd500); err != nil {
		t.Fatalf("redeem for stable: %v", err)
	}
	pos := f.state.positions[f.state.key(user)]
	if pos.Debt.Cmp(usd500) != 0 {
		t.Fatalf("expected 500e18 debt, got %s", pos.Debt)
	}
	if pos.CollateralOf(wethSymbol).Cmp(half) != 0 {
		t.Fatalf("expected half collateral remaining, got %s", pos.CollateralOf(wethSymbol))
	}
	if balance := f.weth.BalanceOf(user); balance.Cmp(half) != 0 {
		t.Fatalf("expected half collateral returned, got %s", balance)
	}
}

// failingStable rejects mints to exercise the orchestrator's unwind path.
type failingStable struct {
	err error
}

func (s failingStable) Mint(_, _ crypto.Address, _ *big.Int) error { return s.err }
func (s failingStable) Burn(_, _ crypto.Address, _ *big.Int) error { return nil }
func (s failingStable) BalanceOf(crypto.Address) *big.Int          { return big.NewInt(0) }

func TestDepositAndMintUnwindsOnMintFailure(t *testing.T) {
	module := makeAddress(0x01)
	authority := makeAddress(0x02)
	feed := NewManualFeed(price2000, 8)
	weth := token.NewLedger(wethSymbol, authority)
	stable := failingStable{err: errors.New("ledger offline")}

	engine, err := NewEngine(module, RiskParameters{LiquidationThresholdBps: 5000}, stable,
		[]string{wethSymbol}, []PriceFeed{feed}, []AssetToken{weth})
	if err != nil {
		t.Fatalf("construct engine: %v", err)
	}
	state := newMockEngineState()
	engine.SetState(state)

	user := makeAddress(0x10)
	if err := weth.Mint(authority, user, oneWETH); err != nil {
		t.Fatalf("fund: %v", err)
	}
	weth.Approve(user, module, oneWETH)

	err = engine.DepositCollateralAndMint(user, wethSymbol, oneWETH, usd500)
	if !errors.Is(err, ErrMintFailed) {
		t.Fatalf("expected ErrMintFailed, got %v", err)
	}
	if len(state.positions) != 0 {
		t.Fatalf("expected deposit rolled back, found %d positions", len(state.positions))
	}
	if balance := weth.BalanceOf(user); balance.Cmp(oneWETH) != 0 {
		t.Fatalf("expected collateral returned to wallet, got %s", balance)
	}
}

// reentrantToken calls back into the engine mid-transfer the way a malicious
// asset contract would.
type reentrantToken struct {
	engine  *Engine
	account crypto.Address
	inner   error
}

func (r *reentrantToken) Transfer(_, _ crypto.Address, _ *big.Int) error { return nil }

func (r *reentrantToken) TransferFrom(_, _, _ crypto.Address, _ *big.Int) error {
	r.inner = r.engine.DepositCollateral(r.account, wethSymbol, big.NewInt(1))
	return r.inner
}

func TestReentrantCallRejected(t *testing.T) {
	module := makeAddress(0x01)
	feed := NewManualFeed(price2000, 8)
	stable := token.NewLedger("SUSD", module)
	hostile := &reentrantToken{}

	engine, err := NewEngine(module, RiskParameters{LiquidationThresholdBps: 5000}, stable,
		[]string{wethSymbol}, []PriceFeed{feed}, []AssetToken{hostile})
	if err != nil {
		t.Fatalf("construct engine: %v", err)
	}
	state := newMockEngineState()
	engine.SetState(state)

	user := makeAddress(0x10)
	hostile.engine = engine
	hostile.account = user

	err = engine.DepositCollateral(user, wethSymbol, oneWETH)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failure from rejected callback, got %v", err)
	}
	if !errors.Is(hostile.inner, ErrReentrant) {
		t.Fatalf("expected nested call to fail with ErrReentrant, got %v", hostile.inner)
	}
	if len(state.positions) != 0 {
		t.Fatalf("expected no ledger mutation, found %d positions", len(state.positions))
	}
}

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

func TestPauseGuardBlocksMutation(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, oneWETH)
	f.engine.SetPauses(stubPauseView{modules: map[string]bool{moduleName: true}})

	err := f.engine.DepositCollateral(user, wethSymbol, oneWETH)
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if balance := f.weth.BalanceOf(user); balance.Cmp(oneWETH) != 0 {
		t.Fatalf("expected wallet untouched, got %s", balance)
	}

	// Read-only queries stay available while paused.
	if _, err := f.engine.HealthFactor(user); err != nil {
		t.Fatalf("health factor while paused: %v", err)
	}
}

func TestHealthFactorUnboundedWithoutDebt(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)

	ratio, err := f.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if !Unbounded(ratio) {
		t.Fatalf("expected unbounded ratio for debt-free account, got %s", ratio)
	}
}
