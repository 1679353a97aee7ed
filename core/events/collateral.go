package events

import (
	"math/big"

	"stablemint/crypto"
)

const (
	// TypeCollateralDeposited is emitted when collateral is locked in the engine.
	TypeCollateralDeposited = "collateral.deposited"
	// TypeCollateralRedeemed is emitted when collateral is released back to an account.
	TypeCollateralRedeemed = "collateral.redeemed"
	// TypeStableMinted is emitted when synthetic currency is issued against collateral.
	TypeStableMinted = "stable.minted"
	// TypeStableBurned is emitted when synthetic currency is retired.
	TypeStableBurned = "stable.burned"
	// TypeLiquidated is emitted when a third party liquidates an unhealthy account.
	TypeLiquidated = "collateral.liquidated"
)

type CollateralDeposited struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Attributes() map[string]string {
	return map[string]string{
		"account": e.Account.String(),
		"asset":   e.Asset,
		"amount":  amountString(e.Amount),
	}
}

type CollateralRedeemed struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

func (e CollateralRedeemed) Attributes() map[string]string {
	return map[string]string{
		"account": e.Account.String(),
		"asset":   e.Asset,
		"amount":  amountString(e.Amount),
	}
}

type StableMinted struct {
	Account crypto.Address
	Amount  *big.Int
}

func (StableMinted) EventType() string { return TypeStableMinted }

func (e StableMinted) Attributes() map[string]string {
	return map[string]string{
		"account": e.Account.String(),
		"amount":  amountString(e.Amount),
	}
}

type StableBurned struct {
	Account crypto.Address
	Amount  *big.Int
}

func (StableBurned) EventType() string { return TypeStableBurned }

func (e StableBurned) Attributes() map[string]string {
	return map[string]string{
		"account": e.Account.String(),
		"amount":  amountString(e.Amount),
	}
}

type Liquidated struct {
	Liquidator  crypto.Address
	Target      crypto.Address
	Asset       string
	DebtCovered *big.Int
	Seized      *big.Int
}

func (Liquidated) EventType() string { return TypeLiquidated }

func (e Liquidated) Attributes() map[string]string {
	return map[string]string{
		"liquidator":  e.Liquidator.String(),
		"target":      e.Target.String(),
		"asset":       e.Asset,
		"debtCovered": amountString(e.DebtCovered),
		"seized":      amountString(e.Seized),
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
