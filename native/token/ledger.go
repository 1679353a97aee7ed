package token

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"stablemint/crypto"
)

var (
	errInvalidAmount         = errors.New("token ledger: amount must be positive")
	errInsufficientBalance   = errors.New("token ledger: insufficient balance")
	errInsufficientAllowance = errors.New("token ledger: insufficient allowance")
	errUnauthorizedMint      = errors.New("token ledger: caller is not the mint authority")
	errUnauthorizedBurn      = errors.New("token ledger: caller is not the burn authority")
)

// ErrInsufficientBalance is exposed so callers can distinguish a burn that
// exceeds the circulating balance from other ledger failures.
var ErrInsufficientBalance = errInsufficientBalance

// Ledger is a conventional balance ledger with owner-gated mint and burn.
// The stablecoin instance hands its mint authority to the engine; plain
// collateral assets are constructed without one and only move via transfers.
type Ledger struct {
	mu         sync.RWMutex
	symbol     string
	authority  crypto.Address
	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

// NewLedger constructs a ledger for the given asset symbol. The authority is
// the only address permitted to mint and burn; a zero authority disables both.
func NewLedger(symbol string, authority crypto.Address) *Ledger {
	return &Ledger{
		symbol:     strings.TrimSpace(symbol),
		authority:  authority,
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}
}

// Symbol returns the asset symbol the ledger tracks.
func (l *Ledger) Symbol() string {
	if l == nil {
		return ""
	}
	return l.symbol
}

// BalanceOf returns the current balance for the address.
func (l *Ledger) BalanceOf(addr crypto.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balance(addr))
}

// Mint credits freshly issued units to the recipient. Only the configured
// authority may mint.
func (l *Ledger) Mint(caller, to crypto.Address, amount *big.Int) error {
	if l == nil {
		return errUnauthorizedMint
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.authority.IsZero() || !caller.Equal(l.authority) {
		return errUnauthorizedMint
	}
	l.setBalance(to, new(big.Int).Add(l.balance(to), amount))
	return nil
}

// Burn retires units from the holder's balance. Only the configured authority
// may burn, and the holder's circulating balance must cover the amount.
func (l *Ledger) Burn(caller, from crypto.Address, amount *big.Int) error {
	if l == nil {
		return errUnauthorizedBurn
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.authority.IsZero() || !caller.Equal(l.authority) {
		return errUnauthorizedBurn
	}
	balance := l.balance(from)
	if balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	l.setBalance(from, new(big.Int).Sub(balance, amount))
	return nil
}

// Transfer moves units between accounts.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if l == nil {
		return errInsufficientBalance
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

// Approve grants the spender an allowance over the owner's balance.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) {
	if l == nil || amount == nil || amount.Sign() < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	grants, ok := l.allowances[l.key(owner)]
	if !ok {
		grants = make(map[string]*big.Int)
		l.allowances[l.key(owner)] = grants
	}
	grants[l.key(spender)] = new(big.Int).Set(amount)
}

// Allowance returns the remaining allowance granted by owner to spender.
func (l *Ledger) Allowance(owner, spender crypto.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.allowance(owner, spender))
}

// TransferFrom moves units from an account the spender was approved on.
func (l *Ledger) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if l == nil {
		return errInsufficientBalance
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	allowance := l.allowance(from, spender)
	if allowance.Cmp(amount) < 0 {
		return errInsufficientAllowance
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.allowances[l.key(from)][l.key(spender)] = new(big.Int).Sub(allowance, amount)
	return nil
}

func (l *Ledger) move(from, to crypto.Address, amount *big.Int) error {
	balance := l.balance(from)
	if balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	l.setBalance(from, new(big.Int).Sub(balance, amount))
	l.setBalance(to, new(big.Int).Add(l.balance(to), amount))
	return nil
}

func (l *Ledger) balance(addr crypto.Address) *big.Int {
	if balance, ok := l.balances[l.key(addr)]; ok {
		return balance
	}
	return big.NewInt(0)
}

func (l *Ledger) setBalance(addr crypto.Address, amount *big.Int) {
	l.balances[l.key(addr)] = amount
}

func (l *Ledger) allowance(owner, spender crypto.Address) *big.Int {
	if grants, ok := l.allowances[l.key(owner)]; ok {
		if allowance, ok := grants[l.key(spender)]; ok {
			return allowance
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) key(addr crypto.Address) string {
	return string(addr.Bytes())
}
