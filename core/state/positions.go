package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stablemint/crypto"
	"stablemint/native/collateral"
	"stablemint/storage"
)

var positionPrefix = []byte("collateral-position:")

// storedCollateral flattens the position's collateral map into a
// deterministic slice for RLP encoding.
type storedCollateral struct {
	Symbol string
	Amount *big.Int
}

type storedPosition struct {
	Collateral []storedCollateral
	Debt       *big.Int
}

// Manager persists account positions in a key-value database and satisfies
// the collateral engine's state interface.
type Manager struct {
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func positionKey(addr crypto.Address) []byte {
	buf := make([]byte, len(positionPrefix)+len(addr.Bytes()))
	copy(buf, positionPrefix)
	copy(buf[len(positionPrefix):], addr.Bytes())
	return ethcrypto.Keccak256(buf)
}

// GetPosition loads the stored position for the address. A missing entry
// returns nil so the engine can start a fresh position.
func (m *Manager) GetPosition(addr crypto.Address) (*collateral.Position, error) {
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("state: database not configured")
	}
	raw, err := m.db.Get(positionKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: load position: %w", err)
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode position: %w", err)
	}
	pos := collateral.NewPosition(addr)
	for _, entry := range stored.Collateral {
		if entry.Amount == nil {
			continue
		}
		pos.Collateral[entry.Symbol] = new(big.Int).Set(entry.Amount)
	}
	if stored.Debt != nil {
		pos.Debt = new(big.Int).Set(stored.Debt)
	}
	return pos, nil
}

// PutPosition writes the position, flattening the collateral map in sorted
// symbol order so the encoding stays deterministic.
func (m *Manager) PutPosition(pos *collateral.Position) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	if pos == nil {
		return fmt.Errorf("state: nil position")
	}
	symbols := make([]string, 0, len(pos.Collateral))
	for symbol := range pos.Collateral {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	stored := storedPosition{Debt: pos.Debt}
	if stored.Debt == nil {
		stored.Debt = big.NewInt(0)
	}
	for _, symbol := range symbols {
		amount := pos.Collateral[symbol]
		if amount == nil {
			amount = big.NewInt(0)
		}
		stored.Collateral = append(stored.Collateral, storedCollateral{Symbol: symbol, Amount: amount})
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return fmt.Errorf("state: encode position: %w", err)
	}
	return m.db.Put(positionKey(pos.Address), encoded)
}
