package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientBalance is returned when a native transfer exceeds the
// sender's balance.
var ErrInsufficientBalance = errors.New("state: insufficient native balance")

var balancePrefix = []byte("account/balance/")

func balanceKey(addr common.Address) []byte {
	buf := make([]byte, len(balancePrefix)+common.AddressLength)
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr.Bytes())
	return buf
}

// Balance returns the native balance held by addr.
func (m *Manager) Balance(addr common.Address) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(balanceKey(addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetBalance overwrites the native balance held by addr.
func (m *Manager) SetBalance(addr common.Address, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	if amount.Sign() == 0 {
		return m.KVDelete(balanceKey(addr))
	}
	return m.KVPut(balanceKey(addr), amount)
}

// AddBalance credits amount to addr.
func (m *Manager) AddBalance(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative credit not allowed")
	}
	current, err := m.Balance(addr)
	if err != nil {
		return err
	}
	return m.SetBalance(addr, current.Add(current, amount))
}

// SubBalance debits amount from addr.
func (m *Manager) SubBalance(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative debit not allowed")
	}
	current, err := m.Balance(addr)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, addr.Hex(), current, amount)
	}
	return m.SetBalance(addr, current.Sub(current, amount))
}

// Transfer moves native value between two accounts.
func (m *Manager) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := m.SubBalance(from, amount); err != nil {
		return err
	}
	return m.AddBalance(to, amount)
}
