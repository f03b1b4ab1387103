package tokens

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is a fungible balance contract with allowances.
type ERC20 struct {
	base
}

func NewERC20(addr common.Address, name string, state kvState) *ERC20 {
	return &ERC20{base{addr: addr, name: name, state: state}}
}

func (t *ERC20) Standard() string { return StandardERC20 }

func (t *ERC20) balanceKey(holder common.Address) []byte {
	return tokenKey(t.addr, "balance", holder.Bytes())
}

func (t *ERC20) allowanceKey(owner, spender common.Address) []byte {
	return tokenKey(t.addr, "allowance", owner.Bytes(), spender.Bytes())
}

func (t *ERC20) BalanceOf(holder common.Address) (*big.Int, error) {
	return t.loadBig(t.balanceKey(holder))
}

func (t *ERC20) Allowance(owner, spender common.Address) (*big.Int, error) {
	return t.loadBig(t.allowanceKey(owner, spender))
}

// Mint credits amount to holder.
func (t *ERC20) Mint(holder common.Address, amount *big.Int) error {
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := t.BalanceOf(holder)
	if err != nil {
		return err
	}
	return t.storeBig(t.balanceKey(holder), balance.Add(balance, amount))
}

// Approve sets the amount spender may move out of owner's balance.
func (t *ERC20) Approve(owner, spender common.Address, amount *big.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	return t.storeBig(t.allowanceKey(owner, spender), amount)
}

// TransferFrom moves amount from one holder to another. An operator other
// than from spends allowance.
func (t *ERC20) TransferFrom(operator, from, to common.Address, amount *big.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if operator != from {
		allowance, err := t.Allowance(from, operator)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s allows %s, needs %s", ErrInsufficientAllowance, from.Hex(), allowance, amount)
		}
		if err := t.storeBig(t.allowanceKey(from, operator), allowance.Sub(allowance, amount)); err != nil {
			return err
		}
	}
	fromBalance, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance, amount)
	}
	if err := t.storeBig(t.balanceKey(from), fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	return t.storeBig(t.balanceKey(to), toBalance.Add(toBalance, amount))
}
