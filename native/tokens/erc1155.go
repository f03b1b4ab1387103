package tokens

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC1155 tracks a quantity per (id, holder).
type ERC1155 struct {
	base
}

func NewERC1155(addr common.Address, name string, state kvState) *ERC1155 {
	return &ERC1155{base{addr: addr, name: name, state: state}}
}

func (t *ERC1155) Standard() string { return StandardERC1155 }

func (t *ERC1155) balanceKey(id *big.Int, holder common.Address) []byte {
	return tokenKey(t.addr, "balance", idBytes(id), holder.Bytes())
}

func (t *ERC1155) operatorKey(owner, operator common.Address) []byte {
	return tokenKey(t.addr, "operator", owner.Bytes(), operator.Bytes())
}

func (t *ERC1155) BalanceOf(holder common.Address, id *big.Int) (*big.Int, error) {
	if err := checkAmount(id); err != nil {
		return nil, err
	}
	return t.loadBig(t.balanceKey(id, holder))
}

func (t *ERC1155) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	return t.loadFlag(t.operatorKey(owner, operator))
}

func (t *ERC1155) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	if owner == (common.Address{}) || operator == (common.Address{}) {
		return ErrZeroAddress
	}
	return t.storeFlag(t.operatorKey(owner, operator), approved)
}

// Mint credits quantity of id to holder.
func (t *ERC1155) Mint(holder common.Address, id, quantity *big.Int) error {
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(quantity); err != nil {
		return err
	}
	balance, err := t.BalanceOf(holder, id)
	if err != nil {
		return err
	}
	return t.storeBig(t.balanceKey(id, holder), balance.Add(balance, quantity))
}

// SafeTransferFrom moves quantity of id between holders. The operator must be
// from or one of its approved operators. data is accepted for interface
// compatibility and ignored.
func (t *ERC1155) SafeTransferFrom(operator, from, to common.Address, id, quantity *big.Int, data []byte) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(quantity); err != nil {
		return err
	}
	if operator != from {
		ok, err := t.IsApprovedForAll(from, operator)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s for %s", ErrNotApproved, operator.Hex(), from.Hex())
		}
	}
	fromBalance, err := t.BalanceOf(from, id)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(quantity) < 0 {
		return fmt.Errorf("%w: %s holds %s of id %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance, id, quantity)
	}
	if err := t.storeBig(t.balanceKey(id, from), fromBalance.Sub(fromBalance, quantity)); err != nil {
		return err
	}
	toBalance, err := t.BalanceOf(to, id)
	if err != nil {
		return err
	}
	return t.storeBig(t.balanceKey(id, to), toBalance.Add(toBalance, quantity))
}
