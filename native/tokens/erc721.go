package tokens

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC721 tracks a single owner per token id.
type ERC721 struct {
	base
}

func NewERC721(addr common.Address, name string, state kvState) *ERC721 {
	return &ERC721{base{addr: addr, name: name, state: state}}
}

func (t *ERC721) Standard() string { return StandardERC721 }

func (t *ERC721) ownerKey(id *big.Int) []byte {
	return tokenKey(t.addr, "owner", idBytes(id))
}

func (t *ERC721) approvedKey(id *big.Int) []byte {
	return tokenKey(t.addr, "approved", idBytes(id))
}

func (t *ERC721) countKey(holder common.Address) []byte {
	return tokenKey(t.addr, "count", holder.Bytes())
}

func (t *ERC721) operatorKey(owner, operator common.Address) []byte {
	return tokenKey(t.addr, "operator", owner.Bytes(), operator.Bytes())
}

// OwnerOf returns the holder of id.
func (t *ERC721) OwnerOf(id *big.Int) (common.Address, error) {
	if err := checkAmount(id); err != nil {
		return common.Address{}, err
	}
	var owner common.Address
	ok, err := t.state.KVGet(t.ownerKey(id), &owner)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrNonexistentToken, id)
	}
	return owner, nil
}

// BalanceOf returns how many ids holder owns.
func (t *ERC721) BalanceOf(holder common.Address) (*big.Int, error) {
	return t.loadBig(t.countKey(holder))
}

func (t *ERC721) GetApproved(id *big.Int) (common.Address, error) {
	if _, err := t.OwnerOf(id); err != nil {
		return common.Address{}, err
	}
	var approved common.Address
	if _, err := t.state.KVGet(t.approvedKey(id), &approved); err != nil {
		return common.Address{}, err
	}
	return approved, nil
}

func (t *ERC721) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	return t.loadFlag(t.operatorKey(owner, operator))
}

// Mint assigns a fresh id to holder.
func (t *ERC721) Mint(holder common.Address, id *big.Int) error {
	if holder == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := checkAmount(id); err != nil {
		return err
	}
	if ok, err := t.state.KVGet(t.ownerKey(id), nil); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, id)
	}
	if err := t.state.KVPut(t.ownerKey(id), holder); err != nil {
		return err
	}
	return t.adjustCount(holder, 1)
}

// Approve lets spender move id once. Only the owner or one of its operators
// may approve.
func (t *ERC721) Approve(caller, spender common.Address, id *big.Int) error {
	owner, err := t.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller != owner {
		ok, err := t.IsApprovedForAll(owner, caller)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotApproved
		}
	}
	if spender == (common.Address{}) {
		return t.state.KVDelete(t.approvedKey(id))
	}
	return t.state.KVPut(t.approvedKey(id), spender)
}

func (t *ERC721) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	if owner == (common.Address{}) || operator == (common.Address{}) {
		return ErrZeroAddress
	}
	return t.storeFlag(t.operatorKey(owner, operator), approved)
}

// TransferFrom moves id from its owner to to. The operator must be the owner,
// the approved address for id, or an approved operator of the owner.
func (t *ERC721) TransferFrom(operator, from, to common.Address, id *big.Int) error {
	owner, err := t.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("%w: %s does not hold %s", ErrNotOwner, from.Hex(), id)
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if operator != owner {
		approved, err := t.GetApproved(id)
		if err != nil {
			return err
		}
		if approved != operator {
			ok, err := t.IsApprovedForAll(owner, operator)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s for id %s", ErrNotApproved, operator.Hex(), id)
			}
		}
	}
	if err := t.state.KVDelete(t.approvedKey(id)); err != nil {
		return err
	}
	if err := t.state.KVPut(t.ownerKey(id), to); err != nil {
		return err
	}
	if err := t.adjustCount(from, -1); err != nil {
		return err
	}
	return t.adjustCount(to, 1)
}

func (t *ERC721) adjustCount(holder common.Address, delta int64) error {
	count, err := t.BalanceOf(holder)
	if err != nil {
		return err
	}
	count.Add(count, big.NewInt(delta))
	if count.Sign() < 0 {
		return fmt.Errorf("%w: negative count for %s", ErrInsufficientBalance, holder.Hex())
	}
	return t.storeBig(t.countKey(holder), count)
}
