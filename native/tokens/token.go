package tokens

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	StandardERC20   = "erc20"
	StandardERC721  = "erc721"
	StandardERC1155 = "erc1155"
)

type kvState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Token is the part every reference contract shares.
type Token interface {
	Address() common.Address
	Name() string
	Standard() string
}

// New builds the reference contract for standard.
func New(standard string, addr common.Address, name string, state kvState) (Token, error) {
	switch strings.ToLower(strings.TrimSpace(standard)) {
	case StandardERC20:
		return NewERC20(addr, name, state), nil
	case StandardERC721:
		return NewERC721(addr, name, state), nil
	case StandardERC1155:
		return NewERC1155(addr, name, state), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStandard, standard)
	}
}

type base struct {
	addr  common.Address
	name  string
	state kvState
}

func (b base) Address() common.Address { return b.addr }

func (b base) Name() string { return b.name }

func (b base) loadBig(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := b.state.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (b base) storeBig(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return b.state.KVDelete(key)
	}
	return b.state.KVPut(key, amount)
}

func (b base) loadFlag(key []byte) (bool, error) {
	var flag bool
	if _, err := b.state.KVGet(key, &flag); err != nil {
		return false, err
	}
	return flag, nil
}

func (b base) storeFlag(key []byte, flag bool) error {
	if !flag {
		return b.state.KVDelete(key)
	}
	return b.state.KVPut(key, true)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}
