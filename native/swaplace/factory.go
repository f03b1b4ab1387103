package swaplace

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MakeSwap assembles a Swap after checking the owner, the expiry against now,
// and that both asset lists are non-empty.
func MakeSwap(owner common.Address, config *uint256.Int, biding, asking []Asset, now int64) (*Swap, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero owner", ErrInvalidAddress)
	}
	cfg := DecodeConfig(config)
	if expired(cfg.Expiry, now) {
		return nil, &ExpiryError{Expiry: cfg.Expiry}
	}
	if len(biding) == 0 || len(asking) == 0 {
		return nil, fmt.Errorf("%w: biding=%d asking=%d", ErrInvalidAssetsLength, len(biding), len(asking))
	}
	swap := &Swap{Owner: owner, Config: cfg.Encode(), Biding: biding, Asking: asking}
	return swap.Clone(), nil
}

// ComposeSwap builds both asset lists from parallel address/amount slices and
// then behaves like MakeSwap.
func ComposeSwap(owner common.Address, config *uint256.Int, bidingAddr []string, bidingAmountOrID []*big.Int, askingAddr []string, askingAmountOrID []*big.Int, now int64) (*Swap, error) {
	if len(bidingAddr) != len(bidingAmountOrID) || len(askingAddr) != len(askingAmountOrID) {
		return nil, fmt.Errorf("%w: biding %d/%d asking %d/%d", ErrMismatchingLengths,
			len(bidingAddr), len(bidingAmountOrID), len(askingAddr), len(askingAmountOrID))
	}
	biding, err := makeAssets(bidingAddr, bidingAmountOrID)
	if err != nil {
		return nil, err
	}
	asking, err := makeAssets(askingAddr, askingAmountOrID)
	if err != nil {
		return nil, err
	}
	return MakeSwap(owner, config, biding, asking, now)
}

func makeAssets(addrs []string, amounts []*big.Int) ([]Asset, error) {
	out := make([]Asset, 0, len(addrs))
	for i := range addrs {
		asset, err := MakeAsset(addrs[i], amounts[i])
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, nil
}

func expired(expiry uint64, now int64) bool {
	if now <= 0 {
		return false
	}
	return expiry < uint64(now)
}
