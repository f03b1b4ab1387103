package swaplace

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	quantityBits  = 120
	sentinelShift = 240
	sentinel      = 0xFFFF
)

var (
	quantityMask  = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), quantityBits), uint256.NewInt(1))
	quantityLimit = new(big.Int).Lsh(big.NewInt(1), quantityBits)
)

// Asset is one leg of a swap: a token contract and either an amount, a token
// id, or a sentinel-packed (id, quantity) pair.
type Asset struct {
	Addr       common.Address
	AmountOrID *uint256.Int
}

// NewAsset builds an Asset from already typed values.
func NewAsset(addr common.Address, amountOrID *uint256.Int) Asset {
	if amountOrID == nil {
		amountOrID = new(uint256.Int)
	}
	return Asset{Addr: addr, AmountOrID: new(uint256.Int).Set(amountOrID)}
}

// MakeAsset validates a hex contract address and a non-negative amount or id.
func MakeAsset(addr string, amountOrID *big.Int) (Asset, error) {
	trimmed := strings.TrimSpace(addr)
	if !common.IsHexAddress(trimmed) {
		return Asset{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	if amountOrID == nil || amountOrID.Sign() < 0 {
		return Asset{}, fmt.Errorf("%w: %v", ErrInvalidAmount, amountOrID)
	}
	word, overflow := uint256.FromBig(amountOrID)
	if overflow {
		return Asset{}, fmt.Errorf("%w: %s exceeds 256 bits", ErrInvalidAmount, amountOrID)
	}
	return Asset{Addr: common.HexToAddress(trimmed), AmountOrID: word}, nil
}

// ParseAmount parses a non-negative integer in decimal, or in hex behind a 0x
// prefix. Leading zeros stay decimal; signs, underscores and other base
// prefixes are rejected.
func ParseAmount(raw string) (*big.Int, error) {
	digits, base := strings.TrimSpace(raw), 10
	if len(digits) > 2 && (digits[:2] == "0x" || digits[:2] == "0X") {
		digits, base = digits[2:], 16
	}
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	value, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return value, nil
}

// EncodeAsset packs a token id and quantity behind the 0xFFFF sentinel. Both
// values must fit in 120 bits.
func EncodeAsset(id, quantity *big.Int) (*uint256.Int, error) {
	for _, v := range []*big.Int{id, quantity} {
		if v == nil || v.Sign() < 0 || v.Cmp(quantityLimit) >= 0 {
			return nil, fmt.Errorf("%w: %v does not fit 120 bits", ErrInvalidAmount, v)
		}
	}
	word := new(uint256.Int).Lsh(uint256.NewInt(sentinel), sentinelShift)
	idWord, _ := uint256.FromBig(id)
	word.Or(word, idWord.Lsh(idWord, quantityBits))
	qtyWord, _ := uint256.FromBig(quantity)
	word.Or(word, qtyWord)
	return word, nil
}

// IsQuantityPacked reports whether the top 16 bits carry the sentinel.
func IsQuantityPacked(amountOrID *uint256.Int) bool {
	if amountOrID == nil {
		return false
	}
	return new(uint256.Int).Rsh(amountOrID, sentinelShift).Uint64() == sentinel
}

// DecodeAsset unpacks a sentinel-packed value. The result is meaningless for
// values where IsQuantityPacked is false.
func DecodeAsset(amountOrID *uint256.Int) (id, quantity *uint256.Int) {
	if amountOrID == nil {
		return new(uint256.Int), new(uint256.Int)
	}
	id = new(uint256.Int).Rsh(amountOrID, quantityBits)
	id.And(id, quantityMask)
	quantity = new(uint256.Int).And(amountOrID, quantityMask)
	return id, quantity
}

// IsQuantityPacked reports whether the asset uses the packed (id, quantity)
// form.
func (a Asset) IsQuantityPacked() bool { return IsQuantityPacked(a.AmountOrID) }

func (a Asset) clone() Asset {
	return NewAsset(a.Addr, a.AmountOrID)
}
