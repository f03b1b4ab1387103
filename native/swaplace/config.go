package swaplace

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	allowedShift   = 96
	expiryShift    = 64
	recipientShift = 56

	expiryMask = uint64(1)<<32 - 1
	valueMask  = uint64(1)<<56 - 1

	// MaxValue is the largest native amount a config word can carry, in
	// ValueScale units.
	MaxValue = valueMask
)

// ValueScale converts config value units into native wei.
var ValueScale = big.NewInt(1_000_000_000_000)

// Config is the unpacked form of a swap config word.
type Config struct {
	Allowed   common.Address
	Expiry    uint64
	Recipient uint8
	Value     uint64
}

// EncodeConfig packs the fields into a single 256-bit word, high to low:
// allowed (160 bits), expiry (32), recipient (8), value (56). Expiry and value
// are truncated to their widths.
func EncodeConfig(allowed common.Address, expiry uint64, recipient uint8, value uint64) *uint256.Int {
	word := new(uint256.Int).SetBytes(allowed.Bytes())
	word.Lsh(word, allowedShift)
	word.Or(word, new(uint256.Int).Lsh(uint256.NewInt(expiry&expiryMask), expiryShift))
	word.Or(word, new(uint256.Int).Lsh(uint256.NewInt(uint64(recipient)), recipientShift))
	word.Or(word, uint256.NewInt(value&valueMask))
	return word
}

// DecodeConfig unpacks a config word. A nil word decodes as the zero Config.
func DecodeConfig(word *uint256.Int) Config {
	if word == nil {
		return Config{}
	}
	allowed := new(uint256.Int).Rsh(word, allowedShift).Bytes20()
	return Config{
		Allowed:   common.BytesToAddress(allowed[:]),
		Expiry:    new(uint256.Int).Rsh(word, expiryShift).Uint64() & expiryMask,
		Recipient: uint8(new(uint256.Int).Rsh(word, recipientShift).Uint64() & 0xff),
		Value:     word.Uint64() & valueMask,
	}
}

// Encode packs c back into its word form.
func (c Config) Encode() *uint256.Int {
	return EncodeConfig(c.Allowed, c.Expiry, c.Recipient, c.Value)
}

// OwnerPays reports whether the owner attaches the native value at creation.
func (c Config) OwnerPays() bool { return c.Recipient == 0 }

// NativeAmount returns the native value in wei.
func (c Config) NativeAmount() *big.Int { return NativeValue(c.Value) }

// NativeValue converts config value units into wei.
func NativeValue(value uint64) *big.Int {
	out := new(big.Int).SetUint64(value)
	return out.Mul(out, ValueScale)
}

// ScaleNativeValue converts wei into config value units. The amount must be a
// non-negative multiple of ValueScale that fits in 56 bits.
func ScaleNativeValue(wei *big.Int) (uint64, error) {
	if wei == nil || wei.Sign() == 0 {
		return 0, nil
	}
	if wei.Sign() < 0 {
		return 0, fmt.Errorf("%w: negative value %s", ErrInvalidValue, wei)
	}
	quo, rem := new(big.Int).QuoRem(wei, ValueScale, new(big.Int))
	if rem.Sign() != 0 {
		return 0, fmt.Errorf("%w: %s is not a multiple of %s", ErrInvalidValue, wei, ValueScale)
	}
	if !quo.IsUint64() || quo.Uint64() > MaxValue {
		return 0, fmt.Errorf("%w: %s exceeds the config value range", ErrInvalidValue, wei)
	}
	return quo.Uint64(), nil
}
