// Package api defines the JSON bodies exchanged between swapd and its clients.
// Integers wider than 64 bits travel as decimal or 0x-prefixed strings.
package api

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swaplace/native/swaplace"
)

type Asset struct {
	Addr       string `json:"addr"`
	AmountOrID string `json:"amount_or_id"`
	Packed     bool   `json:"packed,omitempty"`
	ID         string `json:"id,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
}

// Swap is a swap record. On input Config wins over the decoded fields.
type Swap struct {
	ID        uint64  `json:"id,omitempty"`
	Owner     string  `json:"owner"`
	Config    string  `json:"config,omitempty"`
	Allowed   string  `json:"allowed,omitempty"`
	Expiry    uint64  `json:"expiry,omitempty"`
	Recipient uint8   `json:"recipient,omitempty"`
	Value     uint64  `json:"value,omitempty"`
	Biding    []Asset `json:"biding"`
	Asking    []Asset `json:"asking"`
}

type CreateSwapRequest struct {
	Swap Swap `json:"swap"`
	// Attached is the native wei sent along with the call.
	Attached string `json:"attached,omitempty"`
}

type CreateSwapResponse struct {
	ID uint64 `json:"id"`
}

type AcceptSwapRequest struct {
	Receiver string `json:"receiver"`
	Attached string `json:"attached,omitempty"`
}

type TotalResponse struct {
	Total  uint64 `json:"total"`
	NextID uint64 `json:"next_id"`
}

type AccountResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type TokenInfo struct {
	Name     string `json:"name"`
	Standard string `json:"standard"`
	Address  string `json:"address"`
}

type EngineResponse struct {
	Address  string      `json:"address"`
	Paused   bool        `json:"paused"`
	Escrowed string      `json:"escrowed"`
	Tokens   []TokenInfo `json:"tokens"`
}

type TokenBalanceResponse struct {
	Token   string `json:"token"`
	Holder  string `json:"holder"`
	ID      string `json:"id,omitempty"`
	Balance string `json:"balance"`
}

type TokenOwnerResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

type ApproveRequest struct {
	Spender    string `json:"spender,omitempty"`
	AmountOrID string `json:"amount_or_id"`
}

type ApprovalForAllRequest struct {
	Operator string `json:"operator,omitempty"`
	Approved bool   `json:"approved"`
}

type ConfigWord struct {
	Config    string `json:"config,omitempty"`
	Allowed   string `json:"allowed"`
	Expiry    uint64 `json:"expiry"`
	Recipient uint8  `json:"recipient"`
	Value     uint64 `json:"value"`
	// NativeWei is Value scaled into wei; informational only.
	NativeWei string `json:"native_wei,omitempty"`
}

type AssetWord struct {
	AmountOrID string `json:"amount_or_id,omitempty"`
	ID         string `json:"id,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
	Packed     bool   `json:"packed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// ParseInt parses a non-negative decimal or 0x-prefixed integer. Empty input
// yields zero.
func ParseInt(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return new(big.Int), nil
	}
	return swaplace.ParseAmount(raw)
}

// ParseAddress parses a hex address, rejecting malformed input.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: %q", swaplace.ErrInvalidAddress, raw)
	}
	return common.HexToAddress(trimmed), nil
}

// ParseWord parses a 256-bit word.
func ParseWord(raw string) (*uint256.Int, error) {
	value, err := ParseInt(raw)
	if err != nil {
		return nil, err
	}
	word, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("%w: %q exceeds 256 bits", swaplace.ErrInvalidAmount, raw)
	}
	return word, nil
}

func FromConfig(cfg swaplace.Config) ConfigWord {
	return ConfigWord{
		Config:    cfg.Encode().Hex(),
		Allowed:   cfg.Allowed.Hex(),
		Expiry:    cfg.Expiry,
		Recipient: cfg.Recipient,
		Value:     cfg.Value,
		NativeWei: cfg.NativeAmount().String(),
	}
}

// Encode packs the word, treating an empty allowed field as "anyone".
func (c ConfigWord) Encode() (*uint256.Int, error) {
	allowed := common.Address{}
	if strings.TrimSpace(c.Allowed) != "" {
		parsed, err := ParseAddress(c.Allowed)
		if err != nil {
			return nil, err
		}
		allowed = parsed
	}
	return swaplace.EncodeConfig(allowed, c.Expiry, c.Recipient, c.Value), nil
}

func FromAsset(asset swaplace.Asset) Asset {
	out := Asset{Addr: asset.Addr.Hex(), AmountOrID: asset.AmountOrID.Dec()}
	if asset.IsQuantityPacked() {
		id, qty := swaplace.DecodeAsset(asset.AmountOrID)
		out.Packed = true
		out.ID = id.Dec()
		out.Quantity = qty.Dec()
	}
	return out
}

// ToAsset converts the wire form. When ID and Quantity are both set the
// sentinel-packed word is built from them.
func (a Asset) ToAsset() (swaplace.Asset, error) {
	addr, err := ParseAddress(a.Addr)
	if err != nil {
		return swaplace.Asset{}, err
	}
	if strings.TrimSpace(a.AmountOrID) == "" && a.ID != "" && a.Quantity != "" {
		id, err := ParseInt(a.ID)
		if err != nil {
			return swaplace.Asset{}, err
		}
		qty, err := ParseInt(a.Quantity)
		if err != nil {
			return swaplace.Asset{}, err
		}
		word, err := swaplace.EncodeAsset(id, qty)
		if err != nil {
			return swaplace.Asset{}, err
		}
		return swaplace.NewAsset(addr, word), nil
	}
	word, err := ParseWord(a.AmountOrID)
	if err != nil {
		return swaplace.Asset{}, err
	}
	return swaplace.NewAsset(addr, word), nil
}

func FromSwap(id uint64, swap *swaplace.Swap) Swap {
	cfg := swap.Terms()
	out := Swap{
		ID:        id,
		Owner:     swap.Owner.Hex(),
		Config:    cfg.Encode().Hex(),
		Allowed:   cfg.Allowed.Hex(),
		Expiry:    cfg.Expiry,
		Recipient: cfg.Recipient,
		Value:     cfg.Value,
		Biding:    make([]Asset, 0, len(swap.Biding)),
		Asking:    make([]Asset, 0, len(swap.Asking)),
	}
	for _, asset := range swap.Biding {
		out.Biding = append(out.Biding, FromAsset(asset))
	}
	for _, asset := range swap.Asking {
		out.Asking = append(out.Asking, FromAsset(asset))
	}
	return out
}

// ToSwap converts the wire form. An empty owner defaults to fallbackOwner.
func (s Swap) ToSwap(fallbackOwner common.Address) (*swaplace.Swap, error) {
	owner := fallbackOwner
	if strings.TrimSpace(s.Owner) != "" {
		parsed, err := ParseAddress(s.Owner)
		if err != nil {
			return nil, err
		}
		owner = parsed
	}
	var word *uint256.Int
	var err error
	if strings.TrimSpace(s.Config) != "" {
		word, err = ParseWord(s.Config)
	} else {
		word, err = ConfigWord{Allowed: s.Allowed, Expiry: s.Expiry, Recipient: s.Recipient, Value: s.Value}.Encode()
	}
	if err != nil {
		return nil, err
	}
	out := &swaplace.Swap{Owner: owner, Config: word}
	for _, asset := range s.Biding {
		converted, err := asset.ToAsset()
		if err != nil {
			return nil, err
		}
		out.Biding = append(out.Biding, converted)
	}
	for _, asset := range s.Asking {
		converted, err := asset.ToAsset()
		if err != nil {
			return nil, err
		}
		out.Asking = append(out.Asking, converted)
	}
	return out, nil
}
