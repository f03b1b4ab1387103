package swaplace

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Swap is a bilateral offer: the owner gives Biding and expects Asking in
// return, under the terms packed in Config.
type Swap struct {
	Owner  common.Address
	Config *uint256.Int
	Biding []Asset
	Asking []Asset
}

func zeroSwap() *Swap {
	return &Swap{Config: new(uint256.Int), Biding: []Asset{}, Asking: []Asset{}}
}

// Terms decodes the config word.
func (s *Swap) Terms() Config {
	if s == nil {
		return Config{}
	}
	return DecodeConfig(s.Config)
}

// IsZero reports whether s is the record returned for missing or consumed ids.
func (s *Swap) IsZero() bool {
	if s == nil {
		return true
	}
	return s.Owner == (common.Address{}) && (s.Config == nil || s.Config.IsZero()) &&
		len(s.Biding) == 0 && len(s.Asking) == 0
}

// Clone returns a deep copy of s.
func (s *Swap) Clone() *Swap {
	if s == nil {
		return nil
	}
	out := &Swap{
		Owner:  s.Owner,
		Config: new(uint256.Int),
		Biding: make([]Asset, len(s.Biding)),
		Asking: make([]Asset, len(s.Asking)),
	}
	if s.Config != nil {
		out.Config.Set(s.Config)
	}
	for i, asset := range s.Biding {
		out.Biding[i] = asset.clone()
	}
	for i, asset := range s.Asking {
		out.Asking[i] = asset.clone()
	}
	return out
}
