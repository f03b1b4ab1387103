package common

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

var (
	ErrQuotaSwapsExceeded   = errors.New("quota: swaps per epoch exceeded")
	ErrQuotaEscrowExceeded  = errors.New("quota: escrow per epoch exceeded")
	ErrQuotaCounterOverflow = errors.New("quota: counter overflow")
)

// DefaultQuotaEpochSeconds applies when Quota.EpochSeconds is zero.
const DefaultQuotaEpochSeconds = 60

// Quota caps how many swaps one owner may create per epoch and how much
// native value, in wei, those swaps may lock in escrow. Zero limits are
// unbounded.
//
// Only value the owner pays at creation counts against MaxEscrowWei. When the
// counterparty pays, nothing enters escrow on create, so such swaps are charged
// as a swap with zero value.
type Quota struct {
	MaxSwapsPerEpoch uint32
	MaxEscrowWei     *big.Int
	EpochSeconds     uint32
}

// QuotaUsage is the per-owner counter persisted between creations.
type QuotaUsage struct {
	Epoch     uint64
	Swaps     uint32
	EscrowWei *big.Int
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxSwapsPerEpoch > 0 || q.escrowCapped()
}

func (q Quota) escrowCapped() bool {
	return q.MaxEscrowWei != nil && q.MaxEscrowWei.Sign() > 0
}

// EpochAt maps a unix timestamp onto its quota epoch.
func (q Quota) EpochAt(unix int64) uint64 {
	if unix <= 0 {
		return 0
	}
	seconds := uint64(q.EpochSeconds)
	if seconds == 0 {
		seconds = DefaultQuotaEpochSeconds
	}
	return uint64(unix) / seconds
}

// Charge books one swap creation escrowing escrowWei in epoch. Usage from an
// earlier epoch is discarded first. On error prev is returned unchanged.
func (q Quota) Charge(prev QuotaUsage, epoch uint64, escrowWei *big.Int) (QuotaUsage, error) {
	if escrowWei != nil && escrowWei.Sign() < 0 {
		return prev, fmt.Errorf("quota: negative escrow %s", escrowWei)
	}
	next := QuotaUsage{Epoch: epoch, Swaps: prev.Swaps, EscrowWei: new(big.Int)}
	if prev.Epoch == epoch && prev.EscrowWei != nil {
		next.EscrowWei.Set(prev.EscrowWei)
	}
	if prev.Epoch != epoch {
		next.Swaps = 0
	}

	if next.Swaps == math.MaxUint32 {
		return prev, ErrQuotaCounterOverflow
	}
	next.Swaps++
	if q.MaxSwapsPerEpoch > 0 && next.Swaps > q.MaxSwapsPerEpoch {
		return prev, fmt.Errorf("%w: %d of %d", ErrQuotaSwapsExceeded, next.Swaps, q.MaxSwapsPerEpoch)
	}

	if escrowWei != nil {
		next.EscrowWei.Add(next.EscrowWei, escrowWei)
	}
	if q.escrowCapped() && next.EscrowWei.Cmp(q.MaxEscrowWei) > 0 {
		return prev, fmt.Errorf("%w: %s wei over cap %s", ErrQuotaEscrowExceeded, next.EscrowWei, q.MaxEscrowWei)
	}
	return next, nil
}
