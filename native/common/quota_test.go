package common

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func TestChargeSwapLimit(t *testing.T) {
	q := Quota{MaxSwapsPerEpoch: 2}
	usage := QuotaUsage{Epoch: 1}

	var err error
	for i := 0; i < 2; i++ {
		if usage, err = q.Charge(usage, 1, nil); err != nil {
			t.Fatalf("charge %d: %v", i, err)
		}
	}
	if usage.Swaps != 2 {
		t.Fatalf("expected 2 swaps, got %d", usage.Swaps)
	}
	denied, err := q.Charge(usage, 1, nil)
	if !errors.Is(err, ErrQuotaSwapsExceeded) {
		t.Fatalf("expected ErrQuotaSwapsExceeded, got %v", err)
	}
	if denied.Swaps != 2 {
		t.Fatalf("rejected charge must leave usage unchanged, got %d", denied.Swaps)
	}

	rollover, err := q.Charge(usage, 2, nil)
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if rollover.Epoch != 2 || rollover.Swaps != 1 {
		t.Fatalf("unexpected rollover usage %+v", rollover)
	}
}

func TestChargeEscrowCapInWei(t *testing.T) {
	oneEther := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	q := Quota{MaxEscrowWei: new(big.Int).Set(oneEther)}
	usage := QuotaUsage{Epoch: 5}

	usage, err := q.Charge(usage, 5, oneEther)
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if usage.EscrowWei.Cmp(oneEther) != 0 {
		t.Fatalf("unexpected escrow %s", usage.EscrowWei)
	}
	// Counterparty-paid swaps escrow nothing and still fit under a full cap.
	if usage, err = q.Charge(usage, 5, big.NewInt(0)); err != nil {
		t.Fatalf("zero escrow charge: %v", err)
	}
	if _, err := q.Charge(usage, 5, big.NewInt(1)); !errors.Is(err, ErrQuotaEscrowExceeded) {
		t.Fatalf("expected ErrQuotaEscrowExceeded, got %v", err)
	}

	rollover, err := q.Charge(usage, 6, big.NewInt(500))
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if rollover.EscrowWei.Cmp(big.NewInt(500)) != 0 || rollover.Swaps != 1 {
		t.Fatalf("unexpected rollover usage %+v", rollover)
	}
	if usage.EscrowWei.Cmp(new(big.Int).Set(oneEther)) != 0 {
		t.Fatalf("charge must not mutate previous usage")
	}
}

func TestChargeRejectsNegativeEscrowAndOverflow(t *testing.T) {
	if _, err := (Quota{}).Charge(QuotaUsage{}, 0, big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative escrow rejection")
	}
	full := QuotaUsage{Epoch: 1, Swaps: math.MaxUint32}
	if _, err := (Quota{}).Charge(full, 1, nil); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected ErrQuotaCounterOverflow, got %v", err)
	}
}

func TestQuotaEpochAt(t *testing.T) {
	q := Quota{EpochSeconds: 3600}
	if got := q.EpochAt(7200); got != 2 {
		t.Fatalf("unexpected epoch %d", got)
	}
	if got := (Quota{}).EpochAt(120); got != 2 {
		t.Fatalf("expected default epoch length, got %d", got)
	}
	if (Quota{}).Enabled() || (Quota{MaxEscrowWei: new(big.Int)}).Enabled() {
		t.Fatalf("zero quota must be disabled")
	}
	if !(Quota{MaxEscrowWei: big.NewInt(1)}).Enabled() {
		t.Fatalf("escrow cap must enable the quota")
	}
}
