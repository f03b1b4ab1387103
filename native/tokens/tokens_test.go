package tokens

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"swaplace/core/state"
	"swaplace/storage"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func newState(t *testing.T) *state.Manager {
	t.Helper()
	return state.NewManager(storage.NewMemDB())
}

func TestERC20TransferFromAllowance(t *testing.T) {
	token := NewERC20(ContractAddress(StandardERC20, "USD"), "USD", newState(t))
	if err := token.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := token.TransferFrom(operator, alice, bob, big.NewInt(10))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}
	if err := token.Approve(alice, operator, big.NewInt(600)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := token.TransferFrom(operator, alice, bob, big.NewInt(500)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	allowance, _ := token.Allowance(alice, operator)
	if allowance.Int64() != 100 {
		t.Fatalf("unexpected remaining allowance %s", allowance)
	}
	aliceBal, _ := token.BalanceOf(alice)
	bobBal, _ := token.BalanceOf(bob)
	if aliceBal.Int64() != 500 || bobBal.Int64() != 500 {
		t.Fatalf("unexpected balances alice=%s bob=%s", aliceBal, bobBal)
	}
	if err := token.TransferFrom(bob, bob, alice, big.NewInt(501)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
	if err := token.TransferFrom(bob, bob, common.Address{}, big.NewInt(1)); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected zero address error, got %v", err)
	}
}

func TestERC721Approvals(t *testing.T) {
	token := NewERC721(ContractAddress(StandardERC721, "ART"), "ART", newState(t))
	id := big.NewInt(7)
	if err := token.Mint(alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.Mint(bob, id); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected duplicate mint error, got %v", err)
	}
	if err := token.TransferFrom(operator, alice, bob, id); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected approval error, got %v", err)
	}
	if err := token.TransferFrom(operator, bob, alice, id); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner error, got %v", err)
	}
	if err := token.Approve(alice, operator, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := token.TransferFrom(operator, alice, bob, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := token.OwnerOf(id)
	if err != nil || owner != bob {
		t.Fatalf("unexpected owner %s err=%v", owner.Hex(), err)
	}
	approved, _ := token.GetApproved(id)
	if approved != (common.Address{}) {
		t.Fatalf("approval should clear on transfer")
	}
	if err := token.SetApprovalForAll(bob, operator, true); err != nil {
		t.Fatalf("approve all: %v", err)
	}
	if err := token.TransferFrom(operator, bob, alice, id); err != nil {
		t.Fatalf("operator transfer: %v", err)
	}
	aliceCount, _ := token.BalanceOf(alice)
	bobCount, _ := token.BalanceOf(bob)
	if aliceCount.Int64() != 1 || bobCount.Int64() != 0 {
		t.Fatalf("unexpected counts alice=%s bob=%s", aliceCount, bobCount)
	}
	if _, err := token.OwnerOf(big.NewInt(99)); !errors.Is(err, ErrNonexistentToken) {
		t.Fatalf("expected nonexistent token, got %v", err)
	}
}

func TestERC1155SafeTransferFrom(t *testing.T) {
	token := NewERC1155(ContractAddress(StandardERC1155, "ITEMS"), "ITEMS", newState(t))
	id := big.NewInt(3)
	if err := token.Mint(alice, id, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.SafeTransferFrom(operator, alice, bob, id, big.NewInt(4), nil); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected approval error, got %v", err)
	}
	if err := token.SetApprovalForAll(alice, operator, true); err != nil {
		t.Fatalf("approve all: %v", err)
	}
	if err := token.SafeTransferFrom(operator, alice, bob, id, big.NewInt(4), []byte{}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := token.SafeTransferFrom(operator, alice, bob, id, big.NewInt(7), nil); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
	bobBal, _ := token.BalanceOf(bob, id)
	if bobBal.Int64() != 4 {
		t.Fatalf("unexpected bob balance %s", bobBal)
	}
}

func TestNewSelectsStandard(t *testing.T) {
	st := newState(t)
	for _, standard := range []string{StandardERC20, "ERC721", " erc1155 "} {
		token, err := New(standard, ContractAddress(standard, "x"), "x", st)
		if err != nil {
			t.Fatalf("new %s: %v", standard, err)
		}
		if token.Name() != "x" {
			t.Fatalf("unexpected name %s", token.Name())
		}
	}
	if _, err := New("erc777", common.Address{}, "x", st); !errors.Is(err, ErrUnknownStandard) {
		t.Fatalf("expected unknown standard, got %v", err)
	}
	if ContractAddress(StandardERC20, "a") == ContractAddress(StandardERC721, "a") {
		t.Fatalf("contract addresses must depend on the standard")
	}
}
