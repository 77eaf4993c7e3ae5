package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/presale/token"
	"github.com/xraph/presale/types"
)

const (
	treasury = types.Account("treasury")
	asset    = types.Account("token-bid")
	alice    = types.Account("alice")
	bob      = types.Account("bob")
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	b := New(treasury)
	b.Mint(asset, treasury, types.NewAmount(1000))

	if err := b.Transfer(ctx, asset, alice, types.NewAmount(300)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := b.Balance(asset, treasury); !got.Equal(types.NewAmount(700)) {
		t.Errorf("treasury balance: got %s, want 700", got)
	}
	if got := b.Balance(asset, alice); !got.Equal(types.NewAmount(300)) {
		t.Errorf("alice balance: got %s, want 300", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	b := New(treasury)
	b.Mint(asset, treasury, types.NewAmount(100))

	err := b.Transfer(ctx, asset, alice, types.NewAmount(200))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Nothing moved.
	if got := b.Balance(asset, treasury); !got.Equal(types.NewAmount(100)) {
		t.Errorf("treasury balance: got %s, want 100", got)
	}
	if got := b.Balance(asset, alice); !got.IsZero() {
		t.Errorf("alice balance: got %s, want 0", got)
	}
}

func TestTransferNegativeAmount(t *testing.T) {
	ctx := context.Background()
	b := New(treasury)
	b.Mint(asset, treasury, types.NewAmount(100))

	if err := b.Transfer(ctx, asset, alice, types.NewAmount(-1)); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestTransferFrom(t *testing.T) {
	ctx := context.Background()
	b := New(treasury)
	b.Mint(asset, alice, types.NewAmount(500))
	b.Approve(asset, alice, types.NewAmount(400))

	if err := b.TransferFrom(ctx, asset, alice, treasury, types.NewAmount(300)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	if got := b.Balance(asset, alice); !got.Equal(types.NewAmount(200)) {
		t.Errorf("alice balance: got %s, want 200", got)
	}
	if got := b.Balance(asset, treasury); !got.Equal(types.NewAmount(300)) {
		t.Errorf("treasury balance: got %s, want 300", got)
	}

	// Allowance is spent: only 100 remains of the 400 approval.
	err := b.TransferFrom(ctx, asset, alice, treasury, types.NewAmount(150))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestTransferFromWithoutApproval(t *testing.T) {
	ctx := context.Background()
	b := New(treasury)
	b.Mint(asset, alice, types.NewAmount(500))

	err := b.TransferFrom(ctx, asset, alice, treasury, types.NewAmount(100))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestAssetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	other := types.Account("token-ask")

	b := New(treasury)
	b.Mint(asset, treasury, types.NewAmount(100))
	b.Mint(other, treasury, types.NewAmount(50))

	if err := b.Transfer(ctx, asset, bob, types.NewAmount(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := b.Balance(other, treasury); !got.Equal(types.NewAmount(50)) {
		t.Errorf("other asset balance changed: got %s, want 50", got)
	}
	if got := b.Balance(other, bob); !got.IsZero() {
		t.Errorf("bob other-asset balance: got %s, want 0", got)
	}
}

func TestConservation(t *testing.T) {
	ctx := context.Background()
	b := New(treasury)
	b.Mint(asset, treasury, types.NewAmount(1000))

	_ = b.Transfer(ctx, asset, alice, types.NewAmount(250))
	_ = b.Transfer(ctx, asset, bob, types.NewAmount(333))
	_ = b.Transfer(ctx, asset, alice, types.NewAmount(9999)) // fails, nothing moves

	total := types.Sum(
		b.Balance(asset, treasury),
		b.Balance(asset, alice),
		b.Balance(asset, bob),
	)
	if !total.Equal(types.NewAmount(1000)) {
		t.Errorf("total supply changed: got %s, want 1000", total)
	}
}
