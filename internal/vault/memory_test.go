package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestCollectRelease(t *testing.T) {
	ctx := context.Background()
	v := NewMemory()

	if err := v.Deposit(ctx, alice, 1_000_000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := v.Collect(ctx, alice, 400_000); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if got, _ := v.BalanceOf(ctx, alice); got != 600_000 {
		t.Errorf("alice balance = %d, want 600000", got)
	}
	if got, _ := v.CustodyBalance(ctx); got != 400_000 {
		t.Errorf("custody = %d, want 400000", got)
	}

	if err := v.Release(ctx, bob, 400_000); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got, _ := v.BalanceOf(ctx, bob); got != 400_000 {
		t.Errorf("bob balance = %d, want 400000", got)
	}
	if got, _ := v.CustodyBalance(ctx); got != 0 {
		t.Errorf("custody after release = %d, want 0", got)
	}
}

func TestCollectInsufficient(t *testing.T) {
	ctx := context.Background()
	v := NewMemory()
	_ = v.Deposit(ctx, alice, 100)

	err := v.Collect(ctx, alice, 101)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Collect over balance: got %v, want ErrInsufficientFunds", err)
	}
	// Nothing moved.
	if got, _ := v.BalanceOf(ctx, alice); got != 100 {
		t.Errorf("alice balance = %d, want 100", got)
	}
	if got, _ := v.CustodyBalance(ctx); got != 0 {
		t.Errorf("custody = %d, want 0", got)
	}
}

func TestReleaseBeyondCustody(t *testing.T) {
	ctx := context.Background()
	v := NewMemory()
	_ = v.Deposit(ctx, alice, 500)
	_ = v.Collect(ctx, alice, 500)

	if err := v.Release(ctx, bob, 501); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Release beyond custody: got %v, want ErrInsufficientFunds", err)
	}
}

func TestRejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	v := NewMemory()
	if err := v.Deposit(ctx, alice, 0); err == nil {
		t.Error("Deposit(0): expected error")
	}
	if err := v.Collect(ctx, alice, -1); err == nil {
		t.Error("Collect(-1): expected error")
	}
	if err := v.Release(ctx, alice, 0); err == nil {
		t.Error("Release(0): expected error")
	}
}
