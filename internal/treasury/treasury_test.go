package treasury

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

var admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")

// fakeVault records releases and can be made to fail.
type fakeVault struct {
	released map[common.Address]domain.Amount
	fail     error
}

func newFakeVault() *fakeVault {
	return &fakeVault{released: make(map[common.Address]domain.Amount)}
}

func (f *fakeVault) Collect(ctx context.Context, from common.Address, amount domain.Amount) error {
	return nil
}

func (f *fakeVault) Release(ctx context.Context, to common.Address, amount domain.Amount) error {
	if f.fail != nil {
		return f.fail
	}
	f.released[to] += amount
	return nil
}

func (f *fakeVault) BalanceOf(ctx context.Context, account common.Address) (domain.Amount, error) {
	return f.released[account], nil
}

func (f *fakeVault) CustodyBalance(ctx context.Context) (domain.Amount, error) {
	return 0, nil
}

func TestCreditAndSweep(t *testing.T) {
	ctx := context.Background()
	fv := newFakeVault()
	tr := New(fv)

	tr.Credit(10_000)
	tr.Credit(20_000)
	if got := tr.Balance(); got != 30_000 {
		t.Fatalf("balance = %d, want 30000", got)
	}

	swept, _, err := tr.Sweep(ctx, admin)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if swept != 30_000 {
		t.Errorf("swept = %d, want 30000", swept)
	}
	if got := tr.Balance(); got != 0 {
		t.Errorf("balance after sweep = %d, want 0", got)
	}
	if got := fv.released[admin]; got != 30_000 {
		t.Errorf("released to admin = %d, want 30000", got)
	}
	if got := tr.SweptTotal(); got != 30_000 {
		t.Errorf("SweptTotal = %d, want 30000", got)
	}
}

func TestSweepEmptyTreasury(t *testing.T) {
	tr := New(newFakeVault())
	swept, _, err := tr.Sweep(context.Background(), admin)
	if err != nil {
		t.Fatalf("Sweep on empty treasury: %v", err)
	}
	if swept != 0 {
		t.Errorf("swept = %d, want 0", swept)
	}
}

func TestSweepRestoresBalanceOnTransferFailure(t *testing.T) {
	ctx := context.Background()
	fv := newFakeVault()
	fv.fail = errors.New("rail down")
	tr := New(fv)
	tr.Credit(50_000)

	if _, _, err := tr.Sweep(ctx, admin); err == nil {
		t.Fatal("expected sweep failure")
	}
	// Balance restored, nothing released, no swept total recorded.
	if got := tr.Balance(); got != 50_000 {
		t.Errorf("balance after failed sweep = %d, want 50000", got)
	}
	if got := tr.SweptTotal(); got != 0 {
		t.Errorf("SweptTotal after failed sweep = %d, want 0", got)
	}
}

func TestFeeConservationAcrossSweeps(t *testing.T) {
	ctx := context.Background()
	fv := newFakeVault()
	tr := New(fv)

	var credited domain.Amount
	for _, fee := range []domain.Amount{10_000, 1, 333, 9_999_999} {
		tr.Credit(fee)
		credited += fee
	}
	if _, _, err := tr.Sweep(ctx, admin); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	tr.Credit(777)
	credited += 777

	// credited == balance + swept at all times.
	if got := tr.Balance() + tr.SweptTotal(); got != credited {
		t.Errorf("balance+swept = %d, want %d", got, credited)
	}
}
