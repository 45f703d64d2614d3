// Package treasury holds the commingled fee balance skimmed from every stake.
// Fees from all markets share a single balance with no per-market partition;
// a sweep may run while markets are still open, since fees are separated from
// the pools at skim time.
package treasury

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

// FeeTreasury accumulates skimmed fees and releases them to the privileged
// recipient on sweep. All methods are safe for concurrent use.
type FeeTreasury struct {
	mu       sync.Mutex
	balance  domain.Amount
	swept    domain.Amount
	sweeping bool

	vault domain.Vault
}

// New creates an empty treasury releasing value through the given vault.
func New(vault domain.Vault) *FeeTreasury {
	return &FeeTreasury{vault: vault}
}

// Credit adds a skimmed fee to the sweep-eligible balance. Called only from
// the stake path.
func (t *FeeTreasury) Credit(amount domain.Amount) {
	if amount <= 0 {
		return
	}
	t.mu.Lock()
	t.balance += amount
	t.mu.Unlock()
}

// Balance returns the current sweep-eligible balance.
func (t *FeeTreasury) Balance() domain.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance
}

// SweptTotal returns the cumulative value released by past sweeps.
func (t *FeeTreasury) SweptTotal() domain.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swept
}

// Sweep transfers the entire current balance to the recipient and resets it
// to zero. The balance is zeroed before the value leaves custody; a second
// sweep arriving while the transfer is outstanding fails with
// ErrSettlementInProgress. If the transfer itself fails the balance is
// restored, so a failed sweep leaves no partial state.
func (t *FeeTreasury) Sweep(ctx context.Context, to common.Address) (domain.Amount, time.Time, error) {
	t.mu.Lock()
	if t.sweeping {
		t.mu.Unlock()
		return 0, time.Time{}, domain.ErrSettlementInProgress
	}
	amount := t.balance
	t.balance = 0
	t.sweeping = true
	t.mu.Unlock()

	if amount == 0 {
		t.mu.Lock()
		t.sweeping = false
		t.mu.Unlock()
		return 0, time.Now().UTC(), nil
	}

	err := t.vault.Release(ctx, to, amount)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweeping = false
	if err != nil {
		t.balance += amount
		return 0, time.Time{}, fmt.Errorf("treasury: release sweep: %w", err)
	}
	t.swept += amount
	return amount, time.Now().UTC(), nil
}

// Restore reloads a persisted balance at startup. It must not be called once
// operations are flowing.
func (t *FeeTreasury) Restore(balance domain.Amount) {
	t.mu.Lock()
	t.balance = balance
	t.mu.Unlock()
}
