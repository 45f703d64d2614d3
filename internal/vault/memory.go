// Package vault implements the value-custody boundary in memory. Every unit
// collected from an account moves into a single custody balance, and every
// release debits it; the custody balance therefore always equals the value
// the system owes across pools, treasury, and unclaimed rewards.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

// Memory is an in-process vault keyed by account address.
type Memory struct {
	mu       sync.Mutex
	balances map[common.Address]domain.Amount
	custody  domain.Amount
}

// NewMemory creates an empty vault.
func NewMemory() *Memory {
	return &Memory{balances: make(map[common.Address]domain.Amount)}
}

// Deposit credits an account's free balance from outside the system. This is
// the funding edge of the custody boundary (an operator top-up or an external
// settlement rail).
func (v *Memory) Deposit(ctx context.Context, account common.Address, amount domain.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("vault: deposit must be positive, got %s", amount)
	}
	v.mu.Lock()
	v.balances[account] += amount
	v.mu.Unlock()
	return nil
}

// Collect moves amount from the account's free balance into custody.
func (v *Memory) Collect(ctx context.Context, from common.Address, amount domain.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("vault: collect must be positive, got %s", amount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.balances[from] < amount {
		return fmt.Errorf("vault: collect %s from %s: %w", amount, from.Hex(), domain.ErrInsufficientFunds)
	}
	v.balances[from] -= amount
	v.custody += amount
	return nil
}

// Release moves amount out of custody to the recipient's free balance.
func (v *Memory) Release(ctx context.Context, to common.Address, amount domain.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("vault: release must be positive, got %s", amount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.custody < amount {
		return fmt.Errorf("vault: release %s exceeds custody %s: %w", amount, v.custody, domain.ErrInsufficientFunds)
	}
	v.custody -= amount
	v.balances[to] += amount
	return nil
}

// BalanceOf returns the account's free balance.
func (v *Memory) BalanceOf(ctx context.Context, account common.Address) (domain.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[account], nil
}

// CustodyBalance returns the aggregate value currently held in custody.
func (v *Memory) CustodyBalance(ctx context.Context) (domain.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.custody, nil
}

// Compile-time interface check.
var _ domain.Vault = (*Memory)(nil)
