package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is the value-custody boundary. Collect pulls an attached payment from
// an account into system custody (the stake path); Release pushes value from
// custody back to a recipient (redeem and sweep). Both must be called only
// after all ledger state for the operation has been decided, and Release must
// be the last action on any successful code path.
type Vault interface {
	// Collect moves amount from the account's balance into system custody.
	// Fails with ErrInsufficientFunds when the account cannot cover it.
	Collect(ctx context.Context, from common.Address, amount Amount) error

	// Release moves amount from system custody to the recipient.
	Release(ctx context.Context, to common.Address, amount Amount) error

	// BalanceOf returns the account's free (non-custodied) balance.
	BalanceOf(ctx context.Context, account common.Address) (Amount, error)

	// CustodyBalance returns the aggregate value currently held in custody.
	CustodyBalance(ctx context.Context) (Amount, error)
}
