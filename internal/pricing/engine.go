// Package pricing computes share issuance and reward splits for binary
// markets. All arithmetic is integer fixed point with floor division; the
// truncation always favours the pool over the claimant, so the reward math
// can never pay out more value than the pools hold.
package pricing

import (
	"math/big"

	"github.com/openpredict/marketd/internal/domain"
)

// MintShares returns the number of shares a net stake buys against one side's
// current totals.
//
// The first stake on a side bootstraps the price at 1 share per unit. Every
// later stake buys at the side's current pool/share ratio, floored:
//
//	shares = floor(stakeNet * existingShares / existingPool)
//
// A stake small enough that the product is below existingPool mints zero
// shares; the value still enters the pool. Callers must treat a zero return
// as a valid, non-failing outcome.
func MintShares(stakeNet, existingShares, existingPool domain.Amount) domain.Amount {
	if existingPool == 0 {
		return stakeNet
	}
	return mulDiv(stakeNet, existingShares, existingPool)
}

// Reward returns the proportional payout for callerShares out of the combined
// pool held by winningShares total: floor(callerShares * combinedPool /
// winningShares). winningShares must be non-zero.
func Reward(callerShares, combinedPool, winningShares domain.Amount) domain.Amount {
	return mulDiv(callerShares, combinedPool, winningShares)
}

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10_000

// Fee returns the skim taken from a gross stake at feeBps basis points:
// floor(gross * feeBps / 10000). The product exceeds int64 at the top of the
// amount range, so it takes the same big.Int path as the share math.
func Fee(gross domain.Amount, feeBps int64) domain.Amount {
	if feeBps == 0 {
		return 0
	}
	return mulDiv(gross, domain.Amount(feeBps), feeDenominator)
}

// mulDiv computes floor(a*b/c) exactly. The intermediate product can exceed
// int64 for large pools, so it goes through big.Int.
func mulDiv(a, b, c domain.Amount) domain.Amount {
	prod := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	prod.Quo(prod, big.NewInt(int64(c)))
	return domain.Amount(prod.Int64())
}
