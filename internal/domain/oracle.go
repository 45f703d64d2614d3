package domain

import "context"

// PriceOracle is the external settlement price source. Read returns the
// current signed reading for the given reference (a feed symbol or path).
// The ledger compares the reading against a market's target threshold at
// resolution time; it performs no staleness or sanity checks of its own.
//
// Implementations: HTTP pull feeds, cached feeds, fixed readings for tests.
type PriceOracle interface {
	Read(ctx context.Context, ref string) (int64, error)
}
