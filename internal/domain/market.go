package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Side is one of the two mutually exclusive outcomes a participant can back.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two recognised sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// MarketStatus is the lifecycle state of a market as observed at a point in
// time. A market is "open" before its end time, "closed" after its end time
// but before resolution, and "resolved" once the outcome is fixed.
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// Market is the full accounting state of one binary-outcome market.
//
// YesPool/NoPool hold the cumulative net-of-fee value staked per side and
// YesShares/NoShares the cumulative shares minted per side; all four are
// monotonically non-decreasing. Outcome is meaningful only when Resolved is
// true (true means the yes side won).
type Market struct {
	ID              int64      `json:"id"`
	Description     string     `json:"description"`
	EndTime         time.Time  `json:"end_time"`
	YesPool         Amount     `json:"yes_pool"`
	NoPool          Amount     `json:"no_pool"`
	YesShares       Amount     `json:"yes_shares"`
	NoShares        Amount     `json:"no_shares"`
	Resolved        bool       `json:"resolved"`
	Outcome         bool       `json:"outcome"`
	TargetThreshold int64      `json:"target_threshold"`
	OracleRef       string     `json:"oracle_ref"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Status derives the lifecycle state at the given instant.
func (m Market) Status(now time.Time) MarketStatus {
	if m.Resolved {
		return MarketStatusResolved
	}
	if !now.Before(m.EndTime) {
		return MarketStatusClosed
	}
	return MarketStatusOpen
}

// Pool returns the pool total for one side.
func (m Market) Pool(side Side) Amount {
	if side == SideYes {
		return m.YesPool
	}
	return m.NoPool
}

// Shares returns the minted share total for one side.
func (m Market) Shares(side Side) Amount {
	if side == SideYes {
		return m.YesShares
	}
	return m.NoShares
}

// WinningSide returns the side fixed by resolution. Only meaningful when
// Resolved is true.
func (m Market) WinningSide() Side {
	if m.Outcome {
		return SideYes
	}
	return SideNo
}

// StakeReceipt reports the exact accounting split of one accepted stake.
// Fee + Net always equals the gross amount.
type StakeReceipt struct {
	MarketID int64          `json:"market_id"`
	Account  common.Address `json:"account"`
	Side     Side           `json:"side"`
	Gross    Amount         `json:"gross"`
	Fee      Amount         `json:"fee"`
	Net      Amount         `json:"net"`
	Shares   Amount         `json:"shares"`
	StakedAt time.Time      `json:"staked_at"`
}

// RedeemReceipt reports one completed redemption.
type RedeemReceipt struct {
	MarketID   int64          `json:"market_id"`
	Account    common.Address `json:"account"`
	Side       Side           `json:"side"`
	Shares     Amount         `json:"shares"`
	Reward     Amount         `json:"reward"`
	RedeemedAt time.Time      `json:"redeemed_at"`
}
