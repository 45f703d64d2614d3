package domain

import "github.com/ethereum/go-ethereum/common"

// Position is one account's share holdings in one market, both sides.
// Positions are created lazily on first stake and zeroed (not deleted) on
// redemption.
type Position struct {
	MarketID  int64          `json:"market_id"`
	Account   common.Address `json:"account"`
	YesShares Amount         `json:"yes_shares"`
	NoShares  Amount         `json:"no_shares"`
}

// SharesOn returns the holding on one side.
func (p Position) SharesOn(side Side) Amount {
	if side == SideYes {
		return p.YesShares
	}
	return p.NoShares
}

// Empty reports whether the position holds no shares on either side.
func (p Position) Empty() bool {
	return p.YesShares == 0 && p.NoShares == 0
}
