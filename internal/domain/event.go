package domain

import "time"

// EventType identifies an observable record emitted by a successful operation.
type EventType string

const (
	EventMarketCreated  EventType = "market_created"
	EventStakePlaced    EventType = "stake_placed"
	EventMarketResolved EventType = "market_resolved"
	EventRewardRedeemed EventType = "reward_redeemed"
	EventFeesSwept      EventType = "fees_swept"
)

// Event is emitted exactly once per successful mutating operation, never on
// failure. Detail carries the operation-specific parameters.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	MarketID int64          `json:"market_id,omitempty"`
	Detail   map[string]any `json:"detail"`
	At       time.Time      `json:"at"`
}
