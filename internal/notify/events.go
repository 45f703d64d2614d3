package notify

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
)

// MarketResolvedMessage formats the operator notification for a resolved
// market.
func MarketResolvedMessage(m domain.Market, reading int64) (title, body string) {
	title = fmt.Sprintf("Market %d resolved: %s", m.ID, m.WinningSide())
	body = fmt.Sprintf(
		"%s\nOracle reading %d vs threshold %d.\nWinning pool %s, losing pool %s.",
		m.Description,
		reading, m.TargetThreshold,
		m.Pool(m.WinningSide()), m.Pool(opposite(m.WinningSide())),
	)
	return title, body
}

// FeesSweptMessage formats the operator notification for a treasury sweep.
func FeesSweptMessage(to common.Address, amount domain.Amount, at time.Time) (title, body string) {
	title = "Treasury swept"
	body = fmt.Sprintf("Transferred %s in accrued fees to %s at %s.",
		amount, to.Hex(), at.UTC().Format(time.RFC3339))
	return title, body
}

func opposite(s domain.Side) domain.Side {
	if s == domain.SideYes {
		return domain.SideNo
	}
	return domain.SideYes
}
