package s3blob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

// SettlementRecord is the durable record archived when a market resolves. It
// captures the final accounting state and every outstanding position, so the
// full payout schedule can be reconstructed without the primary store.
type SettlementRecord struct {
	Market     domain.Market     `json:"market"`
	Reading    int64             `json:"oracle_reading"`
	Positions  []domain.Position `json:"positions"`
	ArchivedAt time.Time         `json:"archived_at"`
}

// SettlementArchiver serializes settlement records to JSON and uploads them
// under settlements/<market-id>.json.
type SettlementArchiver struct {
	writer domain.BlobWriter
}

// NewSettlementArchiver creates a SettlementArchiver using the given writer.
func NewSettlementArchiver(writer domain.BlobWriter) *SettlementArchiver {
	return &SettlementArchiver{writer: writer}
}

// Archive uploads the settlement record for a resolved market. It returns the
// object key on success.
func (a *SettlementArchiver) Archive(ctx context.Context, market domain.Market, reading int64, positions []domain.Position) (string, error) {
	if !market.Resolved {
		return "", fmt.Errorf("s3blob: archive settlement: market %d is not resolved", market.ID)
	}

	rec := SettlementRecord{
		Market:     market,
		Reading:    reading,
		Positions:  positions,
		ArchivedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal settlement %d: %w", market.ID, err)
	}

	key := fmt.Sprintf("settlements/%d.json", market.ID)
	if err := a.writer.Write(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive settlement %d: %w", market.ID, err)
	}
	return key, nil
}
