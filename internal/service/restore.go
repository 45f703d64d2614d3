package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openpredict/marketd/internal/domain"
)

// RestoreState rebuilds the in-memory registry and treasury from the
// persistent mirrors. It must run once at startup, before any operation
// flows. Without a market store there is nothing to restore.
func (s *MarketService) RestoreState(ctx context.Context) error {
	if s.deps.Markets == nil {
		return nil
	}

	markets, err := s.deps.Markets.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("service: restore markets: %w", err)
	}

	for _, m := range markets {
		var positions []domain.Position
		if s.deps.Positions != nil {
			positions, err = s.deps.Positions.ListByMarket(ctx, m.ID)
			if err != nil {
				return fmt.Errorf("service: restore positions for market %d: %w", m.ID, err)
			}
		}
		if err := s.deps.Registry.Restore(m, positions); err != nil {
			return fmt.Errorf("service: restore: %w", err)
		}
	}

	if s.deps.Fees != nil {
		balance, err := s.deps.Fees.Balance(ctx)
		if err != nil {
			return fmt.Errorf("service: restore treasury: %w", err)
		}
		s.deps.Treasury.Restore(balance)
	}

	s.logger.InfoContext(ctx, "state restored",
		slog.Int("markets", len(markets)),
	)
	return nil
}
