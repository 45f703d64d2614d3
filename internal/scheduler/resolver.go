// Package scheduler runs the background resolution sweep: on a cron cadence
// it finds markets past their end time and resolves them from their oracles.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/service"
)

// sweepTimeout bounds a single resolution sweep.
const sweepTimeout = 2 * time.Minute

// Resolver periodically resolves every market whose end time has passed.
type Resolver struct {
	svc        *service.MarketService
	credential string
	cron       *cron.Cron
	logger     *slog.Logger
}

// New creates a Resolver that sweeps on the given 5-field cron spec using the
// supplied administrator credential.
func New(svc *service.MarketService, credential, spec string, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{
		svc:        svc,
		credential: credential,
		cron:       cron.New(),
		logger:     logger.With(slog.String("component", "resolver")),
	}

	if _, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		r.Sweep(ctx)
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the cron schedule.
func (r *Resolver) Start() {
	r.cron.Start()
	r.logger.Info("resolution sweep scheduled")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Resolver) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep resolves every market that is past its end time and not yet resolved.
// Individual failures are logged and skipped; an unavailable oracle leaves
// its market for the next sweep.
func (r *Resolver) Sweep(ctx context.Context) {
	markets, _ := r.svc.ListMarkets(ctx, domain.ListOpts{})
	now := time.Now()

	for _, m := range markets {
		if m.Resolved || now.Before(m.EndTime) {
			continue
		}

		resolved, err := r.svc.Resolve(ctx, r.credential, m.ID)
		switch {
		case err == nil:
			r.logger.InfoContext(ctx, "market auto-resolved",
				slog.Int64("market_id", m.ID),
				slog.String("outcome", string(resolved.WinningSide())),
			)
		case errors.Is(err, domain.ErrAlreadyResolved):
			// Lost the race to a manual resolve; nothing to do.
		case errors.Is(err, domain.ErrResolveTooEarly):
			// End time not reached on the authoritative clock yet.
		case errors.Is(err, domain.ErrLockHeld):
			r.logger.DebugContext(ctx, "market locked, skipping",
				slog.Int64("market_id", m.ID),
			)
		default:
			r.logger.WarnContext(ctx, "auto-resolve failed",
				slog.Int64("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
