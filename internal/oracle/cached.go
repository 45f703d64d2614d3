package oracle

import (
	"context"
	"log/slog"

	"github.com/openpredict/marketd/internal/domain"
)

// ReadingCache stores readings keyed by oracle reference. A false second
// return from Get means no fresh entry exists.
type ReadingCache interface {
	Get(ctx context.Context, ref string) (int64, bool, error)
	Set(ctx context.Context, ref string, reading int64) error
}

// Cached decorates a PriceOracle with a read-through cache. Cache failures
// fall through to the underlying feed; a reading is never invented, only
// reused within the cache's TTL.
type Cached struct {
	next   domain.PriceOracle
	cache  ReadingCache
	logger *slog.Logger
}

// NewCached wraps next with the given cache.
func NewCached(next domain.PriceOracle, cache ReadingCache, logger *slog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		logger: logger.With(slog.String("component", "oracle_cache")),
	}
}

// Read returns the cached reading when fresh, otherwise reads from the
// underlying oracle and stores the result.
func (c *Cached) Read(ctx context.Context, ref string) (int64, error) {
	reading, ok, err := c.cache.Get(ctx, ref)
	if err != nil {
		c.logger.WarnContext(ctx, "reading cache get failed",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	} else if ok {
		return reading, nil
	}

	reading, err = c.next.Read(ctx, ref)
	if err != nil {
		return 0, err
	}

	if err := c.cache.Set(ctx, ref, reading); err != nil {
		c.logger.WarnContext(ctx, "reading cache set failed",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
	return reading, nil
}

var _ domain.PriceOracle = (*Cached)(nil)
