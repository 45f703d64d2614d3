// Package registry owns the ordered collection of markets. Identifiers are
// sequential append-only indexes, never reused or compacted.
package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/ledger"
)

// Registry creates markets and routes operations to the owning ledger.
type Registry struct {
	mu      sync.RWMutex
	ledgers []*ledger.MarketLedger
	deps    ledger.Deps
}

// New creates an empty registry; every market it creates shares deps.
func New(deps ledger.Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Registry{deps: deps}
}

// Create appends a new open market and returns its snapshot. The identifier
// is the market's position in the sequence.
func (r *Registry) Create(description string, duration time.Duration, threshold int64, oracleRef string) (domain.Market, error) {
	if duration <= 0 {
		return domain.Market{}, domain.ErrInvalidDuration
	}
	if strings.TrimSpace(oracleRef) == "" {
		return domain.Market{}, domain.ErrMissingOracle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.deps.Now().UTC()
	m := domain.Market{
		ID:              int64(len(r.ledgers)),
		Description:     description,
		EndTime:         now.Add(duration),
		TargetThreshold: threshold,
		OracleRef:       oracleRef,
		CreatedAt:       now,
	}
	r.ledgers = append(r.ledgers, ledger.New(m, r.deps))
	return m, nil
}

// Get returns the ledger for the given identifier.
func (r *Registry) Get(id int64) (*ledger.MarketLedger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= int64(len(r.ledgers)) {
		return nil, fmt.Errorf("registry: market %d: %w", id, domain.ErrMarketNotFound)
	}
	return r.ledgers[id], nil
}

// Count returns the number of markets ever created.
func (r *Registry) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.ledgers))
}

// List returns snapshots of all markets in identifier order, paginated.
func (r *Registry) List(opts domain.ListOpts) []domain.Market {
	r.mu.RLock()
	ledgers := r.ledgers
	r.mu.RUnlock()

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > len(ledgers) {
		start = len(ledgers)
	}
	end := len(ledgers)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	out := make([]domain.Market, 0, end-start)
	for _, l := range ledgers[start:end] {
		out = append(out, l.Snapshot())
	}
	return out
}

// Restore appends a persisted market and its positions during startup.
// Markets must be restored in identifier order before any operation runs.
func (r *Registry) Restore(m domain.Market, positions []domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID != int64(len(r.ledgers)) {
		return fmt.Errorf("registry: restore market %d out of order, expected %d", m.ID, len(r.ledgers))
	}
	r.ledgers = append(r.ledgers, ledger.Restore(m, positions, r.deps))
	return nil
}
