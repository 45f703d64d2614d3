// Package oracle provides settlement price sources behind the narrow
// PriceOracle interface, so the ledger never depends on a concrete feed.
package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/openpredict/marketd/internal/domain"
)

// Static serves fixed readings per reference. Used in development and tests,
// and as the operator escape hatch when a feed is down and a market must be
// settled from a manually verified reading.
type Static struct {
	mu       sync.RWMutex
	readings map[string]int64
}

// NewStatic creates a static oracle from an initial reading set.
func NewStatic(readings map[string]int64) *Static {
	r := make(map[string]int64, len(readings))
	for k, v := range readings {
		r[k] = v
	}
	return &Static{readings: r}
}

// Set installs or replaces the reading for a reference.
func (s *Static) Set(ref string, reading int64) {
	s.mu.Lock()
	s.readings[ref] = reading
	s.mu.Unlock()
}

// Read returns the fixed reading for the reference.
func (s *Static) Read(ctx context.Context, ref string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reading, ok := s.readings[ref]
	if !ok {
		return 0, fmt.Errorf("oracle: no reading for %q", ref)
	}
	return reading, nil
}

var _ domain.PriceOracle = (*Static)(nil)
