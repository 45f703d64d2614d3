package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticRead(t *testing.T) {
	o := NewStatic(map[string]int64{"REF-USD": 1500})
	ctx := context.Background()

	got, err := o.Read(ctx, "REF-USD")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 1500 {
		t.Errorf("reading = %d, want 1500", got)
	}

	if _, err := o.Read(ctx, "UNKNOWN"); err == nil {
		t.Error("unknown ref: expected error")
	}

	o.Set("REF-USD", -7)
	if got, _ := o.Read(ctx, "REF-USD"); got != -7 {
		t.Errorf("reading after Set = %d, want -7", got)
	}
}

func TestFeedClientRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/price/ETH-USD" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ref":"ETH-USD","reading":238912}`))
	}))
	defer srv.Close()

	c := NewFeedClient(srv.URL, srv.Client())
	got, err := c.Read(context.Background(), "ETH-USD")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 238912 {
		t.Errorf("reading = %d, want 238912", got)
	}
}

func TestFeedClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "feed offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewFeedClient(srv.URL, srv.Client())
	if _, err := c.Read(context.Background(), "ETH-USD"); err == nil {
		t.Fatal("expected error on 503")
	}
}

// mapCache is an in-memory ReadingCache for decorator tests.
type mapCache struct {
	entries map[string]int64
	failing bool
}

func (m *mapCache) Get(ctx context.Context, ref string) (int64, bool, error) {
	if m.failing {
		return 0, false, errors.New("cache down")
	}
	v, ok := m.entries[ref]
	return v, ok, nil
}

func (m *mapCache) Set(ctx context.Context, ref string, reading int64) error {
	if m.failing {
		return errors.New("cache down")
	}
	m.entries[ref] = reading
	return nil
}

// countingOracle wraps Static and counts upstream reads.
type countingOracle struct {
	next  *Static
	reads int
}

func (c *countingOracle) Read(ctx context.Context, ref string) (int64, error) {
	c.reads++
	return c.next.Read(ctx, ref)
}

func TestCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	upstream := &countingOracle{next: NewStatic(map[string]int64{"BTC-USD": 65_000})}
	cache := &mapCache{entries: map[string]int64{}}

	c := NewCached(upstream, cache, logger)

	for i := 0; i < 3; i++ {
		got, err := c.Read(ctx, "BTC-USD")
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if got != 65_000 {
			t.Errorf("Read %d = %d, want 65000", i, got)
		}
	}
	if upstream.reads != 1 {
		t.Errorf("upstream reads = %d, want 1 (cache should absorb repeats)", upstream.reads)
	}

	// Upstream errors pass through and nothing is cached.
	if _, err := c.Read(ctx, "UNKNOWN"); err == nil {
		t.Error("unknown ref: expected error")
	}
	if _, ok := cache.entries["UNKNOWN"]; ok {
		t.Error("failed read must not be cached")
	}
}

func TestCachedFallsThroughOnCacheFailure(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	upstream := &countingOracle{next: NewStatic(map[string]int64{"BTC-USD": 65_000})}

	c := NewCached(upstream, &mapCache{failing: true}, logger)

	got, err := c.Read(ctx, "BTC-USD")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 65_000 {
		t.Errorf("reading = %d, want 65000", got)
	}
	if upstream.reads != 1 {
		t.Errorf("upstream reads = %d, want 1", upstream.reads)
	}
}

func TestFeedClientBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewFeedClient(srv.URL, srv.Client())
	if _, err := c.Read(context.Background(), "ETH-USD"); err == nil {
		t.Fatal("expected decode error")
	}
}
