package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/auth"
	"github.com/openpredict/marketd/internal/ledger"
	"github.com/openpredict/marketd/internal/oracle"
	"github.com/openpredict/marketd/internal/registry"
	"github.com/openpredict/marketd/internal/service"
	"github.com/openpredict/marketd/internal/treasury"
	"github.com/openpredict/marketd/internal/vault"
)

func testService(t *testing.T, orc *oracle.Static, now *time.Time) *service.MarketService {
	t.Helper()

	v := vault.NewMemory()
	fees := treasury.New(v)
	reg := registry.New(ledger.Deps{
		Params: ledger.Params{MinStake: 10_000, FeeBps: 100},
		Vault:  v,
		Fees:   fees,
		Oracle: orc,
		Now:    func() time.Time { return *now },
	})
	return service.New(service.Deps{
		Registry: reg,
		Treasury: fees,
		Vault:    v,
		Funder:   v,
		Authz:    auth.AllowAll{},
		Admin:    common.HexToAddress("0xaa"),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSweepResolvesEndedMarkets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orc := oracle.NewStatic(map[string]int64{"eth-usd": 2000})
	svc := testService(t, orc, &now)
	ctx := context.Background()

	ended, err := svc.CreateMarket(ctx, "", service.CreateMarketInput{
		Description: "short market", Duration: time.Minute, Threshold: 1500, OracleRef: "eth-usd",
	})
	if err != nil {
		t.Fatalf("create ended market: %v", err)
	}
	open, err := svc.CreateMarket(ctx, "", service.CreateMarketInput{
		Description: "long market", Duration: 24 * time.Hour, Threshold: 1500, OracleRef: "eth-usd",
	})
	if err != nil {
		t.Fatalf("create open market: %v", err)
	}

	r, err := New(svc, "", "* * * * *", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Advance the service clock past the first market's end.
	now = now.Add(2 * time.Minute)
	r.Sweep(ctx)

	m0, _ := svc.GetMarket(ctx, ended.ID)
	m1, _ := svc.GetMarket(ctx, open.ID)

	if !m0.Resolved {
		t.Error("ended market not resolved by sweep")
	}
	if !m0.Outcome {
		t.Error("outcome = no, want yes (2000 >= 1500)")
	}
	if m1.Resolved {
		t.Error("open market resolved prematurely")
	}
}

func TestSweepSkipsOracleFailures(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orc := oracle.NewStatic(nil) // no readings: every read fails
	svc := testService(t, orc, &now)
	ctx := context.Background()

	if _, err := svc.CreateMarket(ctx, "", service.CreateMarketInput{
		Description: "stuck market", Duration: time.Minute, Threshold: 1, OracleRef: "missing",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	r, err := New(svc, "", "* * * * *", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now = now.Add(2 * time.Minute)
	r.Sweep(ctx)

	m, _ := svc.GetMarket(ctx, 0)
	if m.Resolved {
		t.Fatal("market resolved despite oracle failure")
	}

	// Feed recovers; the next sweep settles it.
	orc.Set("missing", 5)
	r.Sweep(ctx)
	m, _ = svc.GetMarket(ctx, 0)
	if !m.Resolved {
		t.Fatal("market not resolved after oracle recovery")
	}
}
