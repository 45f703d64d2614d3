package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/ledger"
	"github.com/openpredict/marketd/internal/vault"
)

type fixedOracle int64

func (o fixedOracle) Read(ctx context.Context, ref string) (int64, error) {
	return int64(o), nil
}

type nopFees struct{}

func (nopFees) Credit(domain.Amount) {}

func testDeps() ledger.Deps {
	return ledger.Deps{
		Params: ledger.Params{MinStake: 10_000, FeeBps: 100},
		Vault:  vault.NewMemory(),
		Fees:   nopFees{},
		Oracle: fixedOracle(1500),
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	r := New(testDeps())

	for want := int64(0); want < 3; want++ {
		m, err := r.Create("m", time.Hour, 1000, "REF-USD")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if m.ID != want {
			t.Errorf("market ID = %d, want %d", m.ID, want)
		}
	}
	if got := r.Count(); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	r := New(testDeps())

	if _, err := r.Create("m", 0, 1000, "REF-USD"); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Errorf("zero duration: got %v, want ErrInvalidDuration", err)
	}
	if _, err := r.Create("m", -time.Hour, 1000, "REF-USD"); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Errorf("negative duration: got %v, want ErrInvalidDuration", err)
	}
	if _, err := r.Create("m", time.Hour, 1000, "  "); !errors.Is(err, domain.ErrMissingOracle) {
		t.Errorf("blank oracle ref: got %v, want ErrMissingOracle", err)
	}
	if got := r.Count(); got != 0 {
		t.Errorf("Count after rejected creates = %d, want 0", got)
	}
}

func TestCreateSetsEndTime(t *testing.T) {
	deps := testDeps()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deps.Now = func() time.Time { return now }
	r := New(deps)

	m, err := r.Create("m", 100*time.Second, 1000, "REF-USD")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if want := now.Add(100 * time.Second); !m.EndTime.Equal(want) {
		t.Errorf("EndTime = %v, want %v", m.EndTime, want)
	}
	if m.Resolved || m.YesPool != 0 || m.NoPool != 0 || m.YesShares != 0 || m.NoShares != 0 {
		t.Errorf("new market not zeroed: %+v", m)
	}
}

func TestGetUnknownID(t *testing.T) {
	r := New(testDeps())
	if _, err := r.Get(0); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("Get(0) on empty registry: got %v, want ErrMarketNotFound", err)
	}
	if _, err := r.Get(-1); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("Get(-1): got %v, want ErrMarketNotFound", err)
	}

	if _, err := r.Create("m", time.Hour, 1000, "REF-USD"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Get(1); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("Get past end: got %v, want ErrMarketNotFound", err)
	}
	if _, err := r.Get(0); err != nil {
		t.Errorf("Get(0): %v", err)
	}
}

func TestListPagination(t *testing.T) {
	r := New(testDeps())
	for i := 0; i < 5; i++ {
		if _, err := r.Create("m", time.Hour, 1000, "REF-USD"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page := r.List(domain.ListOpts{Limit: 2, Offset: 1})
	if len(page) != 2 {
		t.Fatalf("page length = %d, want 2", len(page))
	}
	if page[0].ID != 1 || page[1].ID != 2 {
		t.Errorf("page IDs = %d,%d, want 1,2", page[0].ID, page[1].ID)
	}

	all := r.List(domain.ListOpts{})
	if len(all) != 5 {
		t.Errorf("unpaginated list length = %d, want 5", len(all))
	}

	empty := r.List(domain.ListOpts{Offset: 10})
	if len(empty) != 0 {
		t.Errorf("past-end offset length = %d, want 0", len(empty))
	}
}

func TestRestoreEnforcesOrder(t *testing.T) {
	r := New(testDeps())
	acct := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	m0 := domain.Market{ID: 0, EndTime: time.Now().Add(time.Hour), OracleRef: "REF-USD"}
	if err := r.Restore(m0, []domain.Position{{MarketID: 0, Account: acct, YesShares: 5}}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := r.Restore(domain.Market{ID: 5}, nil); err == nil {
		t.Fatal("out-of-order restore accepted")
	}

	l, err := r.Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p := l.PositionOf(acct); p.YesShares != 5 {
		t.Errorf("restored position = %d, want 5", p.YesShares)
	}
}
