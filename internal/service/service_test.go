package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openpredict/marketd/internal/auth"
	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/ledger"
	"github.com/openpredict/marketd/internal/oracle"
	"github.com/openpredict/marketd/internal/registry"
	"github.com/openpredict/marketd/internal/treasury"
	"github.com/openpredict/marketd/internal/vault"
)

const adminKey = "test-admin-key"

var (
	adminAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// ---------------------------------------------------------------------------
// In-memory fakes for the persistence and messaging edges
// ---------------------------------------------------------------------------

type memMarketStore struct {
	mu      sync.Mutex
	markets map[int64]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{markets: make(map[int64]domain.Market)}
}

func (s *memMarketStore) Upsert(ctx context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *memMarketStore) GetByID(ctx context.Context, id int64) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return m, nil
}

func (s *memMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Market, 0, len(s.markets))
	for id := int64(0); id < int64(len(s.markets)); id++ {
		out = append(out, s.markets[id])
	}
	return out, nil
}

func (s *memMarketStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.markets)), nil
}

type posKey struct {
	market  int64
	account common.Address
}

type memPositionStore struct {
	mu        sync.Mutex
	positions map[posKey]domain.Position
}

func newMemPositionStore() *memPositionStore {
	return &memPositionStore{positions: make(map[posKey]domain.Position)}
}

func (s *memPositionStore) Upsert(ctx context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[posKey{p.MarketID, p.Account}] = p
	return nil
}

func (s *memPositionStore) Get(ctx context.Context, marketID int64, account common.Address) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[posKey{marketID, account}], nil
}

func (s *memPositionStore) ListByMarket(ctx context.Context, marketID int64) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for k, p := range s.positions {
		if k.market == marketID && !p.Empty() {
			out = append(out, p)
		}
	}
	return out, nil
}

type memTreasuryStore struct {
	mu      sync.Mutex
	balance domain.Amount
	sweeps  int
}

func (s *memTreasuryStore) SetBalance(ctx context.Context, balance domain.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
	return nil
}

func (s *memTreasuryStore) Balance(ctx context.Context) (domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func (s *memTreasuryStore) RecordSweep(ctx context.Context, to common.Address, amount domain.Amount, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	return nil
}

type memAuditStore struct {
	mu     sync.Mutex
	events []string
}

func (s *memAuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memAuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type capturingBus struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *capturingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *capturingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *capturingBus) types(t *testing.T) []domain.EventType {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.EventType, 0, len(b.payloads))
	for _, p := range b.payloads {
		var evt domain.Event
		if err := json.Unmarshal(p, &evt); err != nil {
			t.Fatalf("unmarshal published event: %v", err)
		}
		out = append(out, evt.Type)
	}
	return out
}

type fakeLocks struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	f.acquired = append(f.acquired, key)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.held[key] = false
	}, nil
}

type fakeArchiver struct {
	mu      sync.Mutex
	records int
	lastID  int64
}

func (a *fakeArchiver) Archive(ctx context.Context, m domain.Market, reading int64, positions []domain.Position) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records++
	a.lastID = m.ID
	return "settlements/test.json", nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.EventType
}

func (n *recordingNotifier) Notify(ctx context.Context, event domain.EventType, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc       *MarketService
	vault     *vault.Memory
	oracle    *oracle.Static
	treasury  *treasury.FeeTreasury
	markets   *memMarketStore
	positions *memPositionStore
	fees      *memTreasuryStore
	audit     *memAuditStore
	bus       *capturingBus
	locks     *fakeLocks
	archiver  *fakeArchiver
	notifier  *recordingNotifier
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		vault:     vault.NewMemory(),
		oracle:    oracle.NewStatic(nil),
		markets:   newMemMarketStore(),
		positions: newMemPositionStore(),
		fees:      &memTreasuryStore{},
		audit:     &memAuditStore{},
		bus:       &capturingBus{},
		locks:     newFakeLocks(),
		archiver:  &fakeArchiver{},
		notifier:  &recordingNotifier{},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.treasury = treasury.New(f.vault)

	reg := registry.New(ledger.Deps{
		Params: ledger.Params{MinStake: 10_000, FeeBps: 100},
		Vault:  f.vault,
		Fees:   f.treasury,
		Oracle: f.oracle,
		Now:    func() time.Time { return f.now },
	})

	authz, err := auth.NewStaticKey(adminKey)
	if err != nil {
		t.Fatalf("NewStaticKey: %v", err)
	}

	f.svc = New(Deps{
		Registry:  reg,
		Treasury:  f.treasury,
		Vault:     f.vault,
		Funder:    f.vault,
		Authz:     authz,
		Admin:     adminAddr,
		Locks:     f.locks,
		Bus:       f.bus,
		Audit:     f.audit,
		Markets:   f.markets,
		Positions: f.positions,
		Fees:      f.fees,
		Archiver:  f.archiver,
		Notify:    f.notifier,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	for _, acct := range []common.Address{alice, bob} {
		if err := f.vault.Deposit(context.Background(), acct, 100_000_000); err != nil {
			t.Fatalf("fund %s: %v", acct.Hex(), err)
		}
	}
	return f
}

func (f *fixture) createMarket(t *testing.T) domain.Market {
	t.Helper()
	m, err := f.svc.CreateMarket(context.Background(), adminKey, CreateMarketInput{
		Description: "btc above 100k by friday",
		Duration:    time.Hour,
		Threshold:   1000,
		OracleRef:   "btc-usd",
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return m
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateMarketRequiresCapability(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateMarket(context.Background(), "wrong-key", CreateMarketInput{
		Description: "x", Duration: time.Hour, Threshold: 1, OracleRef: "r",
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}

	m := f.createMarket(t)
	if m.ID != 0 {
		t.Errorf("first market ID = %d, want 0", m.ID)
	}
	if len(f.markets.markets) != 1 {
		t.Errorf("persisted markets = %d, want 1", len(f.markets.markets))
	}
}

func TestStakeFlowMirrorsAndPublishes(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	r, err := f.svc.Stake(ctx, m.ID, alice, domain.SideYes, 1_000_000)
	if err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if r.Fee != 10_000 || r.Net != 990_000 {
		t.Errorf("receipt fee/net = %d/%d, want 10000/990000", r.Fee, r.Net)
	}

	stored, err := f.markets.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("mirrored market: %v", err)
	}
	if stored.YesPool != 990_000 {
		t.Errorf("mirrored yes pool = %d, want 990000", stored.YesPool)
	}

	pos, _ := f.positions.Get(ctx, m.ID, alice)
	if pos.YesShares != 990_000 {
		t.Errorf("mirrored position = %d, want 990000", pos.YesShares)
	}

	if bal, _ := f.fees.Balance(ctx); bal != 10_000 {
		t.Errorf("mirrored treasury = %d, want 10000", bal)
	}

	types := f.bus.types(t)
	if len(types) != 2 || types[1] != domain.EventStakePlaced {
		t.Errorf("published events = %v, want [market_created stake_placed]", types)
	}
	if len(f.audit.events) != 2 {
		t.Errorf("audit entries = %d, want 2", len(f.audit.events))
	}
}

func TestResolveArchivesAndNotifies(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	if _, err := f.svc.Stake(ctx, m.ID, alice, domain.SideYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.oracle.Set("btc-usd", 1500)
	f.now = m.EndTime.Add(time.Minute)

	resolved, err := f.svc.Resolve(ctx, adminKey, m.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Outcome {
		t.Error("outcome = no, want yes")
	}

	if f.archiver.records != 1 || f.archiver.lastID != m.ID {
		t.Errorf("archived records = %d (last %d), want 1 for market %d",
			f.archiver.records, f.archiver.lastID, m.ID)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0] != domain.EventMarketResolved {
		t.Errorf("notifications = %v, want [market_resolved]", f.notifier.events)
	}

	stored, _ := f.markets.GetByID(ctx, m.ID)
	if !stored.Resolved {
		t.Error("mirrored market not marked resolved")
	}
}

func TestResolveRequiresCapability(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	f.now = m.EndTime.Add(time.Minute)

	_, err := f.svc.Resolve(context.Background(), "intruder", m.ID)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestResolveRejectedWhileLockHeld(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()
	f.oracle.Set("btc-usd", 1500)
	f.now = m.EndTime.Add(time.Minute)

	release, err := f.locks.Acquire(ctx, "market:0", time.Minute)
	if err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	if _, err := f.svc.Resolve(ctx, adminKey, m.ID); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("got %v, want ErrLockHeld", err)
	}

	release()
	if _, err := f.svc.Resolve(ctx, adminKey, m.ID); err != nil {
		t.Fatalf("resolve after release: %v", err)
	}
}

func TestRedeemFlow(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	if _, err := f.svc.Stake(ctx, m.ID, alice, domain.SideYes, 1_000_000); err != nil {
		t.Fatalf("stake yes: %v", err)
	}
	if _, err := f.svc.Stake(ctx, m.ID, bob, domain.SideNo, 1_000_000); err != nil {
		t.Fatalf("stake no: %v", err)
	}
	f.oracle.Set("btc-usd", 1500)
	f.now = m.EndTime.Add(time.Minute)
	if _, err := f.svc.Resolve(ctx, adminKey, m.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	r, err := f.svc.Redeem(ctx, m.ID, alice)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if r.Reward != 1_980_000 {
		t.Errorf("reward = %d, want 1980000", r.Reward)
	}

	// The mirror reflects the cleared claim.
	pos, _ := f.positions.Get(ctx, m.ID, alice)
	if pos.YesShares != 0 {
		t.Errorf("mirrored position after redeem = %d, want 0", pos.YesShares)
	}

	if _, err := f.svc.Redeem(ctx, m.ID, bob); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("loser redeem: got %v, want ErrNothingToClaim", err)
	}
}

func TestSweepFees(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	if _, err := f.svc.Stake(ctx, m.ID, alice, domain.SideYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}

	amount, to, err := f.svc.SweepFees(ctx, adminKey)
	if err != nil {
		t.Fatalf("SweepFees: %v", err)
	}
	if amount != 10_000 || to != adminAddr {
		t.Errorf("swept %d to %s, want 10000 to admin", amount, to.Hex())
	}
	if f.fees.sweeps != 1 {
		t.Errorf("recorded sweeps = %d, want 1", f.fees.sweeps)
	}
	if bal, _ := f.vault.BalanceOf(ctx, adminAddr); bal != 10_000 {
		t.Errorf("admin balance = %d, want 10000", bal)
	}

	if _, _, err := f.svc.SweepFees(ctx, "wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("unauthorized sweep: got %v, want ErrUnauthorized", err)
	}
}

func TestRestoreStateRoundTrip(t *testing.T) {
	f := newFixture(t)
	m := f.createMarket(t)
	ctx := context.Background()

	if _, err := f.svc.Stake(ctx, m.ID, alice, domain.SideYes, 1_000_000); err != nil {
		t.Fatalf("stake: %v", err)
	}

	// Fresh process: same stores, empty registry.
	reg := registry.New(ledger.Deps{
		Params: ledger.Params{MinStake: 10_000, FeeBps: 100},
		Vault:  f.vault,
		Fees:   f.treasury,
		Oracle: f.oracle,
		Now:    func() time.Time { return f.now },
	})
	restored := New(Deps{
		Registry:  reg,
		Treasury:  treasury.New(f.vault),
		Vault:     f.vault,
		Funder:    f.vault,
		Authz:     auth.AllowAll{},
		Admin:     adminAddr,
		Markets:   f.markets,
		Positions: f.positions,
		Fees:      f.fees,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := restored.RestoreState(ctx); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}

	got, err := restored.GetMarket(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMarket after restore: %v", err)
	}
	if got.YesPool != 990_000 || got.YesShares != 990_000 {
		t.Errorf("restored pools = %d/%d, want 990000/990000", got.YesPool, got.YesShares)
	}

	pos, err := restored.PositionOf(ctx, m.ID, alice)
	if err != nil {
		t.Fatalf("PositionOf after restore: %v", err)
	}
	if pos.YesShares != 990_000 {
		t.Errorf("restored position = %d, want 990000", pos.YesShares)
	}

	balance, _ := restored.TreasuryStatus()
	if balance != 10_000 {
		t.Errorf("restored treasury = %d, want 10000", balance)
	}
}

func TestDepositAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	carol := common.HexToAddress("0x0000000000000000000000000000000000000ccc")
	if err := f.svc.Deposit(ctx, carol, 5_000_000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	bal, err := f.svc.BalanceOf(ctx, carol)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 5_000_000 {
		t.Errorf("balance = %d, want 5000000", bal)
	}
}
