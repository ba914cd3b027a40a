package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/store"
	"github.com/radieske/matka-settlement/internal/store/storetest"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// ids estáveis do catálogo padrão
const (
	gtSingleDigit int64 = 1
	gtJodi        int64 = 2
	gtSinglePatt  int64 = 3
	gtHalf        int64 = 6
	gtFull        int64 = 7
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(s string) {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type recordingSink struct {
	mu       sync.Mutex
	placed   []events.BidsPlaced
	declared []events.ResultDeclared
	revoked  []events.ResultRevoked
	fail     bool
}

func (s *recordingSink) BidsPlaced(_ context.Context, e events.BidsPlaced) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placed = append(s.placed, e)
	return s.err()
}

func (s *recordingSink) ResultDeclared(_ context.Context, e events.ResultDeclared) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declared = append(s.declared, e)
	return s.err()
}

func (s *recordingSink) ResultRevoked(_ context.Context, e events.ResultRevoked) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = append(s.revoked, e)
	return s.err()
}

func (s *recordingSink) err() error {
	if s.fail {
		return errors.New("broker down")
	}
	return nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	store  *store.Store
	engine *Engine
	clock  *fakeClock
	sink   *recordingSink
	ledger *ledger.Ledger
	reg    *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := storetest.New(t)
	clock := &fakeClock{}
	clock.Set("2026-03-01 09:00")
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	e := New(s, zap.NewNop(), Options{
		Location: time.UTC,
		Now:      clock.Now,
		Metrics:  NewMetrics(reg),
		Sinks:    []EventSink{sink},
	})
	return &harness{
		t: t, ctx: context.Background(), store: s, engine: e, clock: clock, sink: sink,
		ledger: ledger.New(s, zap.NewNop()), reg: reg,
	}
}

func (h *harness) market(name string) domain.Market {
	h.t.Helper()
	m, err := h.store.GetMarketByName(h.ctx, name)
	if err != nil {
		h.t.Fatalf("GetMarketByName(%s) error: %v", name, err)
	}
	return m
}

func (h *harness) place(owner string, m domain.Market, gt int64, session domain.Session, items ...BidItem) Placement {
	h.t.Helper()
	p, err := h.engine.PlaceBid(h.ctx, BidRequest{
		OwnerID: owner, MarketID: m.ID, GameTypeID: gt, Session: session, Items: items,
	})
	if err != nil {
		h.t.Fatalf("PlaceBid(%s %v) error: %v", owner, items, err)
	}
	return p
}

func (h *harness) declare(m domain.Market, session domain.Session, pattern string, digit *int) Settlement {
	h.t.Helper()
	s, err := h.engine.DeclareResult(h.ctx, Declaration{MarketID: m.ID, Session: session, Pattern: pattern, Digit: digit})
	if err != nil {
		h.t.Fatalf("DeclareResult(%s %s) error: %v", session, pattern, err)
	}
	return s
}

func (h *harness) bid(id string) domain.Bid {
	h.t.Helper()
	b, err := h.store.GetBid(h.ctx, id)
	if err != nil {
		h.t.Fatalf("GetBid(%s) error: %v", id, err)
	}
	return b
}

func (h *harness) balance(owner string) decimal.Decimal {
	h.t.Helper()
	return storetest.Balance(h.t, h.store, owner)
}

func (h *harness) wantBalance(owner, want string) {
	h.t.Helper()
	if got := h.balance(owner); !got.Equal(decimal.RequireFromString(want)) {
		h.t.Errorf("balance(%s) = %s, want %s", owner, got, want)
	}
}

func (h *harness) wantConsistent(owners ...string) {
	h.t.Helper()
	for _, o := range owners {
		rep, err := h.ledger.Audit(h.ctx, o)
		if err != nil {
			h.t.Fatalf("Audit(%s) error: %v", o, err)
		}
		if !rep.Consistent {
			h.t.Errorf("Audit(%s) = balance %s, ledger %s", o, rep.Balance, rep.LedgerSum)
		}
	}
}

func digit(d int) *int { return &d }

func item(sel string, stake int64) BidItem { return BidItem{Selection: sel, Stake: stake} }
