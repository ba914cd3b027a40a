package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/funding"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/settlement"
	"github.com/radieske/matka-settlement/internal/store"
	"github.com/radieske/matka-settlement/internal/store/storetest"
)

type apiHarness struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.Store
	cache *memCache
}

type memCache struct{ data map[string][]byte }

func (c *memCache) Get(_ context.Context, marketID, day string, dst any) (bool, error) {
	b, ok := c.data[marketID+day]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, marketID, day string, v any) error {
	b, err := json.Marshal(v)
	c.data[marketID+day] = b
	return err
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	s := storetest.New(t)
	log := zap.NewNop()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := settlement.New(s, log, settlement.Options{Location: time.UTC, Now: func() time.Time { return clock }})
	f := funding.New(s, log, funding.Rules{ReferralMinDeposit: decimal.NewFromInt(500), ReferralBonusPercent: decimal.NewFromInt(10)})
	cache := &memCache{data: map[string][]byte{}}
	api := NewServer(log, e, f, ledger.New(s, log), Options{Cache: cache})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &apiHarness{t: t, srv: srv, store: s, cache: cache}
}

func (h *apiHarness) do(method, path, user, role string, body any, out any) int {
	h.t.Helper()
	var rd bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			rd.WriteString(s)
		} else if err := json.NewEncoder(&rd).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &rd)
	if err != nil {
		h.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
		req.Header.Set(HeaderRole, role)
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		h.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (h *apiHarness) market(name string) domain.Market {
	h.t.Helper()
	m, err := h.store.GetMarketByName(context.Background(), name)
	if err != nil {
		h.t.Fatal(err)
	}
	return m
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.Invalid("x", "bad"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), http.StatusNotFound},
		{&domain.MarketClosedError{MarketID: "m", Session: domain.SessionOpen}, http.StatusForbidden},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{&domain.AlreadyDeclaredError{}, http.StatusConflict},
		{domain.ErrNotDeclared, http.StatusConflict},
		{domain.ErrInvalidState, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPublicReads(t *testing.T) {
	h := newAPI(t)
	var markets []domain.Market
	if code := h.do("GET", "/v1/markets", "", "", nil, &markets); code != http.StatusOK {
		t.Fatalf("GET /v1/markets = %d", code)
	}
	if len(markets) != 2 {
		t.Errorf("markets = %d, want 2", len(markets))
	}
	var gts []domain.GameType
	if code := h.do("GET", "/v1/game-types", "", "", nil, &gts); code != http.StatusOK || len(gts) != 7 {
		t.Errorf("GET /v1/game-types = %d with %d types", code, len(gts))
	}

	kalyan := h.market("KALYAN")
	var st settlement.SessionStatus
	if code := h.do("GET", "/v1/markets/"+kalyan.ID+"/status", "", "", nil, &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !st.Open || !st.Close || st.OpenTime != "10:00" {
		t.Errorf("SessionStatus = %+v", st)
	}
	if code := h.do("GET", "/v1/markets/nope", "", "", nil, nil); code != http.StatusNotFound {
		t.Errorf("GET unknown market = %d, want 404", code)
	}
}

func TestIdentityAndCapabilities(t *testing.T) {
	h := newAPI(t)
	if code := h.do("GET", "/v1/wallet", "", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("no identity = %d, want 401", code)
	}
	if code := h.do("GET", "/v1/wallet", "u1", "root", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("bad role = %d, want 401", code)
	}
	body := map[string]any{"market_id": "x", "session": "open", "pattern": "123"}
	if code := h.do("POST", "/v1/admin/results", "u1", "player", body, nil); code != http.StatusForbidden {
		t.Errorf("player declaring = %d, want 403", code)
	}
	if code := h.do("POST", "/v1/admin/results/x/revoke", "op", "operator", nil, nil); code != http.StatusForbidden {
		t.Errorf("operator revoking = %d, want 403", code)
	}
}

func TestBidLifecycleOverHTTP(t *testing.T) {
	h := newAPI(t)
	kalyan := h.market("KALYAN")
	storetest.Fund(t, h.store, "u1", 1000)

	bid := map[string]any{
		"market_id": kalyan.ID, "game_type_id": 1, "session": "open",
		"items": []map[string]any{{"selection": "6", "stake": 100}},
	}
	var placed settlement.Placement
	if code := h.do("POST", "/v1/bids", "u1", "player", bid, &placed); code != http.StatusCreated {
		t.Fatalf("POST /v1/bids = %d", code)
	}
	if len(placed.Bids) != 1 || !placed.Balance.Equal(decimal.NewFromInt(900)) {
		t.Errorf("placement = %+v", placed)
	}

	// validação, saldo e janela
	var e struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	bad := map[string]any{"market_id": kalyan.ID, "game_type_id": 1, "session": "open", "items": []map[string]any{{"selection": "66", "stake": 10}}}
	if code := h.do("POST", "/v1/bids", "u1", "player", bad, &e); code != http.StatusBadRequest || e.Field != "selection" {
		t.Errorf("bad selection = %d %+v", code, e)
	}
	big := map[string]any{"market_id": kalyan.ID, "game_type_id": 1, "session": "open", "items": []map[string]any{{"selection": "1", "stake": 5000}}}
	if code := h.do("POST", "/v1/bids", "u1", "player", big, nil); code != http.StatusPaymentRequired {
		t.Errorf("insufficient funds = %d, want 402", code)
	}
	if code := h.do("POST", "/v1/bids", "u1", "player", `{"market_id":`, nil); code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", code)
	}

	decl := map[string]any{"market_id": kalyan.ID, "session": "open", "pattern": "123"}
	var s settlement.Settlement
	if code := h.do("POST", "/v1/admin/results", "op", "operator", decl, &s); code != http.StatusOK {
		t.Fatalf("declare = %d", code)
	}
	if s.Won != 1 || !s.PaidOut.Equal(decimal.NewFromInt(950)) {
		t.Errorf("settlement = %+v", s)
	}
	if code := h.do("POST", "/v1/admin/results", "op", "operator", decl, nil); code != http.StatusConflict {
		t.Errorf("second declare = %d, want 409", code)
	}

	var res domain.Result
	if code := h.do("GET", "/v1/markets/"+kalyan.ID+"/results/2026-03-01", "", "", nil, &res); code != http.StatusOK {
		t.Fatalf("get result = %d", code)
	}
	if res.Open == nil || res.Open.Digit != 6 {
		t.Errorf("result = %+v", res)
	}
	if len(h.cache.data) != 1 {
		t.Errorf("cache entries = %d, want 1", len(h.cache.data))
	}

	var wl struct {
		Balance decimal.Decimal `json:"balance"`
	}
	h.do("GET", "/v1/wallet", "u1", "player", nil, &wl)
	if !wl.Balance.Equal(decimal.NewFromInt(1850)) {
		t.Errorf("wallet balance = %s, want 1850", wl.Balance)
	}

	var rev settlement.Revocation
	if code := h.do("POST", "/v1/admin/results/"+s.Result.ID+"/revoke", "boss", "admin", nil, &rev); code != http.StatusOK {
		t.Fatalf("revoke = %d", code)
	}
	if rev.Reopened != 1 {
		t.Errorf("revocation = %+v", rev)
	}
	if code := h.do("POST", "/v1/admin/results/"+s.Result.ID+"/revoke", "boss", "admin", nil, nil); code != http.StatusConflict {
		t.Errorf("revoke nothing = %d, want 409", code)
	}

	var bids []domain.Bid
	h.do("GET", "/v1/bids?market_id="+kalyan.ID, "u1", "player", nil, &bids)
	if len(bids) != 1 || bids[0].Status != domain.BidPending {
		t.Errorf("bids = %+v", bids)
	}

	var audit ledger.AuditReport
	if code := h.do("GET", "/v1/admin/wallets/u1/audit", "boss", "admin", nil, &audit); code != http.StatusOK || !audit.Consistent {
		t.Errorf("audit = %d %+v", code, audit)
	}
}

func TestMarketAdminAndRefund(t *testing.T) {
	h := newAPI(t)
	var m domain.Market
	body := map[string]any{"name": "TIME BAZAR", "open_time": "13:00", "close_time": "14:00"}
	if code := h.do("POST", "/v1/admin/markets", "boss", "admin", body, &m); code != http.StatusCreated {
		t.Fatalf("create market = %d", code)
	}
	if m.OpenTime != domain.MustTimeOfDay("13:00") {
		t.Errorf("market = %+v", m)
	}
	if code := h.do("POST", "/v1/admin/markets", "boss", "admin", body, nil); code != http.StatusConflict {
		t.Errorf("duplicate market = %d, want 409", code)
	}
	off := map[string]any{"betting_enabled": false}
	if code := h.do("PATCH", "/v1/admin/markets/"+m.ID, "boss", "admin", off, &m); code != http.StatusOK || m.BettingEnabled {
		t.Errorf("patch market = %d %+v", code, m)
	}

	storetest.Fund(t, h.store, "u1", 100)
	kalyan := h.market("KALYAN")
	bid := map[string]any{"market_id": kalyan.ID, "game_type_id": 2, "session": "open", "items": []map[string]any{{"selection": "12", "stake": 40}}}
	if code := h.do("POST", "/v1/bids", "u1", "player", bid, nil); code != http.StatusCreated {
		t.Fatalf("place jodi = %d", code)
	}
	var ref settlement.Refund
	if code := h.do("POST", "/v1/admin/markets/"+kalyan.ID+"/refund", "boss", "admin", map[string]string{"day": "2026-03-01"}, &ref); code != http.StatusOK {
		t.Fatalf("refund = %d", code)
	}
	if ref.Refunded != 1 {
		t.Errorf("refund = %+v", ref)
	}
	if code := h.do("POST", "/v1/admin/markets/"+kalyan.ID+"/reprocess", "boss", "admin", map[string]string{"day": "2026-03-01"}, nil); code != http.StatusNotFound {
		t.Errorf("reprocess without result = %d, want 404", code)
	}
	if code := h.do("POST", "/v1/admin/markets/"+kalyan.ID+"/reprocess", "boss", "admin", map[string]string{"day": "1/3/26"}, nil); code != http.StatusBadRequest {
		t.Errorf("reprocess bad day = %d, want 400", code)
	}
}

func TestFundingOverHTTP(t *testing.T) {
	h := newAPI(t)

	if code := h.do("POST", "/v1/referrals", "bob", "player", map[string]string{"referrer_id": "alice"}, nil); code != http.StatusCreated {
		t.Fatalf("referral = %d", code)
	}
	var d domain.Deposit
	if code := h.do("POST", "/v1/deposits", "bob", "player", map[string]string{"amount": "600", "reference": "upi"}, &d); code != http.StatusCreated {
		t.Fatalf("deposit = %d", code)
	}
	var pending []domain.Deposit
	h.do("GET", "/v1/admin/deposits?status=pending", "op", "operator", nil, &pending)
	if len(pending) != 1 {
		t.Fatalf("pending deposits = %d", len(pending))
	}
	var a funding.Approval
	if code := h.do("POST", "/v1/admin/deposits/"+d.ID+"/approve", "op", "operator", nil, &a); code != http.StatusOK {
		t.Fatalf("approve = %d", code)
	}
	if a.Bonus == nil || !a.Bonus.Amount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("approval = %+v", a)
	}
	if code := h.do("POST", "/v1/admin/deposits/"+d.ID+"/reject", "op", "operator", nil, nil); code != http.StatusConflict {
		t.Errorf("reject approved = %d, want 409", code)
	}

	var hold domain.LedgerEntry
	if code := h.do("POST", "/v1/withdrawals", "bob", "player", map[string]string{"amount": "200"}, &hold); code != http.StatusCreated {
		t.Fatalf("withdraw = %d", code)
	}
	if code := h.do("POST", "/v1/withdrawals", "bob", "player", map[string]string{"amount": "9000"}, nil); code != http.StatusPaymentRequired {
		t.Errorf("oversized withdraw = %d, want 402", code)
	}
	var holds []domain.LedgerEntry
	h.do("GET", "/v1/admin/withdrawals", "op", "operator", nil, &holds)
	if len(holds) != 1 || holds[0].ID != hold.ID {
		t.Errorf("holds = %+v", holds)
	}
	var voided domain.LedgerEntry
	if code := h.do("POST", "/v1/admin/withdrawals/"+hold.ID+"/reject", "op", "operator", nil, &voided); code != http.StatusOK || voided.Status != domain.EntryFailed {
		t.Errorf("reject withdrawal = %d %+v", code, voided)
	}

	var entries []domain.LedgerEntry
	h.do("GET", "/v1/wallet/entries", "bob", "player", nil, &entries)
	if len(entries) != 2 {
		t.Errorf("entries = %d, want deposit and voided hold", len(entries))
	}
	h.do("GET", "/v1/wallet/entries", "nobody", "player", nil, &entries)
	if len(entries) != 0 {
		t.Errorf("entries for new player = %d, want 0", len(entries))
	}
}
