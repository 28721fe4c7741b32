package httptransport

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

	"lepton-rental/internal/config"
	"lepton-rental/internal/dispatch"
	"lepton-rental/internal/ledger"
	"lepton-rental/internal/rental"
	"lepton-rental/internal/store"

	"github.com/go-chi/chi/v5"
)

const testAdminKey = "admin-secret"

var testNow = time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)

type fakeRecords struct {
	keys    map[string]string
	pingErr error
	events  []store.MarketEvent
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{keys: map[string]string{}}
}

func (f *fakeRecords) GetAccountIDByAPIKey(_ context.Context, apiKey string) (string, error) {
	id, ok := f.keys[apiKey]
	if !ok {
		return "", store.ErrNotFound
	}
	return id, nil
}

func (f *fakeRecords) Ping(context.Context) error { return f.pingErr }

func (f *fakeRecords) CreateAccountKey(_ context.Context, accountID, apiKey string) (string, error) {
	f.keys[apiKey] = accountID
	return "key-" + accountID, nil
}

func (f *fakeRecords) RevokeAccountKeys(_ context.Context, accountID string) (int64, error) {
	var n int64
	for k, id := range f.keys {
		if id == accountID {
			delete(f.keys, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeRecords) ListMarketEvents(_ context.Context, filter store.MarketEventFilter, _, _ int) ([]store.MarketEvent, error) {
	out := []store.MarketEvent{}
	for _, e := range f.events {
		if filter.Account == "" || e.Account == filter.Account {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRecords) ListLedgerEntries(context.Context, store.LedgerFilter, int, int) ([]store.LedgerEntry, error) {
	return []store.LedgerEntry{}, nil
}

func (f *fakeRecords) ListWallets(context.Context, int, int) ([]store.Wallet, error) {
	return []store.Wallet{}, nil
}

type testServer struct {
	handler http.Handler
	records *fakeRecords
	tokens  *ledger.Memory
	svc     *rental.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	p := rental.DefaultParams()
	p.MinPricePerBit = 1000
	modules := dispatch.NewRegistry[rental.Logic]("owner")
	if err := modules.Register("v1", rental.Engine{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := modules.Upgrade("owner", "v1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	tokens := ledger.NewMemory(nil)
	svc := rental.NewService(rental.NewState("owner", p), modules, rental.Options{Payments: tokens})
	records := newFakeRecords()
	h := NewRouter(Deps{
		Market:  svc,
		Records: records,
		Minter:  tokens,
		Config:  config.ServerConfig{AdminAPIKey: testAdminKey, OwnerID: "owner"},
		Now:     func() time.Time { return testNow },
	})
	return &testServer{handler: h, records: records, tokens: tokens, svc: svc}
}

// do sends body as JSON. auth "admin" uses the admin key header; any other
// non-empty value is sent as a bearer key.
func (s *testServer) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	switch {
	case auth == "admin":
		req.Header.Set("X-Admin-Key", testAdminKey)
	case auth != "":
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) mustOK(t *testing.T, method, path, auth string, body any) map[string]any {
	t.Helper()
	rr := s.do(t, method, path, auth, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("%s %s status = %d body = %s", method, path, rr.Code, rr.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return out.Error
}

// issueKey creates an API key for id through the admin API.
func (s *testServer) issueKey(t *testing.T, id string) string {
	t.Helper()
	resp := s.mustOK(t, http.MethodPost, "/api/admin/keys", "admin", map[string]any{"account_id": id})
	key, _ := resp["api_key"].(string)
	if key == "" {
		t.Fatalf("no api key in %v", resp)
	}
	return key
}

func (s *testServer) configure(t *testing.T) (master string) {
	t.Helper()
	s.mustOK(t, http.MethodPost, "/api/admin/wallets", "admin", map[string]any{"kind": "escrow", "wallet_id": "escrow"})
	s.mustOK(t, http.MethodPost, "/api/admin/wallets", "admin", map[string]any{"kind": "revenue", "wallet_id": "revenue"})
	s.mustOK(t, http.MethodPost, "/api/admin/masters", "admin", map[string]any{"account_id": "m"})
	master = s.issueKey(t, "m")
	s.mustOK(t, http.MethodPost, "/api/account/leptons", master, map[string]any{"hash": "h1", "usefulness": 1_000_000})
	return master
}

func TestRoutesRegistered(t *testing.T) {
	s := newTestServer(t)
	want := map[string]bool{
		"GET /healthz":                           false,
		"GET /api/public/market":                 false,
		"GET /api/public/accounts/{account_id}":  false,
		"POST /api/account/lease":                false,
		"POST /api/account/provision":            false,
		"POST /api/admin/upgrade":                false,
		"DELETE /api/admin/masters/{account_id}": false,
		"GET /api/admin/debug/vars":              false,
	}
	err := chi.Walk(s.handler.(chi.Routes), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		key := fmt.Sprintf("%s %s", method, route)
		if _, ok := want[key]; ok {
			want[key] = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	for route, seen := range want {
		if !seen {
			t.Fatalf("route %s not registered", route)
		}
	}
}

func TestAccountRoutesRequireKey(t *testing.T) {
	s := newTestServer(t)
	if rr := s.do(t, http.MethodPost, "/api/account/provision", "", map[string]any{"amount": 1}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no key status = %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/account/provision", "bogus", map[string]any{"amount": 1}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown key status = %d", rr.Code)
	}
}

func TestAdminRoutesRequireAdminKey(t *testing.T) {
	s := newTestServer(t)
	if rr := s.do(t, http.MethodPost, "/api/admin/pause", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no admin key status = %d", rr.Code)
	}
	if rr := s.do(t, http.MethodPost, "/api/admin/pause", testAdminKey, nil); rr.Code != http.StatusOK {
		t.Fatalf("bearer admin key status = %d body = %s", rr.Code, rr.Body.String())
	}
	rr := s.do(t, http.MethodPost, "/api/admin/pause", "admin", nil)
	if rr.Code != http.StatusConflict || errorCode(t, rr) != "invalid_transition" {
		t.Fatalf("double pause = %d %s", rr.Code, rr.Body.String())
	}
}

func TestLeaseOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.configure(t)
	client := s.issueKey(t, "c")
	s.mustOK(t, http.MethodPost, "/api/admin/mint", "admin", map[string]any{"wallet_id": "c", "amount": 100_000})

	me := s.mustOK(t, http.MethodPost, "/api/account/provision", client, map[string]any{"amount": 100_000})
	if me["escrow_balance"].(float64) != 100_000 || me["token_balance"].(float64) != 0 {
		t.Fatalf("after provision = %v", me)
	}

	rr := s.do(t, http.MethodPost, "/api/account/lease", client, map[string]any{"limit_price_per_bit": 800, "seats": 9})
	if rr.Code != http.StatusUnprocessableEntity || errorCode(t, rr) != "price_too_low" {
		t.Fatalf("low bid = %d %s", rr.Code, rr.Body.String())
	}
	me = s.mustOK(t, http.MethodPost, "/api/account/lease", client, map[string]any{"limit_price_per_bit": 5000, "seats": 9})
	if me["current_term_seats"].(float64) != 9 || me["next_term_seats"].(float64) != 9 {
		t.Fatalf("after lease = %v", me)
	}

	bids := s.mustOK(t, http.MethodGet, "/api/public/bids", "", nil)
	if bids["total"].(float64) != 1 {
		t.Fatalf("bids = %v", bids)
	}
	market := s.mustOK(t, http.MethodGet, "/api/public/market", "", nil)
	if market["seats_available"].(float64) != 91 || market["next_price_per_bit"].(float64) != 5000 {
		t.Fatalf("market = %v", market)
	}

	rr = s.do(t, http.MethodPost, "/api/account/withdraw", client, map[string]any{"amount": 200_000})
	if rr.Code != http.StatusPaymentRequired || errorCode(t, rr) != "insufficient_funds" {
		t.Fatalf("overdraw = %d %s", rr.Code, rr.Body.String())
	}
}

func TestClientCannotActAsMaster(t *testing.T) {
	s := newTestServer(t)
	s.configure(t)
	client := s.issueKey(t, "c")
	rr := s.do(t, http.MethodPost, "/api/account/leptons", client, map[string]any{"hash": "h2", "previous_hash": "h1", "usefulness": 1})
	if rr.Code != http.StatusForbidden || errorCode(t, rr) != "unauthorized" {
		t.Fatalf("client add lepton = %d %s", rr.Code, rr.Body.String())
	}
	leptons := s.mustOK(t, http.MethodGet, "/api/public/leptons", "", nil)
	if leptons["total"].(float64) != 1 {
		t.Fatalf("leptons = %v", leptons)
	}
}

func TestPublicAccountResolvesBeneficiary(t *testing.T) {
	s := newTestServer(t)
	s.configure(t)
	client := s.issueKey(t, "c")
	s.mustOK(t, http.MethodPost, "/api/admin/mint", "admin", map[string]any{"wallet_id": "c", "amount": 100})
	s.mustOK(t, http.MethodPost, "/api/account/provision", client, map[string]any{"amount": 100})
	s.mustOK(t, http.MethodPost, "/api/account/beneficiary", client, map[string]any{"beneficiary": "b"})

	acct := s.mustOK(t, http.MethodGet, "/api/public/accounts/b", "", nil)
	if acct["id"] != "c" || acct["beneficiary"] != "b" {
		t.Fatalf("account via beneficiary = %v", acct)
	}
	if rr := s.do(t, http.MethodGet, "/api/public/accounts/nobody", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown account status = %d", rr.Code)
	}
}

func TestUpgradeOverHTTP(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodPost, "/api/admin/upgrade", "admin", map[string]any{"module": "v9"})
	if rr.Code != http.StatusNotFound || errorCode(t, rr) != "unknown_module" {
		t.Fatalf("unknown module = %d %s", rr.Code, rr.Body.String())
	}
	s.mustOK(t, http.MethodPost, "/api/admin/upgrade", "admin", map[string]any{"module": "v1"})
	impl := s.mustOK(t, http.MethodGet, "/api/public/implementations", "", nil)
	if hist, _ := impl["history"].([]any); len(hist) != 2 {
		t.Fatalf("implementations = %v", impl)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := s.mustOK(t, http.MethodGet, "/healthz", "", nil)
	if resp["ok"] != true || resp["state_digest"] == "" {
		t.Fatalf("health = %v", resp)
	}
	s.records.pingErr = errors.New("db down")
	if rr := s.do(t, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("health with db down = %d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{rental.ErrPaused, http.StatusConflict, "paused"},
		{fmt.Errorf("transfer a -> escrow: %w", rental.ErrInsufficientFunds), http.StatusPaymentRequired, "insufficient_funds"},
		{rental.ErrWalletNotConfigured, http.StatusPreconditionFailed, "wallet_not_configured"},
		{rental.ErrChainMismatch, http.StatusConflict, "chain_mismatch"},
		{rental.ErrNoImplementation, http.StatusServiceUnavailable, "no_implementation"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := statusFor(tt.err)
		if status != tt.status || code != tt.code {
			t.Fatalf("statusFor(%v) = %d %q, want %d %q", tt.err, status, code, tt.status, tt.code)
		}
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := page(items, 2, 1); len(got) != 2 || got[0] != 2 {
		t.Fatalf("page(2,1) = %v", got)
	}
	if got := page(items, 10, 4); len(got) != 1 {
		t.Fatalf("page(10,4) = %v", got)
	}
	if got := page(items, 10, 9); len(got) != 0 {
		t.Fatalf("page(10,9) = %v", got)
	}
}

func TestAdminEventsAndMint(t *testing.T) {
	s := newTestServer(t)
	s.records.events = []store.MarketEvent{
		{ID: "e1", Kind: "provisioned", Account: "c", Amount: 10},
		{ID: "e2", Kind: "provisioned", Account: "d", Amount: 5},
	}
	resp := s.mustOK(t, http.MethodGet, "/api/admin/events?account=c", "admin", nil)
	if items, _ := resp["items"].([]any); len(items) != 1 {
		t.Fatalf("events = %v", resp)
	}

	if rr := s.do(t, http.MethodPost, "/api/admin/mint", "admin", map[string]any{"wallet_id": "c", "amount": 0}); rr.Code != http.StatusBadRequest {
		t.Fatalf("zero mint status = %d", rr.Code)
	}
	s.mustOK(t, http.MethodPost, "/api/admin/mint", "admin", map[string]any{"wallet_id": "c", "amount": 70})
	if bal, _ := s.tokens.BalanceOf(context.Background(), "c"); bal != 70 {
		t.Fatalf("minted balance = %d", bal)
	}

	key := s.issueKey(t, "c")
	s.mustOK(t, http.MethodDelete, "/api/admin/keys/c", "admin", nil)
	if rr := s.do(t, http.MethodGet, "/api/account/me", key, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked key status = %d", rr.Code)
	}
}
