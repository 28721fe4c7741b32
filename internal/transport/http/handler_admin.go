package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lepton-rental/internal/rental"
	"lepton-rental/internal/store"

	"github.com/go-chi/chi/v5"
)

// AdminHandlers act as the market owner once the admin key is checked.
type AdminHandlers struct {
	svc     *rental.Service
	records Records
	minter  Minter
	owner   string
	now     func() time.Time
}

func NewAdminHandlers(svc *rental.Service, records Records, minter Minter, owner string, now func() time.Time) *AdminHandlers {
	return &AdminHandlers{svc: svc, records: records, minter: minter, owner: owner, now: now}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"ok": true, "db": "up"}
		if err := h.records.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		if digest, err := h.svc.Digest(); err == nil {
			resp["state_digest"] = digest
		}
		if rec, err := h.svc.Implementation(); err == nil {
			resp["implementation"] = rec
		}
		writeJSON(w, resp)
	}
}

// ownerOp runs a market call as the owner and answers {"ok":true}.
func (h *AdminHandlers) ownerOp(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, owner string, now time.Time) error) {
	metricMarketOpsTotal.Add(1)
	if err := fn(r.Context(), h.owner, h.now()); err != nil {
		writeMarketError(w, op, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *AdminHandlers) UpdateParams() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body rental.ParamsUpdate
		if !decodeBody(w, r, &body) {
			return
		}
		h.ownerOp(w, r, "update_params", func(ctx context.Context, owner string, now time.Time) error {
			return h.svc.UpdateParams(ctx, owner, body, now)
		})
	}
}

type accountRequest struct {
	AccountID string `json:"account_id"`
}

func (h *AdminHandlers) AddMaster() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accountRequest
		if !decodeBody(w, r, &body) {
			return
		}
		if body.AccountID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		h.ownerOp(w, r, "add_master", func(ctx context.Context, owner string, now time.Time) error {
			return h.svc.AddMaster(ctx, owner, body.AccountID, now)
		})
	}
}

func (h *AdminHandlers) RemoveMaster() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "account_id")
		h.ownerOp(w, r, "remove_master", func(ctx context.Context, owner string, now time.Time) error {
			return h.svc.RemoveMaster(ctx, owner, id, now)
		})
	}
}

func (h *AdminHandlers) SetRateSetter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accountRequest
		if !decodeBody(w, r, &body) {
			return
		}
		h.ownerOp(w, r, "set_rate_setter", func(ctx context.Context, owner string, now time.Time) error {
			return h.svc.SetRateSetter(ctx, owner, body.AccountID, now)
		})
	}
}

// SetWallet points the escrow or revenue role at a wallet.
func (h *AdminHandlers) SetWallet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind     string `json:"kind"`
			WalletID string `json:"wallet_id"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		var set func(ctx context.Context, caller, id string, now time.Time) error
		switch body.Kind {
		case "escrow":
			set = h.svc.SetEscrowWallet
		case "revenue":
			set = h.svc.SetRevenueWallet
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		h.ownerOp(w, r, "set_"+body.Kind+"_wallet", func(ctx context.Context, owner string, now time.Time) error {
			return set(ctx, owner, body.WalletID, now)
		})
	}
}

func (h *AdminHandlers) Wallets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.records.ListWallets(r.Context(), limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"items": items, "roles": h.svc.WalletHistory(), "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Pause() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ownerOp(w, r, "pause", h.svc.Pause)
	}
}

func (h *AdminHandlers) Unpause() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ownerOp(w, r, "unpause", h.svc.Unpause)
	}
}

func (h *AdminHandlers) Upgrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Module string `json:"module"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		metricMarketOpsTotal.Add(1)
		rec, err := h.svc.Upgrade(r.Context(), h.owner, body.Module, h.now())
		if err != nil {
			writeMarketError(w, "upgrade", err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "implementation": rec})
	}
}

func (h *AdminHandlers) UpdateLeaseTerms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricMarketOpsTotal.Add(1)
		now := h.now()
		if err := h.svc.UpdateLeaseTerms(r.Context(), now); err != nil {
			writeMarketError(w, "update_lease_terms", err)
			return
		}
		resp, err := h.svc.Market(now)
		if err != nil {
			writeMarketError(w, "market", err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *AdminHandlers) Snapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.Snapshot(r.Context()); err != nil {
			writeMarketError(w, "snapshot", err)
			return
		}
		digest, _ := h.svc.Digest()
		writeJSON(w, map[string]any{"ok": true, "digest": digest})
	}
}

func (h *AdminHandlers) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		f := store.MarketEventFilter{Account: r.URL.Query().Get("account"), Kind: r.URL.Query().Get("kind")}
		items, err := h.records.ListMarketEvents(r.Context(), f, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		f := store.LedgerFilter{WalletID: r.URL.Query().Get("wallet_id")}
		if v := r.URL.Query().Get("from"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.From = &t
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.To = &t
			}
		}
		items, err := h.records.ListLedgerEntries(r.Context(), f, limit, offset)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

// Mint credits new tokens to a wallet outside the market.
func (h *AdminHandlers) Mint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			WalletID string `json:"wallet_id"`
			Amount   int64  `json:"amount"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.WalletID == "" || body.Amount <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		bal, err := h.minter.Mint(r.Context(), body.WalletID, body.Amount)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricTokensMinted.Add(body.Amount)
		writeJSON(w, map[string]any{"ok": true, "balance": bal})
	}
}

// IssueKey returns a new API key for account_id. The key is shown once.
func (h *AdminHandlers) IssueKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accountRequest
		if !decodeBody(w, r, &body) {
			return
		}
		if body.AccountID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		apiKey, err := store.NewAPIKey()
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		keyID, err := h.records.CreateAccountKey(r.Context(), body.AccountID, apiKey)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricKeysIssued.Add(1)
		writeJSON(w, map[string]any{"key_id": keyID, "account_id": body.AccountID, "api_key": apiKey})
	}
}

func (h *AdminHandlers) RevokeKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.records.RevokeAccountKeys(r.Context(), chi.URLParam(r, "account_id"))
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, map[string]any{"ok": true, "revoked": n})
	}
}
