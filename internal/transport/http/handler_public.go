package httptransport

import (
	"net/http"
	"time"

	"lepton-rental/internal/rental"

	"github.com/go-chi/chi/v5"
)

type PublicHandlers struct {
	svc *rental.Service
	now func() time.Time
}

func NewPublicHandlers(svc *rental.Service, now func() time.Time) *PublicHandlers {
	return &PublicHandlers{svc: svc, now: now}
}

func (h *PublicHandlers) Market() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Market(h.now())
		if err != nil {
			writeMarketError(w, "market", err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *PublicHandlers) Bids() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		bids, err := h.svc.Bids(h.now())
		if err != nil {
			writeMarketError(w, "bids", err)
			return
		}
		writeJSON(w, map[string]any{"items": page(bids, limit, offset), "total": len(bids), "limit": limit, "offset": offset})
	}
}

func (h *PublicHandlers) Renters() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renters, err := h.svc.Renters(h.now())
		if err != nil {
			writeMarketError(w, "renters", err)
			return
		}
		writeJSON(w, map[string]any{"items": renters})
	}
}

func (h *PublicHandlers) Leptons() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items := h.svc.Leptons()
		writeJSON(w, map[string]any{"items": page(items, limit, offset), "total": len(items), "limit": limit, "offset": offset})
	}
}

func (h *PublicHandlers) Clients() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items := h.svc.Clients()
		writeJSON(w, map[string]any{"items": page(items, limit, offset), "total": len(items), "limit": limit, "offset": offset})
	}
}

func (h *PublicHandlers) Roles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"owner":       h.svc.Owner(),
			"masters":     h.svc.Masters(),
			"rate_setter": h.svc.RateSetter(),
			"wallets":     h.svc.WalletHistory(),
		})
	}
}

func (h *PublicHandlers) Implementations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"history": h.svc.Implementations()}
		if cur, err := h.svc.Implementation(); err == nil {
			resp["current"] = cur
		}
		writeJSON(w, resp)
	}
}

// Account accepts a client or a beneficiary it designated.
func (h *PublicHandlers) Account() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "account_id")
		resp, err := h.svc.Account(r.Context(), id, h.now())
		if err != nil {
			writeMarketError(w, "account", err)
			return
		}
		writeJSON(w, resp)
	}
}
