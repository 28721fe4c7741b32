package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lepton-rental/internal/rental"
	"lepton-rental/internal/usefulness"
)

// AccountHandlers serve calls made as the authenticated identity. Role
// checks for masters and the rate setter happen in the market.
type AccountHandlers struct {
	svc *rental.Service
	now func() time.Time
}

func NewAccountHandlers(svc *rental.Service, now func() time.Time) *AccountHandlers {
	return &AccountHandlers{svc: svc, now: now}
}

func callerOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := AccountFromContext(r.Context())
	if !ok {
		WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
	}
	return caller, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// respondAccount answers a successful mutation with the caller's summary.
func (h *AccountHandlers) respondAccount(w http.ResponseWriter, r *http.Request, caller string, now time.Time) {
	resp, err := h.svc.Account(r.Context(), caller, now)
	if err != nil {
		writeMarketError(w, "account", err)
		return
	}
	writeJSON(w, resp)
}

func (h *AccountHandlers) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		h.respondAccount(w, r, caller, h.now())
	}
}

func (h *AccountHandlers) Provision() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		var body struct {
			Amount int64 `json:"amount"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		metricMarketOpsTotal.Add(1)
		now := h.now()
		if err := h.svc.Provision(r.Context(), caller, body.Amount, now); err != nil {
			writeMarketError(w, "provision", err)
			return
		}
		h.respondAccount(w, r, caller, now)
	}
}

func (h *AccountHandlers) Withdraw() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		var body struct {
			Amount int64 `json:"amount"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		metricMarketOpsTotal.Add(1)
		now := h.now()
		if err := h.svc.Withdraw(r.Context(), caller, body.Amount, now); err != nil {
			writeMarketError(w, "withdraw", err)
			return
		}
		h.respondAccount(w, r, caller, now)
	}
}

// Lease places or replaces the caller's standing bid. Zero seats cancels.
func (h *AccountHandlers) Lease() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		var body struct {
			LimitPricePerBit int64 `json:"limit_price_per_bit"`
			Seats            int64 `json:"seats"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		metricMarketOpsTotal.Add(1)
		now := h.now()
		if err := h.svc.LeaseAll(r.Context(), caller, body.LimitPricePerBit, body.Seats, now); err != nil {
			writeMarketError(w, "lease", err)
			return
		}
		h.respondAccount(w, r, caller, now)
	}
}

func (h *AccountHandlers) ApplyForPowerUser() http.HandlerFunc {
	return h.flag("power_user", h.svc.ApplyForPowerUser)
}

func (h *AccountHandlers) RequestHistoricalData() http.HandlerFunc {
	return h.flag("historical_data", h.svc.RequestHistoricalData)
}

func (h *AccountHandlers) flag(op string, apply func(ctx context.Context, client string, now time.Time) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		metricMarketOpsTotal.Add(1)
		granted, err := apply(r.Context(), caller, h.now())
		if err != nil {
			writeMarketError(w, op, err)
			return
		}
		writeJSON(w, map[string]any{"ok": granted})
	}
}

func (h *AccountHandlers) DesignateBeneficiary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		var body struct {
			Beneficiary string `json:"beneficiary"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		metricMarketOpsTotal.Add(1)
		now := h.now()
		if err := h.svc.DesignateBeneficiary(r.Context(), caller, body.Beneficiary, now); err != nil {
			writeMarketError(w, "designate_beneficiary", err)
			return
		}
		h.respondAccount(w, r, caller, now)
	}
}

func (h *AccountHandlers) AddLepton() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		var body usefulness.Record
		if !decodeBody(w, r, &body) {
			return
		}
		metricMarketOpsTotal.Add(1)
		if err := h.svc.AddLepton(r.Context(), caller, body, h.now()); err != nil {
			writeMarketError(w, "add_lepton", err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "leptons": len(h.svc.Leptons())})
	}
}

func (h *AccountHandlers) SetRate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerOf(w, r)
		if !ok {
			return
		}
		var body struct {
			Rate int64 `json:"rate"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		metricMarketOpsTotal.Add(1)
		if err := h.svc.SetRate(r.Context(), caller, body.Rate, h.now()); err != nil {
			writeMarketError(w, "set_rate", err)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	}
}
