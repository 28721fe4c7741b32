package rental

import (
	"testing"
	"time"

	"lepton-rental/internal/usefulness"
)

func newEngineState(t *testing.T, seats int64) (Engine, *State) {
	t.Helper()
	p := DefaultParams()
	p.MinPricePerBit = 1000
	p.TotalSeats = seats
	e, s := Engine{}, NewState(owner, p)
	if err := e.AddMaster(s, owner, "m", jan); err != nil {
		t.Fatalf("add master: %v", err)
	}
	if err := e.AddLepton(s, "m", usefulness.Record{Hash: "h1", Usefulness: 1_000_000}, jan); err != nil {
		t.Fatalf("add lepton: %v", err)
	}
	if err := e.SetEscrowWallet(s, owner, "escrow", jan); err != nil {
		t.Fatalf("escrow wallet: %v", err)
	}
	if err := e.SetRevenueWallet(s, owner, "revenue", jan); err != nil {
		t.Fatalf("revenue wallet: %v", err)
	}
	return e, s
}

func TestFirstClockLocksCurrentTerm(t *testing.T) {
	e, s := Engine{}, NewState(owner, DefaultParams())
	if err := e.UpdateLeaseTerms(s, jan); err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Term.Term != 97 || len(s.Term.Renters) != 0 || s.Term.PricePerBit != DefaultParams().MinPricePerBit {
		t.Fatalf("term = %+v", s.Term)
	}
	ev := s.Events()
	if len(ev) != 1 || ev[0].Kind != EventLeaseTermUpdated || ev[0].Amount != 97 {
		t.Fatalf("events = %+v", ev)
	}
}

func TestRolloverReplacesOutbidRenter(t *testing.T) {
	e, s := newEngineState(t, 1)
	for _, id := range []string{"c", "d"} {
		if err := e.Provision(s, id, 10_000, jan); err != nil {
			t.Fatalf("provision %s: %v", id, err)
		}
	}
	if err := e.LeaseAll(s, "c", 1000, 1, jan); err != nil {
		t.Fatalf("lease c: %v", err)
	}
	// No seat left in January, so d only competes for February.
	if err := e.LeaseAll(s, "d", 2000, 1, jan); err != nil {
		t.Fatalf("lease d: %v", err)
	}
	if s.Term.SeatsFor("c") != 1 || s.Term.SeatsFor("d") != 0 {
		t.Fatalf("january renters = %+v", s.Term.Renters)
	}

	s = s.Clone()
	if err := e.UpdateLeaseTerms(s, feb); err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if s.Term.SeatsFor("d") != 1 || s.Term.PricePerBit != 2000 || s.Term.RentPerSeat != 2000 {
		t.Fatalf("february term = %+v", s.Term)
	}
	if got := s.Accounts.Balance("d"); got != 8000 {
		t.Fatalf("d balance = %d, want 8000", got)
	}

	var removed, added bool
	for _, ev := range s.Events() {
		switch {
		case ev.Kind == EventRenterRemoved && ev.Account == "c" && ev.Detail == "outbid":
			removed = true
		case ev.Kind == EventRenterAdded && ev.Account == "d":
			added = true
		}
	}
	if !removed || !added {
		t.Fatalf("events = %+v", s.Events())
	}
	if tr := s.Transfers(); len(tr) != 0 {
		t.Fatalf("rollover requested transfers: %+v", tr)
	}
}

func TestResubmittedBidKeepsQueuePosition(t *testing.T) {
	e, s := newEngineState(t, 1)
	for _, id := range []string{"c", "d"} {
		if err := e.Provision(s, id, 10_000, jan); err != nil {
			t.Fatalf("provision %s: %v", id, err)
		}
	}
	// Both bid 1500 for the only seat; c was first.
	if err := e.LeaseAll(s, "c", 1500, 1, jan); err != nil {
		t.Fatalf("lease c: %v", err)
	}
	if err := e.LeaseAll(s, "d", 1500, 1, jan); err != nil {
		t.Fatalf("lease d: %v", err)
	}
	if err := e.LeaseAll(s, "c", 1500, 1, jan); err != nil {
		t.Fatalf("resubmit c: %v", err)
	}
	next, err := e.NextTerm(s)
	if err != nil {
		t.Fatalf("next term: %v", err)
	}
	if next.SeatsFor("c") != 1 || next.SeatsFor("d") != 0 {
		t.Fatalf("next term renters = %+v", next.Renters)
	}
}

func TestLeaseProratesWithinLockedTerm(t *testing.T) {
	e, s := newEngineState(t, 100)
	febStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if err := e.UpdateLeaseTerms(s, febStart); err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if err := e.Provision(s, "c", 50_000, febStart); err != nil {
		t.Fatalf("provision: %v", err)
	}
	stale := febStart.Add(-time.Second)
	if err := e.LeaseAll(s, "c", 1000, 31, stale); err != nil {
		t.Fatalf("lease: %v", err)
	}
	if s.Term.Term != 98 || s.Term.SeatsFor("c") != 31 {
		t.Fatalf("term = %+v", s.Term)
	}
	if got := s.Accounts.Balance("c"); got != 50_000-31_000 {
		t.Fatalf("c balance = %d, want %d", got, 50_000-31_000)
	}
}
