package rental

import (
	"fmt"
	"time"

	"lepton-rental/internal/auction"
	"lepton-rental/internal/dispatch"
	"lepton-rental/internal/escrow"
	"lepton-rental/internal/leaseterm"
	"lepton-rental/internal/roles"
	"lepton-rental/internal/usefulness"
)

type Rate struct {
	// Value carries 8 decimals.
	Value     int64 `json:"value" cbor:"1,keyasint"`
	UpdatedAt int64 `json:"updated_at" cbor:"2,keyasint"`
}

// State is the market's data layer. Logic modules receive it by pointer
// and it outlives every module switch.
type State struct {
	Params   Params
	Chain    *usefulness.Chain
	Book     *auction.Book
	Accounts *escrow.Ledger
	Roles    *roles.Registry
	// Term is the locked current term. Term.Term == 0 until the market
	// first sees a clock.
	Term         leaseterm.TermPlan
	Rate         Rate
	Paused       bool
	RevenueSwept int64

	events    []Event
	transfers []Transfer
}

func NewState(owner string, p Params) *State {
	return &State{
		Params:   p,
		Chain:    usefulness.NewChain(),
		Book:     auction.NewBook(),
		Accounts: escrow.NewLedger(),
		Roles:    roles.NewRegistry(owner),
	}
}

// Clone deep-copies the state. Pending events and transfers are not
// carried over.
func (s *State) Clone() *State {
	return &State{
		Params:       s.Params,
		Chain:        s.Chain.Clone(),
		Book:         s.Book.Clone(),
		Accounts:     s.Accounts.Clone(),
		Roles:        s.Roles.Clone(),
		Term:         s.Term.Clone(),
		Rate:         s.Rate,
		Paused:       s.Paused,
		RevenueSwept: s.RevenueSwept,
	}
}

func (s *State) emit(at time.Time, kind EventKind, account string, amount int64, detail string) {
	s.events = append(s.events, Event{
		Kind:       kind,
		Term:       s.Term.Term,
		Account:    account,
		Amount:     amount,
		Detail:     detail,
		OccurredAt: at.UTC(),
	})
}

func (s *State) transfer(from, to string, amount int64) {
	if amount <= 0 || from == to {
		return
	}
	s.transfers = append(s.transfers, Transfer{From: from, To: to, Amount: amount})
}

// Events returns what the state has emitted since it was cloned.
func (s *State) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *State) Transfers() []Transfer {
	out := make([]Transfer, len(s.transfers))
	copy(out, s.transfers)
	return out
}

func (s *State) SeatsAvailable() int64 {
	n := s.Params.TotalSeats - s.Term.SeatsUsed()
	if n < 0 {
		return 0
	}
	return n
}

// Snapshot is the flat, encodable form of State plus the dispatch history.
type Snapshot struct {
	Params          Params              `cbor:"1,keyasint"`
	Leptons         []usefulness.Record `cbor:"2,keyasint"`
	Bids            []auction.Bid       `cbor:"3,keyasint"`
	NextSeq         uint64              `cbor:"4,keyasint"`
	Accounts        []escrow.Account    `cbor:"5,keyasint"`
	Revenue         int64               `cbor:"6,keyasint"`
	RevenueSwept    int64               `cbor:"7,keyasint"`
	Owner           string              `cbor:"8,keyasint"`
	Masters         []string            `cbor:"9,keyasint"`
	RateSetter      string              `cbor:"10,keyasint"`
	EscrowWallets   []string            `cbor:"11,keyasint"`
	RevenueWallets  []string            `cbor:"12,keyasint"`
	Term            leaseterm.TermPlan  `cbor:"13,keyasint"`
	Rate            Rate                `cbor:"14,keyasint"`
	Paused          bool                `cbor:"15,keyasint"`
	Implementations []dispatch.Record   `cbor:"16,keyasint"`
}

func (s *State) Snapshot(history []dispatch.Record) Snapshot {
	return Snapshot{
		Params:          s.Params,
		Leptons:         s.Chain.List(),
		Bids:            s.Book.List(),
		NextSeq:         s.Book.NextSeq(),
		Accounts:        s.Accounts.Accounts(),
		Revenue:         s.Accounts.Revenue(),
		RevenueSwept:    s.RevenueSwept,
		Owner:           s.Roles.Owner,
		Masters:         s.Roles.Masters.List(),
		RateSetter:      s.Roles.RateSetter,
		EscrowWallets:   s.Roles.Escrow.History(),
		RevenueWallets:  s.Roles.Revenue.History(),
		Term:            s.Term.Clone(),
		Rate:            s.Rate,
		Paused:          s.Paused,
		Implementations: history,
	}
}

// FromSnapshot rebuilds a State, re-checking the chain links, bid order and
// account balances on the way.
func FromSnapshot(snap Snapshot) (*State, error) {
	if err := snap.Params.Validate(); err != nil {
		return nil, err
	}
	chain, err := usefulness.Restore(snap.Leptons)
	if err != nil {
		return nil, fmt.Errorf("restore leptons: %w", err)
	}
	book, err := auction.Restore(snap.Bids, snap.NextSeq)
	if err != nil {
		return nil, fmt.Errorf("restore bids: %w", err)
	}
	ledger, err := escrow.Restore(snap.Accounts, snap.Revenue)
	if err != nil {
		return nil, fmt.Errorf("restore accounts: %w", err)
	}
	reg := roles.NewRegistry(snap.Owner)
	reg.Masters = roles.NewMasterSet(snap.Masters...)
	reg.RateSetter = snap.RateSetter
	reg.Escrow = roles.NewWalletLog(snap.EscrowWallets...)
	reg.Revenue = roles.NewWalletLog(snap.RevenueWallets...)
	return &State{
		Params:       snap.Params,
		Chain:        chain,
		Book:         book,
		Accounts:     ledger,
		Roles:        reg,
		Term:         snap.Term.Clone(),
		Rate:         snap.Rate,
		Paused:       snap.Paused,
		RevenueSwept: snap.RevenueSwept,
	}, nil
}
