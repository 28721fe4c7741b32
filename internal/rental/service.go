package rental

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lepton-rental/internal/auction"
	"lepton-rental/internal/codec"
	"lepton-rental/internal/dispatch"
	"lepton-rental/internal/leaseterm"
	"lepton-rental/internal/usefulness"

	"github.com/rs/zerolog/log"
)

// Payments moves fungible tokens between wallets. A source that cannot
// cover a transfer must yield an error matching ErrInsufficientFunds.
type Payments interface {
	Transfer(ctx context.Context, from, to string, amount int64) error
	BalanceOf(ctx context.Context, id string) (int64, error)
}

// Journal persists committed events and periodic snapshots.
type Journal interface {
	AppendEvents(ctx context.Context, events []Event) error
	SaveSnapshot(ctx context.Context, term int64, data []byte, digest string) error
}

type Options struct {
	Payments Payments
	Journal  Journal
	// SnapshotEvery saves a snapshot after this many commits. Zero
	// disables periodic snapshots.
	SnapshotEvery int
}

// Service serialises every mutation behind one writer. Each mutation runs
// on a copy of the state and replaces it only after the external transfers
// it requested have settled.
type Service struct {
	mu      sync.RWMutex
	state   *State
	modules *dispatch.Registry[Logic]
	opts    Options
	commits int
	// last is the latest time a committed mutation ran at.
	last time.Time
}

func NewService(state *State, modules *dispatch.Registry[Logic], opts Options) *Service {
	return &Service{state: state, modules: modules, opts: opts}
}

func (s *Service) logic() (Logic, dispatch.Record, error) {
	l, rec, err := s.modules.Current()
	if err != nil {
		return nil, dispatch.Record{}, ErrNoImplementation
	}
	return l, rec, nil
}

// clock raises now to the latest committed time and to the start of the
// locked term. Callers stamp requests before they queue for the lock, so a
// request can arrive after a later one has already rolled the term over.
func (s *Service) clock(now time.Time) time.Time {
	if now.Before(s.last) {
		now = s.last
	}
	if t := s.state.Term.Term; t > 0 {
		if start := leaseterm.Start(t); now.Before(start) {
			now = start
		}
	}
	return now
}

func (s *Service) mutate(ctx context.Context, op string, now time.Time, fn func(Logic, *State, time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, rec, err := s.logic()
	if err != nil {
		return err
	}
	if at := s.clock(now); !at.Equal(now) {
		log.Debug().Str("op", op).Time("requested", now).Time("applied", at).Msg("stale request time raised")
		now = at
	}
	next := s.state.Clone()
	if err := fn(l, next, now); err != nil {
		log.Debug().Err(err).Str("op", op).Str("module", rec.Module).Msg("market operation rejected")
		return err
	}
	s.sweepRevenue(next)
	if err := s.settle(ctx, next.transfers); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("market settlement failed")
		return err
	}
	events := next.Events()
	next.events, next.transfers = nil, nil
	s.state = next
	s.last = now
	log.Info().Str("op", op).Str("module", rec.Module).Int64("term", next.Term.Term).Int("events", len(events)).Msg("market operation committed")
	s.afterCommit(ctx, events)
	return nil
}

// sweepRevenue moves recognised revenue from the escrow wallet to the
// revenue wallet once both are configured.
func (s *Service) sweepRevenue(st *State) {
	esc, rev := st.Roles.Escrow.Current(), st.Roles.Revenue.Current()
	if esc == "" || rev == "" {
		return
	}
	owed := st.Accounts.Revenue() - st.RevenueSwept
	if owed <= 0 {
		return
	}
	st.transfer(esc, rev, owed)
	st.RevenueSwept += owed
}

// settle runs transfers in order and reverses the ones already applied
// when a later one fails.
func (s *Service) settle(ctx context.Context, transfers []Transfer) error {
	if s.opts.Payments == nil {
		return nil
	}
	for i, t := range transfers {
		if err := s.opts.Payments.Transfer(ctx, t.From, t.To, t.Amount); err != nil {
			for j := i - 1; j >= 0; j-- {
				done := transfers[j]
				if rerr := s.opts.Payments.Transfer(ctx, done.To, done.From, done.Amount); rerr != nil {
					log.Error().Err(rerr).Str("from", done.To).Str("to", done.From).Int64("amount", done.Amount).Msg("transfer compensation failed")
				}
			}
			return fmt.Errorf("transfer %s -> %s: %w", t.From, t.To, err)
		}
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, events []Event) {
	if s.opts.Journal == nil {
		return
	}
	if len(events) > 0 {
		if err := s.opts.Journal.AppendEvents(ctx, events); err != nil {
			log.Warn().Err(err).Int("events", len(events)).Msg("journal append failed")
		}
	}
	s.commits++
	if s.opts.SnapshotEvery > 0 && s.commits%s.opts.SnapshotEvery == 0 {
		if err := s.snapshotLocked(ctx); err != nil {
			log.Warn().Err(err).Msg("snapshot failed")
		}
	}
}

// view answers from a caught-up copy so reads never mutate the state.
func (s *Service) view(now time.Time, fn func(Logic, *State) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, _, err := s.logic()
	if err != nil {
		return err
	}
	cp := s.state.Clone()
	if err := l.UpdateLeaseTerms(cp, s.clock(now)); err != nil {
		return err
	}
	return fn(l, cp)
}

func (s *Service) UpdateLeaseTerms(ctx context.Context, now time.Time) error {
	return s.mutate(ctx, "update_lease_terms", now, func(l Logic, st *State, now time.Time) error {
		return l.UpdateLeaseTerms(st, now)
	})
}

func (s *Service) Provision(ctx context.Context, client string, amount int64, now time.Time) error {
	return s.mutate(ctx, "provision", now, func(l Logic, st *State, now time.Time) error {
		return l.Provision(st, client, amount, now)
	})
}

func (s *Service) Withdraw(ctx context.Context, client string, amount int64, now time.Time) error {
	return s.mutate(ctx, "withdraw", now, func(l Logic, st *State, now time.Time) error {
		return l.Withdraw(st, client, amount, now)
	})
}

func (s *Service) LeaseAll(ctx context.Context, client string, limitPrice, seats int64, now time.Time) error {
	return s.mutate(ctx, "lease_all", now, func(l Logic, st *State, now time.Time) error {
		return l.LeaseAll(st, client, limitPrice, seats, now)
	})
}

func (s *Service) ApplyForPowerUser(ctx context.Context, client string, now time.Time) (bool, error) {
	var ok bool
	err := s.mutate(ctx, "apply_for_power_user", now, func(l Logic, st *State, now time.Time) error {
		var err error
		ok, err = l.ApplyForPowerUser(st, client, now)
		return err
	})
	return ok, err
}

func (s *Service) RequestHistoricalData(ctx context.Context, client string, now time.Time) (bool, error) {
	var ok bool
	err := s.mutate(ctx, "request_historical_data", now, func(l Logic, st *State, now time.Time) error {
		var err error
		ok, err = l.RequestHistoricalData(st, client, now)
		return err
	})
	return ok, err
}

func (s *Service) DesignateBeneficiary(ctx context.Context, client, beneficiary string, now time.Time) error {
	return s.mutate(ctx, "designate_beneficiary", now, func(l Logic, st *State, now time.Time) error {
		return l.DesignateBeneficiary(st, client, beneficiary, now)
	})
}

func (s *Service) AddLepton(ctx context.Context, caller string, rec usefulness.Record, now time.Time) error {
	return s.mutate(ctx, "add_lepton", now, func(l Logic, st *State, now time.Time) error {
		return l.AddLepton(st, caller, rec, now)
	})
}

func (s *Service) SetRate(ctx context.Context, caller string, rate int64, now time.Time) error {
	return s.mutate(ctx, "set_rate", now, func(l Logic, st *State, now time.Time) error {
		return l.SetRate(st, caller, rate, now)
	})
}

func (s *Service) AddMaster(ctx context.Context, caller, id string, now time.Time) error {
	return s.mutate(ctx, "add_master", now, func(l Logic, st *State, now time.Time) error {
		return l.AddMaster(st, caller, id, now)
	})
}

func (s *Service) RemoveMaster(ctx context.Context, caller, id string, now time.Time) error {
	return s.mutate(ctx, "remove_master", now, func(l Logic, st *State, now time.Time) error {
		return l.RemoveMaster(st, caller, id, now)
	})
}

func (s *Service) SetRateSetter(ctx context.Context, caller, id string, now time.Time) error {
	return s.mutate(ctx, "set_rate_setter", now, func(l Logic, st *State, now time.Time) error {
		return l.SetRateSetter(st, caller, id, now)
	})
}

func (s *Service) SetEscrowWallet(ctx context.Context, caller, id string, now time.Time) error {
	return s.mutate(ctx, "set_escrow_wallet", now, func(l Logic, st *State, now time.Time) error {
		return l.SetEscrowWallet(st, caller, id, now)
	})
}

func (s *Service) SetRevenueWallet(ctx context.Context, caller, id string, now time.Time) error {
	return s.mutate(ctx, "set_revenue_wallet", now, func(l Logic, st *State, now time.Time) error {
		return l.SetRevenueWallet(st, caller, id, now)
	})
}

func (s *Service) UpdateParams(ctx context.Context, caller string, u ParamsUpdate, now time.Time) error {
	return s.mutate(ctx, "update_params", now, func(l Logic, st *State, now time.Time) error {
		return l.UpdateParams(st, caller, u, now)
	})
}

func (s *Service) Pause(ctx context.Context, caller string, now time.Time) error {
	return s.mutate(ctx, "pause", now, func(l Logic, st *State, now time.Time) error {
		return l.SetPaused(st, caller, true, now)
	})
}

func (s *Service) Unpause(ctx context.Context, caller string, now time.Time) error {
	return s.mutate(ctx, "unpause", now, func(l Logic, st *State, now time.Time) error {
		return l.SetPaused(st, caller, false, now)
	})
}

// Upgrade switches the active logic module. The state is not touched.
func (s *Service) Upgrade(ctx context.Context, caller, ref string, now time.Time) (dispatch.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.modules.Upgrade(caller, ref)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnauthorized) {
			return dispatch.Record{}, ErrUnauthorized
		}
		return dispatch.Record{}, err
	}
	log.Info().Str("module", rec.Module).Uint64("version", rec.Version).Msg("market implementation upgraded")
	s.afterCommit(ctx, []Event{{
		Kind:       EventImplementationUpgraded,
		Term:       s.state.Term.Term,
		Account:    caller,
		Amount:     int64(rec.Version),
		Detail:     rec.Module,
		OccurredAt: now.UTC(),
	}})
	return rec, nil
}

func (s *Service) Market(now time.Time) (MarketView, error) {
	var out MarketView
	err := s.view(now, func(l Logic, st *State) error {
		var err error
		out, err = marketView(l, st)
		return err
	})
	return out, err
}

// Account resolves beneficiaries to their client before looking up id.
func (s *Service) Account(ctx context.Context, id string, now time.Time) (AccountView, error) {
	var out AccountView
	err := s.view(now, func(l Logic, st *State) error {
		var err error
		out, err = accountView(l, st, st.Accounts.ClientFor(id))
		return err
	})
	if err != nil {
		return AccountView{}, err
	}
	if s.opts.Payments != nil {
		bal, err := s.opts.Payments.BalanceOf(ctx, out.ID)
		if err != nil {
			return AccountView{}, err
		}
		out.TokenBalance = bal
	}
	return out, nil
}

func (s *Service) Bids(now time.Time) ([]auction.Bid, error) {
	var out []auction.Bid
	err := s.view(now, func(_ Logic, st *State) error {
		out = st.Book.List()
		return nil
	})
	return out, err
}

func (s *Service) Renters(now time.Time) ([]leaseterm.Renter, error) {
	var out []leaseterm.Renter
	err := s.view(now, func(_ Logic, st *State) error {
		out = st.Term.Clone().Renters
		return nil
	})
	return out, err
}

func (s *Service) Clients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Accounts.Clients()
}

func (s *Service) ClientForBeneficiary(addr string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Accounts.ClientFor(addr)
}

func (s *Service) Leptons() []usefulness.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Chain.List()
}

func (s *Service) Masters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Roles.Masters.List()
}

type WalletHistory struct {
	Escrow  []string `json:"escrow"`
	Revenue []string `json:"revenue"`
}

func (s *Service) WalletHistory() WalletHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return WalletHistory{Escrow: s.state.Roles.Escrow.History(), Revenue: s.state.Roles.Revenue.History()}
}

func (s *Service) RateSetter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Roles.RateSetter
}

func (s *Service) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Roles.Owner
}

func (s *Service) Implementations() []dispatch.Record {
	return s.modules.History()
}

func (s *Service) Implementation() (dispatch.Record, error) {
	_, rec, err := s.logic()
	return rec, err
}

// Digest is the BLAKE3 digest of the committed state, without catch-up.
func (s *Service) Digest() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, digest, err := codec.Seal(s.state.Snapshot(s.modules.History()))
	return digest, err
}

// Snapshot writes the committed state to the journal.
func (s *Service) Snapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(ctx)
}

func (s *Service) snapshotLocked(ctx context.Context) error {
	if s.opts.Journal == nil {
		return nil
	}
	data, digest, err := codec.Seal(s.state.Snapshot(s.modules.History()))
	if err != nil {
		return err
	}
	if err := s.opts.Journal.SaveSnapshot(ctx, s.state.Term.Term, data, digest); err != nil {
		return err
	}
	log.Debug().Str("digest", digest).Int64("term", s.state.Term.Term).Int("bytes", len(data)).Msg("snapshot saved")
	return nil
}

// Restore loads a sealed snapshot, replacing the state and the module
// history.
func (s *Service) Restore(data []byte, digest string) error {
	var snap Snapshot
	if err := codec.Open(data, digest, &snap); err != nil {
		return err
	}
	st, err := FromSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.modules.Restore(snap.Implementations); err != nil {
		return fmt.Errorf("restore implementations: %w", err)
	}
	s.state = st
	s.last = time.Time{}
	return nil
}
