package rental

import (
	"errors"
	"fmt"
	"time"

	"lepton-rental/internal/auction"
	"lepton-rental/internal/escrow"
	"lepton-rental/internal/leaseterm"
	"lepton-rental/internal/usefulness"
)

// Engine is the first market implementation.
type Engine struct{}

var _ Logic = Engine{}

// UpdateLeaseTerms rolls the locked term forward to now. Every operation
// runs it first.
func (Engine) UpdateLeaseTerms(s *State, now time.Time) error {
	cur := leaseterm.Index(now)
	if s.Term.Term == 0 {
		price := s.Params.MinPricePerBit
		rent, err := leaseterm.RentPerSeat(price, s.Chain.Total(), s.Params.Precision())
		if err != nil {
			return err
		}
		s.Term = leaseterm.TermPlan{Term: cur, PricePerBit: price, RentPerSeat: rent, Renters: []leaseterm.Renter{}}
		s.emit(now, EventLeaseTermUpdated, "", cur, "")
		return nil
	}
	if cur <= s.Term.Term {
		return nil
	}

	res, err := leaseterm.CatchUp(leaseterm.Input{
		From:     s.Term.Term,
		To:       cur,
		Balances: s.Accounts.Balances(),
		Plan: func(term int64, balances map[string]int64) (leaseterm.TermPlan, error) {
			return plan(s, term, balances)
		},
	})
	if err != nil {
		return err
	}

	prev := s.Term
	charges := res.Charges
	for _, tp := range res.Terms {
		s.Term.Term = tp.Term
		for len(charges) > 0 && charges[0].Term == tp.Term {
			c := charges[0]
			charges = charges[1:]
			taken := s.Accounts.Charge(c.Account, c.Amount)
			s.Accounts.MarkBilled(c.Account, c.Term)
			s.emit(now, EventCharged, c.Account, taken, "rent")
			if c.Dropped {
				s.emit(now, EventRenterRemoved, c.Account, c.Requested, "insufficient_funds")
			}
		}
		for _, r := range prev.Renters {
			if tp.SeatsFor(r.Account) == 0 && !droppedIn(res.Charges, tp.Term, r.Account) {
				s.emit(now, EventRenterRemoved, r.Account, r.Seats, "outbid")
			}
		}
		for _, r := range tp.Renters {
			if prev.SeatsFor(r.Account) != r.Seats {
				s.emit(now, EventRenterAdded, r.Account, r.Seats, "")
			}
		}
		s.emit(now, EventAuctionPriceSet, "", tp.PricePerBit, "")
		s.emit(now, EventLeasePriceCalculated, "", tp.RentPerSeat, "")
		s.emit(now, EventLeaseTermUpdated, "", tp.Term, "")
		prev = tp
	}
	s.Term = res.Final.Clone()
	for _, id := range res.Accounts() {
		if err := reevaluate(s, id, now); err != nil {
			return err
		}
	}
	return nil
}

func droppedIn(charges []leaseterm.Charge, term int64, account string) bool {
	for _, c := range charges {
		if c.Term == term && c.Account == account && c.Dropped {
			return true
		}
	}
	return false
}

// plan allocates a term from the live book. Bids under the floor or whose
// account cannot cover a full term at its own limit price are skipped. The
// price is the marginal winning bid, floored at the minimum.
func plan(s *State, term int64, balances map[string]int64) (leaseterm.TermPlan, error) {
	p := s.Params
	precision := p.Precision()
	total := s.Chain.Total()
	res := s.Book.Allocate(p.TotalSeats, func(b auction.Bid) bool {
		if b.LimitPrice < p.MinPricePerBit {
			return false
		}
		cost, err := leaseterm.FullTermCost(b.Seats, b.LimitPrice, total, precision)
		return err == nil && balances[b.Account] >= cost
	})
	price := p.MinPricePerBit
	if res.ClearingPrice > price {
		price = res.ClearingPrice
	}
	rent, err := leaseterm.RentPerSeat(price, total, precision)
	if err != nil {
		return leaseterm.TermPlan{}, err
	}
	out := leaseterm.TermPlan{Term: term, PricePerBit: price, RentPerSeat: rent, Renters: make([]leaseterm.Renter, 0, len(res.Allocations))}
	for _, a := range res.Allocations {
		out.Renters = append(out.Renters, leaseterm.Renter{Account: a.Account, Seats: a.Seats})
	}
	return out, nil
}

// NextTerm is what the following term would lock if it started now.
func (Engine) NextTerm(s *State) (leaseterm.TermPlan, error) {
	return plan(s, s.Term.Term+1, s.Accounts.Balances())
}

// powerUserMinimum is the next-term rent for a single seat.
func powerUserMinimum(s *State) (int64, error) {
	next, err := plan(s, s.Term.Term+1, s.Accounts.Balances())
	if err != nil {
		return 0, err
	}
	return next.RentPerSeat, nil
}

// reevaluate revokes flags the account's balance no longer supports.
func reevaluate(s *State, id string, now time.Time) error {
	a, ok := s.Accounts.Get(id)
	if !ok || (!a.PowerUser && !a.HistoricalAccess) {
		return nil
	}
	minimum, err := powerUserMinimum(s)
	if err != nil {
		return err
	}
	if a.PowerUser && a.Balance < minimum {
		s.Accounts.SetPowerUser(id, false)
		s.emit(now, EventPowerUserRevoked, id, a.Balance, "below_minimum")
	}
	if !a.HistoricalAccess {
		return nil
	}
	revoke := false
	switch s.Params.HistoricalPolicy {
	case PolicyDepletion:
		revoke = a.Balance == 0
	default:
		revoke = a.Balance < minimum
	}
	if revoke {
		s.Accounts.SetHistoricalAccess(id, false)
		s.emit(now, EventHistoricalRevoked, id, a.Balance, string(s.Params.HistoricalPolicy))
	}
	return nil
}

func (e Engine) clientGate(s *State, now time.Time) error {
	if s.Paused {
		return ErrPaused
	}
	return e.UpdateLeaseTerms(s, now)
}

func (e Engine) Provision(s *State, client string, amount int64, now time.Time) error {
	if err := e.clientGate(s, now); err != nil {
		return err
	}
	if client == "" || amount <= 0 {
		return ErrInvalidRequest
	}
	wallet := s.Roles.Escrow.Current()
	if wallet == "" {
		return ErrWalletNotConfigured
	}
	if err := s.Accounts.Deposit(client, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	s.transfer(client, wallet, amount)
	s.emit(now, EventProvisioned, client, amount, "")

	a, _ := s.Accounts.Get(client)
	minimum, err := powerUserMinimum(s)
	if err != nil {
		return err
	}
	if a.Balance < minimum {
		return nil
	}
	if !a.PowerUser {
		s.Accounts.SetPowerUser(client, true)
		s.emit(now, EventPowerUserGranted, client, a.Balance, "provision")
	}
	if s.Params.HistoricalPolicy == PolicyCoupled && !a.HistoricalAccess {
		s.Accounts.SetHistoricalAccess(client, true)
		s.emit(now, EventHistoricalGranted, client, a.Balance, "provision")
	}
	return nil
}

func (e Engine) Withdraw(s *State, client string, amount int64, now time.Time) error {
	if err := e.clientGate(s, now); err != nil {
		return err
	}
	if amount <= 0 {
		return ErrInvalidRequest
	}
	wallet := s.Roles.Escrow.Current()
	if wallet == "" {
		return ErrWalletNotConfigured
	}
	if err := s.Accounts.Withdraw(client, amount); err != nil {
		if errors.Is(err, escrow.ErrUnknownAccount) {
			return ErrInsufficientFunds
		}
		return err
	}
	s.transfer(wallet, client, amount)
	s.emit(now, EventWithdrawn, client, amount, "")
	return reevaluate(s, client, now)
}

// LeaseAll places the client's standing bid. Seats above the per-account cap
// are clamped and zero seats cancels. When the bid clears the current price
// and enough seats are free, the client also joins the current term at once
// and pays the rest of the month up front.
func (e Engine) LeaseAll(s *State, client string, limitPrice, seats int64, now time.Time) error {
	if err := e.clientGate(s, now); err != nil {
		return err
	}
	if s.Roles.Escrow.Current() == "" || s.Roles.Revenue.Current() == "" {
		return ErrWalletNotConfigured
	}
	if client == "" || seats < 0 || limitPrice < 0 {
		return ErrInvalidRequest
	}
	if limit := s.Params.SeatCap(); seats > limit {
		if limit == 0 {
			return fmt.Errorf("%w: seat cap is 0", ErrInvalidRequest)
		}
		seats = limit
	}
	s.Accounts.Open(client)
	bid, err := s.Book.Submit(client, limitPrice, seats, s.Params.MinPricePerBit)
	if err != nil {
		return err
	}
	s.emit(now, EventSeatsChanged, client, bid.Seats, fmt.Sprintf("limit_price=%d", limitPrice))
	if seats == 0 {
		return nil
	}

	if s.Term.SeatsFor(client) > 0 || limitPrice < s.Term.PricePerBit || s.SeatsAvailable() < seats {
		return nil
	}
	full, err := leaseterm.Mul(s.Term.RentPerSeat, seats)
	if err != nil {
		return err
	}
	// Prorate within the locked term even if now is older.
	at := now
	if start := leaseterm.Start(s.Term.Term); at.Before(start) {
		at = start
	}
	dues, err := leaseterm.Prorate(full, at)
	if err != nil {
		return err
	}
	if s.Accounts.Balance(client) < dues {
		return ErrInsufficientFunds
	}
	taken := s.Accounts.Charge(client, dues)
	s.Accounts.MarkBilled(client, s.Term.Term)
	s.Term.Renters = append(s.Term.Renters, leaseterm.Renter{Account: client, Seats: seats})
	s.emit(now, EventRenterAdded, client, seats, "mid_term")
	s.emit(now, EventCharged, client, taken, "prorated_rent")
	return reevaluate(s, client, now)
}

func (e Engine) ApplyForPowerUser(s *State, client string, now time.Time) (bool, error) {
	return e.buyFlag(s, client, now, s.Params.PowerUserFee, func(a escrow.Account) bool { return a.PowerUser },
		func() {
			s.Accounts.SetPowerUser(client, true)
			s.emit(now, EventPowerUserGranted, client, s.Accounts.Balance(client), "application")
		}, "power_user_fee")
}

func (e Engine) RequestHistoricalData(s *State, client string, now time.Time) (bool, error) {
	return e.buyFlag(s, client, now, s.Params.HistoricalFee, func(a escrow.Account) bool { return a.HistoricalAccess },
		func() {
			s.Accounts.SetHistoricalAccess(client, true)
			s.emit(now, EventHistoricalGranted, client, s.Accounts.Balance(client), "request")
		}, "historical_fee")
}

// buyFlag grants a flag when the balance left after the fee still meets the
// power-user minimum, charging the fee. Ineligible is a false result.
func (e Engine) buyFlag(s *State, client string, now time.Time, fee int64, has func(escrow.Account) bool, grant func(), reason string) (bool, error) {
	if err := e.clientGate(s, now); err != nil {
		return false, err
	}
	a, ok := s.Accounts.Get(client)
	if !ok {
		return false, nil
	}
	if has(a) {
		return true, nil
	}
	minimum, err := powerUserMinimum(s)
	if err != nil {
		return false, err
	}
	if a.Balance < fee || a.Balance-fee < minimum {
		return false, nil
	}
	if fee > 0 {
		taken := s.Accounts.Charge(client, fee)
		s.emit(now, EventCharged, client, taken, reason)
	}
	grant()
	if err := reevaluate(s, client, now); err != nil {
		return false, err
	}
	return true, nil
}

func (e Engine) DesignateBeneficiary(s *State, client, beneficiary string, now time.Time) error {
	if err := e.clientGate(s, now); err != nil {
		return err
	}
	if beneficiary == "" {
		return ErrInvalidRequest
	}
	if err := s.Accounts.Designate(client, beneficiary); err != nil {
		return err
	}
	s.emit(now, EventBeneficiaryDesignated, client, 0, beneficiary)
	return nil
}

func (e Engine) AddLepton(s *State, caller string, rec usefulness.Record, now time.Time) error {
	if err := s.Roles.RequireMaster(caller); err != nil {
		return err
	}
	if err := e.UpdateLeaseTerms(s, now); err != nil {
		return err
	}
	if err := s.Chain.Append(rec); err != nil {
		return err
	}
	s.emit(now, EventLeptonAdded, caller, rec.Usefulness, rec.Hash)
	return nil
}

func (e Engine) SetRate(s *State, caller string, rate int64, now time.Time) error {
	if err := s.Roles.RequireRateSetter(caller); err != nil {
		return err
	}
	if rate <= 0 {
		return ErrInvalidRequest
	}
	if err := e.UpdateLeaseTerms(s, now); err != nil {
		return err
	}
	s.Rate = Rate{Value: rate, UpdatedAt: now.Unix()}
	s.emit(now, EventRateUpdated, caller, rate, "")
	return nil
}

func (e Engine) ownerGate(s *State, caller string, now time.Time) error {
	if err := s.Roles.RequireOwner(caller); err != nil {
		return err
	}
	return e.UpdateLeaseTerms(s, now)
}

func (e Engine) AddMaster(s *State, caller, id string, now time.Time) error {
	if err := e.ownerGate(s, caller, now); err != nil {
		return err
	}
	if err := s.Roles.Masters.Add(id); err != nil {
		return err
	}
	s.emit(now, EventMasterAdded, id, 0, "")
	return nil
}

func (e Engine) RemoveMaster(s *State, caller, id string, now time.Time) error {
	if err := e.ownerGate(s, caller, now); err != nil {
		return err
	}
	if err := s.Roles.Masters.Remove(id); err != nil {
		return err
	}
	s.emit(now, EventMasterRemoved, id, 0, "")
	return nil
}

func (e Engine) SetRateSetter(s *State, caller, id string, now time.Time) error {
	if err := e.ownerGate(s, caller, now); err != nil {
		return err
	}
	if err := s.Roles.SetRateSetter(id); err != nil {
		return err
	}
	s.emit(now, EventRateSetterChanged, id, 0, "")
	return nil
}

func (e Engine) SetEscrowWallet(s *State, caller, id string, now time.Time) error {
	if err := e.ownerGate(s, caller, now); err != nil {
		return err
	}
	if err := s.Roles.SetEscrowWallet(id); err != nil {
		return err
	}
	s.emit(now, EventWalletChanged, id, 0, "escrow")
	return nil
}

func (e Engine) SetRevenueWallet(s *State, caller, id string, now time.Time) error {
	if err := e.ownerGate(s, caller, now); err != nil {
		return err
	}
	if err := s.Roles.SetRevenueWallet(id); err != nil {
		return err
	}
	s.emit(now, EventWalletChanged, id, 0, "revenue")
	return nil
}

// UpdateParams applies to computations after the call. The locked current
// term keeps its price and rent.
func (e Engine) UpdateParams(s *State, caller string, u ParamsUpdate, now time.Time) error {
	if err := e.ownerGate(s, caller, now); err != nil {
		return err
	}
	next, changes := u.apply(s.Params)
	if err := next.Validate(); err != nil {
		return err
	}
	s.Params = next
	for _, c := range changes {
		kind := EventParamChanged
		if c.name == "power_user_fee" || c.name == "historical_fee" {
			kind = EventFeeChanged
		}
		detail := c.name
		if c.text != "" {
			detail = c.name + "=" + c.text
		}
		s.emit(now, kind, caller, c.value, detail)
	}
	return nil
}

func (e Engine) SetPaused(s *State, caller string, paused bool, now time.Time) error {
	if err := e.ownerGate(s, caller, now); err != nil {
		return err
	}
	if s.Paused == paused {
		return ErrInvalidTransition
	}
	s.Paused = paused
	if paused {
		s.emit(now, EventPaused, caller, 0, "")
	} else {
		s.emit(now, EventUnpaused, caller, 0, "")
	}
	return nil
}
