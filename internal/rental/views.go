package rental

import (
	"time"

	"lepton-rental/internal/auction"
	"lepton-rental/internal/leaseterm"
)

type MarketView struct {
	TermIndex           int64            `json:"term_index"`
	TermStart           time.Time        `json:"term_start"`
	CurrentPricePerBit  int64            `json:"current_price_per_bit"`
	CurrentRentPerSeat  int64            `json:"current_rent_per_seat"`
	NextPricePerBit     int64            `json:"next_price_per_bit"`
	NextRentPerSeat     int64            `json:"next_rent_per_seat"`
	TotalUsefulness     int64            `json:"total_usefulness"`
	UsefulnessPrecision int64            `json:"usefulness_precision"`
	TotalSeats          int64            `json:"total_seats"`
	SeatsAvailable      int64            `json:"seats_available"`
	MaxSeatsPerAccount  int64            `json:"max_seats_per_account"`
	MinPricePerBit      int64            `json:"min_price_per_bit"`
	PowerUserMinimum    int64            `json:"power_user_minimum"`
	PowerUserFee        int64            `json:"power_user_fee"`
	HistoricalFee       int64            `json:"historical_fee"`
	HistoricalPolicy    HistoricalPolicy `json:"historical_policy"`
	Rate                Rate             `json:"rate"`
	Paused              bool             `json:"paused"`
	TotalEscrow         int64            `json:"total_escrow"`
	Revenue             int64            `json:"revenue"`
	Bidders             int              `json:"bidders"`
	Renters             int              `json:"renters"`
	Leptons             int              `json:"leptons"`
}

type AccountView struct {
	ID               string       `json:"id"`
	Beneficiary      string       `json:"beneficiary,omitempty"`
	EscrowBalance    int64        `json:"escrow_balance"`
	TokenBalance     int64        `json:"token_balance"`
	LastTermBilled   int64        `json:"last_term_billed"`
	PowerUser        bool         `json:"power_user"`
	HistoricalAccess bool         `json:"historical_access"`
	CurrentTermSeats int64        `json:"current_term_seats"`
	NextTermSeats    int64        `json:"next_term_seats"`
	Bid              *auction.Bid `json:"bid,omitempty"`
}

func marketView(l Logic, s *State) (MarketView, error) {
	next, err := l.NextTerm(s)
	if err != nil {
		return MarketView{}, err
	}
	return MarketView{
		TermIndex:           s.Term.Term,
		TermStart:           leaseterm.Start(s.Term.Term),
		CurrentPricePerBit:  s.Term.PricePerBit,
		CurrentRentPerSeat:  s.Term.RentPerSeat,
		NextPricePerBit:     next.PricePerBit,
		NextRentPerSeat:     next.RentPerSeat,
		TotalUsefulness:     s.Chain.Total(),
		UsefulnessPrecision: s.Params.Precision(),
		TotalSeats:          s.Params.TotalSeats,
		SeatsAvailable:      s.SeatsAvailable(),
		MaxSeatsPerAccount:  s.Params.SeatCap(),
		MinPricePerBit:      s.Params.MinPricePerBit,
		PowerUserMinimum:    next.RentPerSeat,
		PowerUserFee:        s.Params.PowerUserFee,
		HistoricalFee:       s.Params.HistoricalFee,
		HistoricalPolicy:    s.Params.HistoricalPolicy,
		Rate:                s.Rate,
		Paused:              s.Paused,
		TotalEscrow:         s.Accounts.TotalEscrow(),
		Revenue:             s.Accounts.Revenue(),
		Bidders:             s.Book.Len(),
		Renters:             len(s.Term.Renters),
		Leptons:             s.Chain.Len(),
	}, nil
}

func accountView(l Logic, s *State, id string) (AccountView, error) {
	a, ok := s.Accounts.Get(id)
	if !ok {
		return AccountView{}, ErrUnknownAccount
	}
	next, err := l.NextTerm(s)
	if err != nil {
		return AccountView{}, err
	}
	v := AccountView{
		ID:               a.ID,
		Beneficiary:      a.Beneficiary,
		EscrowBalance:    a.Balance,
		LastTermBilled:   a.LastTermBilled,
		PowerUser:        a.PowerUser,
		HistoricalAccess: a.HistoricalAccess,
		CurrentTermSeats: s.Term.SeatsFor(id),
		NextTermSeats:    next.SeatsFor(id),
	}
	if bid, ok := s.Book.Get(id); ok {
		v.Bid = &bid
	}
	return v, nil
}
