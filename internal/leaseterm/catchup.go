package leaseterm

import "sort"

type Renter struct {
	Account string `json:"account" cbor:"1,keyasint"`
	Seats   int64  `json:"seats" cbor:"2,keyasint"`
}

// TermPlan is the locked outcome of a term: its price, rent and renters.
type TermPlan struct {
	Term        int64    `json:"term" cbor:"1,keyasint"`
	PricePerBit int64    `json:"price_per_bit" cbor:"2,keyasint"`
	RentPerSeat int64    `json:"rent_per_seat" cbor:"3,keyasint"`
	Renters     []Renter `json:"renters" cbor:"4,keyasint"`
}

func (p TermPlan) SeatsFor(account string) int64 {
	for _, r := range p.Renters {
		if r.Account == account {
			return r.Seats
		}
	}
	return 0
}

func (p TermPlan) SeatsUsed() int64 {
	var n int64
	for _, r := range p.Renters {
		n += r.Seats
	}
	return n
}

func (p TermPlan) Clone() TermPlan {
	out := p
	out.Renters = make([]Renter, len(p.Renters))
	copy(out.Renters, p.Renters)
	return out
}

// Charge is one renter's bill for one term. Amount is below Requested only
// when the balance ran out, in which case Dropped is set.
type Charge struct {
	Term      int64  `json:"term"`
	Account   string `json:"account"`
	Requested int64  `json:"requested"`
	Amount    int64  `json:"amount"`
	Dropped   bool   `json:"dropped"`
}

// Planner decides the renters and rent for term given the balances left
// after every earlier term in the pass.
type Planner func(term int64, balances map[string]int64) (TermPlan, error)

type Input struct {
	// From is the last locked term and To the term that must be current
	// afterwards.
	From, To int64
	Balances map[string]int64
	Plan     Planner
}

type Result struct {
	Terms    []TermPlan
	Charges  []Charge
	Balances map[string]int64
	// Final is the plan locked for To. It is only meaningful when Terms
	// is non-empty.
	Final TermPlan
}

// CatchUp rolls the lease forward one term at a time from in.From to in.To.
// Each term is planned from the balances left by the previous one and every
// renter is billed rent*seats up front. A renter that cannot pay in full
// pays what it has and is dropped for the rest of the pass. The input
// balances are not modified.
func CatchUp(in Input) (Result, error) {
	res := Result{Balances: make(map[string]int64, len(in.Balances))}
	for k, v := range in.Balances {
		res.Balances[k] = v
	}
	if in.To <= in.From {
		return res, nil
	}
	dropped := map[string]bool{}
	for term := in.From + 1; term <= in.To; term++ {
		plan, err := in.Plan(term, res.Balances)
		if err != nil {
			return Result{}, err
		}
		plan.Term = term
		kept := make([]Renter, 0, len(plan.Renters))
		for _, r := range plan.Renters {
			if dropped[r.Account] || r.Seats <= 0 {
				continue
			}
			due, err := Mul(plan.RentPerSeat, r.Seats)
			if err != nil {
				return Result{}, err
			}
			bal := res.Balances[r.Account]
			c := Charge{Term: term, Account: r.Account, Requested: due, Amount: due}
			if due > bal {
				c.Amount = bal
				c.Dropped = true
				dropped[r.Account] = true
			} else {
				kept = append(kept, r)
			}
			res.Balances[r.Account] = bal - c.Amount
			res.Charges = append(res.Charges, c)
		}
		plan.Renters = kept
		res.Terms = append(res.Terms, plan)
	}
	res.Final = res.Terms[len(res.Terms)-1]
	return res, nil
}

// Accounts lists the accounts with a charge in res, sorted.
func (r Result) Accounts() []string {
	seen := map[string]struct{}{}
	for _, c := range r.Charges {
		seen[c.Account] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
