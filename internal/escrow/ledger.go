package escrow

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrUnknownAccount    = errors.New("unknown_account")
	ErrBeneficiaryTaken  = errors.New("beneficiary_taken")
)

type Account struct {
	ID               string `json:"id" cbor:"1,keyasint"`
	Balance          int64  `json:"escrow_balance" cbor:"2,keyasint"`
	LastTermBilled   int64  `json:"last_term_billed" cbor:"3,keyasint"`
	PowerUser        bool   `json:"power_user" cbor:"4,keyasint"`
	HistoricalAccess bool   `json:"historical_access" cbor:"5,keyasint"`
	Beneficiary      string `json:"beneficiary,omitempty" cbor:"6,keyasint,omitempty"`
}

// Ledger tracks escrowed balances per client plus the revenue recognised
// from charges. Balances never go negative.
type Ledger struct {
	accounts map[string]*Account
	order    []string
	// beneficiary -> client
	clientOf map[string]string
	revenue  int64
}

func NewLedger() *Ledger {
	return &Ledger{accounts: map[string]*Account{}, clientOf: map[string]string{}}
}

// Restore rebuilds a ledger from exported accounts in registration order.
func Restore(accounts []Account, revenue int64) (*Ledger, error) {
	l := NewLedger()
	for _, a := range accounts {
		if a.ID == "" || a.Balance < 0 {
			return nil, ErrInvalidAmount
		}
		if _, ok := l.accounts[a.ID]; ok {
			return nil, ErrInvalidAmount
		}
		acct := a
		l.accounts[a.ID] = &acct
		l.order = append(l.order, a.ID)
		if a.Beneficiary != "" {
			l.clientOf[a.Beneficiary] = a.ID
		}
	}
	l.revenue = revenue
	return l, nil
}

// Open registers id if it is new and reports whether it was created.
func (l *Ledger) Open(id string) bool {
	if _, ok := l.accounts[id]; ok {
		return false
	}
	l.accounts[id] = &Account{ID: id}
	l.order = append(l.order, id)
	return true
}

func (l *Ledger) Deposit(id string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.Open(id)
	a := l.accounts[id]
	if a.Balance > math.MaxInt64-amount {
		return ErrInvalidAmount
	}
	a.Balance += amount
	return nil
}

func (l *Ledger) Withdraw(id string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a, ok := l.accounts[id]
	if !ok {
		return ErrUnknownAccount
	}
	if amount > a.Balance {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	return nil
}

// Charge takes up to amount from id, recognises it as revenue and returns
// what was actually taken.
func (l *Ledger) Charge(id string, amount int64) int64 {
	a, ok := l.accounts[id]
	if !ok || amount <= 0 {
		return 0
	}
	if amount > a.Balance {
		amount = a.Balance
	}
	a.Balance -= amount
	l.revenue += amount
	return amount
}

func (l *Ledger) MarkBilled(id string, term int64) {
	if a, ok := l.accounts[id]; ok && term > a.LastTermBilled {
		a.LastTermBilled = term
	}
}

func (l *Ledger) SetPowerUser(id string, v bool) {
	if a, ok := l.accounts[id]; ok {
		a.PowerUser = v
	}
}

func (l *Ledger) SetHistoricalAccess(id string, v bool) {
	if a, ok := l.accounts[id]; ok {
		a.HistoricalAccess = v
	}
}

// Designate points beneficiary at client. Designating the client itself
// clears the current beneficiary.
func (l *Ledger) Designate(client, beneficiary string) error {
	a, ok := l.accounts[client]
	if !ok {
		return ErrUnknownAccount
	}
	if beneficiary == "" {
		return ErrInvalidAmount
	}
	if owner, taken := l.clientOf[beneficiary]; taken && owner != client {
		return ErrBeneficiaryTaken
	}
	if a.Beneficiary != "" {
		delete(l.clientOf, a.Beneficiary)
	}
	if beneficiary == client {
		a.Beneficiary = ""
		return nil
	}
	a.Beneficiary = beneficiary
	l.clientOf[beneficiary] = client
	return nil
}

// ClientFor resolves a beneficiary to the client that designated it, or
// returns addr unchanged.
func (l *Ledger) ClientFor(addr string) string {
	if c, ok := l.clientOf[addr]; ok {
		return c
	}
	return addr
}

func (l *Ledger) Balance(id string) int64 {
	if a, ok := l.accounts[id]; ok {
		return a.Balance
	}
	return 0
}

func (l *Ledger) Get(id string) (Account, bool) {
	a, ok := l.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

func (l *Ledger) Clients() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

func (l *Ledger) Accounts() []Account {
	out := make([]Account, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.accounts[id])
	}
	return out
}

func (l *Ledger) Balances() map[string]int64 {
	out := make(map[string]int64, len(l.accounts))
	for id, a := range l.accounts {
		out[id] = a.Balance
	}
	return out
}

// Beneficiaries lists designated beneficiaries, sorted.
func (l *Ledger) Beneficiaries() []string {
	out := make([]string, 0, len(l.clientOf))
	for b := range l.clientOf {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) TotalEscrow() int64 {
	var n int64
	for _, a := range l.accounts {
		n += a.Balance
	}
	return n
}

func (l *Ledger) Revenue() int64 { return l.revenue }

func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		accounts: make(map[string]*Account, len(l.accounts)),
		order:    make([]string, len(l.order)),
		clientOf: make(map[string]string, len(l.clientOf)),
		revenue:  l.revenue,
	}
	copy(out.order, l.order)
	for id, a := range l.accounts {
		acct := *a
		out.accounts[id] = &acct
	}
	for k, v := range l.clientOf {
		out.clientOf[k] = v
	}
	return out
}
