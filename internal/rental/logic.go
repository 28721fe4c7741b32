package rental

import (
	"time"

	"lepton-rental/internal/leaseterm"
	"lepton-rental/internal/usefulness"
)

// Logic is a swappable market implementation. It owns no data: every call
// gets the State to act on and the caller-supplied time. An error must
// leave no partial effects the caller cares about; the service discards
// the working copy it passed in.
type Logic interface {
	UpdateLeaseTerms(s *State, now time.Time) error
	NextTerm(s *State) (leaseterm.TermPlan, error)

	Provision(s *State, client string, amount int64, now time.Time) error
	Withdraw(s *State, client string, amount int64, now time.Time) error
	LeaseAll(s *State, client string, limitPrice, seats int64, now time.Time) error
	ApplyForPowerUser(s *State, client string, now time.Time) (bool, error)
	RequestHistoricalData(s *State, client string, now time.Time) (bool, error)
	DesignateBeneficiary(s *State, client, beneficiary string, now time.Time) error

	AddLepton(s *State, caller string, rec usefulness.Record, now time.Time) error
	SetRate(s *State, caller string, rate int64, now time.Time) error

	AddMaster(s *State, caller, id string, now time.Time) error
	RemoveMaster(s *State, caller, id string, now time.Time) error
	SetRateSetter(s *State, caller, id string, now time.Time) error
	SetEscrowWallet(s *State, caller, id string, now time.Time) error
	SetRevenueWallet(s *State, caller, id string, now time.Time) error
	UpdateParams(s *State, caller string, u ParamsUpdate, now time.Time) error
	SetPaused(s *State, caller string, paused bool, now time.Time) error
}
