// Package leaseterm holds the monthly billing calendar, rent arithmetic and
// the lazy multi-term catch-up used to roll leases forward.
package leaseterm

import (
	"errors"
	"math"
	"math/bits"
	"time"
)

var ErrOverflow = errors.New("arithmetic_overflow")

// EpochYear anchors term numbering: January of EpochYear is term 1, so the
// zero term means "never".
const EpochYear = 2018

func Index(t time.Time) int64 {
	t = t.UTC()
	return int64(t.Year()-EpochYear)*12 + int64(t.Month())
}

// Start returns the first instant of a term in UTC.
func Start(term int64) time.Time {
	m := term - 1
	year := EpochYear + int(m/12)
	month := time.Month(m%12) + 1
	if m < 0 && m%12 != 0 {
		year--
		month += 12
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func DaysInMonth(t time.Time) int64 {
	t = t.UTC()
	return int64(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day())
}

// RemainingDays counts the days left in t's month, including t's own day.
func RemainingDays(t time.Time) int64 {
	return DaysInMonth(t) - int64(t.UTC().Day()-1)
}

// Prorate scales amount by the share of t's month still to run, rounding
// down.
func Prorate(amount int64, t time.Time) (int64, error) {
	return MulDiv(amount, RemainingDays(t), DaysInMonth(t))
}

// RentPerSeat prices one seat for a term: pricePerBit scaled by the total
// usefulness and divided back down by the usefulness precision.
func RentPerSeat(pricePerBit, totalUsefulness, precision int64) (int64, error) {
	return MulDiv(pricePerBit, totalUsefulness, precision)
}

// FullTermCost is what seats cost for a whole term at limitPrice.
func FullTermCost(seats, limitPrice, totalUsefulness, precision int64) (int64, error) {
	perSeat, err := MulDiv(limitPrice, totalUsefulness, precision)
	if err != nil {
		return 0, err
	}
	return Mul(perSeat, seats)
}

// MulDiv computes floor(a*b/c) for non-negative operands with a 128-bit
// intermediate product.
func MulDiv(a, b, c int64) (int64, error) {
	if a < 0 || b < 0 || c <= 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(c) {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(q), nil
}

func Mul(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(lo), nil
}
