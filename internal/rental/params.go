package rental

import "fmt"

type HistoricalPolicy string

const (
	// PolicyCoupled grants and revokes historical access together with
	// power-user status.
	PolicyCoupled HistoricalPolicy = "coupled"
	// PolicyDepletion grants historical access only on request and revokes
	// it only when the escrow balance reaches zero.
	PolicyDepletion HistoricalPolicy = "depletion"
)

const maxUsefulnessExponent = 18

type Params struct {
	MinPricePerBit     int64            `json:"min_price_per_bit" yaml:"min_price_per_bit" cbor:"1,keyasint"`
	TotalSeats         int64            `json:"total_seats" yaml:"total_seats" cbor:"2,keyasint"`
	MaxSeatPercentage  int64            `json:"max_seat_percentage" yaml:"max_seat_percentage" cbor:"3,keyasint"`
	UsefulnessExponent int64            `json:"usefulness_exponent" yaml:"usefulness_exponent" cbor:"4,keyasint"`
	PowerUserFee       int64            `json:"power_user_fee" yaml:"power_user_fee" cbor:"5,keyasint"`
	HistoricalFee      int64            `json:"historical_fee" yaml:"historical_fee" cbor:"6,keyasint"`
	HistoricalPolicy   HistoricalPolicy `json:"historical_policy" yaml:"historical_policy" cbor:"7,keyasint"`
}

func DefaultParams() Params {
	return Params{
		MinPricePerBit:     1000 * 1_000_000,
		TotalSeats:         100,
		MaxSeatPercentage:  100,
		UsefulnessExponent: 6,
		HistoricalPolicy:   PolicyCoupled,
	}
}

// Precision is 10^UsefulnessExponent.
func (p Params) Precision() int64 {
	n := int64(1)
	for i := int64(0); i < p.UsefulnessExponent; i++ {
		n *= 10
	}
	return n
}

// SeatCap is the most seats one account may request.
func (p Params) SeatCap() int64 {
	return p.TotalSeats * p.MaxSeatPercentage / 100
}

func (p Params) Validate() error {
	switch {
	case p.MinPricePerBit < 0:
		return fmt.Errorf("%w: min_price_per_bit must be >= 0", ErrInvalidParams)
	case p.TotalSeats < 0 || p.TotalSeats > 1_000_000:
		return fmt.Errorf("%w: total_seats out of range", ErrInvalidParams)
	case p.MaxSeatPercentage < 1 || p.MaxSeatPercentage > 100:
		return fmt.Errorf("%w: max_seat_percentage must be 1..100", ErrInvalidParams)
	case p.UsefulnessExponent < 0 || p.UsefulnessExponent > maxUsefulnessExponent:
		return fmt.Errorf("%w: usefulness_exponent must be 0..18", ErrInvalidParams)
	case p.PowerUserFee < 0 || p.HistoricalFee < 0:
		return fmt.Errorf("%w: fees must be >= 0", ErrInvalidParams)
	case p.HistoricalPolicy != PolicyCoupled && p.HistoricalPolicy != PolicyDepletion:
		return fmt.Errorf("%w: unknown historical_policy %q", ErrInvalidParams, p.HistoricalPolicy)
	}
	return nil
}

// ParamsUpdate changes only the fields that are set.
type ParamsUpdate struct {
	MinPricePerBit     *int64            `json:"min_price_per_bit,omitempty"`
	TotalSeats         *int64            `json:"total_seats,omitempty"`
	MaxSeatPercentage  *int64            `json:"max_seat_percentage,omitempty"`
	UsefulnessExponent *int64            `json:"usefulness_exponent,omitempty"`
	PowerUserFee       *int64            `json:"power_user_fee,omitempty"`
	HistoricalFee      *int64            `json:"historical_fee,omitempty"`
	HistoricalPolicy   *HistoricalPolicy `json:"historical_policy,omitempty"`
}

type paramChange struct {
	name  string
	value int64
	text  string
}

func (u ParamsUpdate) apply(p Params) (Params, []paramChange) {
	var changes []paramChange
	setInt := func(name string, dst *int64, v *int64) {
		if v == nil || *dst == *v {
			return
		}
		*dst = *v
		changes = append(changes, paramChange{name: name, value: *v})
	}
	setInt("min_price_per_bit", &p.MinPricePerBit, u.MinPricePerBit)
	setInt("total_seats", &p.TotalSeats, u.TotalSeats)
	setInt("max_seat_percentage", &p.MaxSeatPercentage, u.MaxSeatPercentage)
	setInt("usefulness_exponent", &p.UsefulnessExponent, u.UsefulnessExponent)
	setInt("power_user_fee", &p.PowerUserFee, u.PowerUserFee)
	setInt("historical_fee", &p.HistoricalFee, u.HistoricalFee)
	if u.HistoricalPolicy != nil && *u.HistoricalPolicy != p.HistoricalPolicy {
		p.HistoricalPolicy = *u.HistoricalPolicy
		changes = append(changes, paramChange{name: "historical_policy", text: string(p.HistoricalPolicy)})
	}
	return p, changes
}
