package leaseterm

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestIndexAndStart(t *testing.T) {
	tests := []struct {
		at   time.Time
		want int64
	}{
		{time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2018, time.December, 31, 23, 59, 59, 0, time.UTC), 12},
		{time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), 13},
		{time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC), 106},
	}
	for _, tt := range tests {
		if got := Index(tt.at); got != tt.want {
			t.Fatalf("Index(%s) = %d, want %d", tt.at, got, tt.want)
		}
		start := Start(tt.want)
		if start.Year() != tt.at.Year() || start.Month() != tt.at.Month() || start.Day() != 1 {
			t.Fatalf("Start(%d) = %s", tt.want, start)
		}
	}
	if got := Start(0); got.Year() != 2017 || got.Month() != time.December {
		t.Fatalf("Start(0) = %s", got)
	}
}

func TestIndexUsesUTC(t *testing.T) {
	loc := time.FixedZone("east", 10*3600)
	at := time.Date(2020, time.March, 1, 5, 0, 0, 0, loc) // still February in UTC
	if got, want := Index(at), int64(2*12+2); got != want {
		t.Fatalf("Index = %d, want %d", got, want)
	}
}

func TestDaysAndProrate(t *testing.T) {
	leap := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)
	if got := DaysInMonth(leap); got != 29 {
		t.Fatalf("DaysInMonth = %d, want 29", got)
	}
	if got := RemainingDays(leap); got != 20 {
		t.Fatalf("RemainingDays = %d, want 20", got)
	}

	tests := []struct {
		amount int64
		at     time.Time
		want   int64
	}{
		{1000, time.Date(2021, time.April, 1, 0, 0, 0, 0, time.UTC), 1000},
		{1000, time.Date(2021, time.April, 15, 0, 0, 0, 0, time.UTC), 533},
		{1000, time.Date(2021, time.April, 30, 0, 0, 0, 0, time.UTC), 33},
		{7, time.Date(2021, time.January, 31, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		got, err := Prorate(tt.amount, tt.at)
		if err != nil {
			t.Fatalf("Prorate: %v", err)
		}
		if got != tt.want {
			t.Fatalf("Prorate(%d, %s) = %d, want %d", tt.amount, tt.at.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestRentPerSeat(t *testing.T) {
	got, err := RentPerSeat(1000*1_000_000, 5_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("RentPerSeat: %v", err)
	}
	if got != 5_000_000_000 {
		t.Fatalf("rent = %d", got)
	}
	// intermediate product exceeds 64 bits but the result fits
	got, err = MulDiv(math.MaxInt64, 1_000_000, 1_000_000)
	if err != nil || got != math.MaxInt64 {
		t.Fatalf("MulDiv wide = %d, %v", got, err)
	}
	if _, err := MulDiv(math.MaxInt64, 4, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("MulDiv overflow err = %v", err)
	}
	if _, err := Mul(math.MaxInt64, 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Mul overflow err = %v", err)
	}
	cost, err := FullTermCost(3, 2000, 1_500_000, 1_000_000)
	if err != nil || cost != 9000 {
		t.Fatalf("FullTermCost = %d, %v", cost, err)
	}
}

// fixedPlanner gives every account still holding funds its listed seats at
// a constant rent.
func fixedPlanner(rent int64, seats map[string]int64, order []string) Planner {
	return func(term int64, balances map[string]int64) (TermPlan, error) {
		plan := TermPlan{Term: term, PricePerBit: rent, RentPerSeat: rent}
		for _, a := range order {
			if balances[a] <= 0 {
				continue
			}
			plan.Renters = append(plan.Renters, Renter{Account: a, Seats: seats[a]})
		}
		return plan, nil
	}
}

func TestCatchUpZeroElapsedIsNoop(t *testing.T) {
	in := Input{
		From:     50,
		To:       50,
		Balances: map[string]int64{"A": 100},
		Plan: func(int64, map[string]int64) (TermPlan, error) {
			t.Fatal("planner called with nothing elapsed")
			return TermPlan{}, nil
		},
	}
	res, err := CatchUp(in)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if len(res.Terms) != 0 || len(res.Charges) != 0 {
		t.Fatalf("unexpected work: %+v", res)
	}
	if !reflect.DeepEqual(res.Balances, in.Balances) {
		t.Fatalf("balances changed: %v", res.Balances)
	}
}

func TestCatchUpClampsAndDrops(t *testing.T) {
	balances := map[string]int64{"A": 1000, "B": 250}
	plan := fixedPlanner(100, map[string]int64{"A": 2, "B": 1}, []string{"A", "B"})
	res, err := CatchUp(Input{From: 10, To: 13, Balances: balances, Plan: plan})
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if balances["B"] != 250 {
		t.Fatalf("input balances mutated")
	}
	if res.Balances["A"] != 400 {
		t.Fatalf("A balance = %d, want 400", res.Balances["A"])
	}
	if res.Balances["B"] != 0 {
		t.Fatalf("B balance = %d, want 0", res.Balances["B"])
	}
	var dropped []Charge
	for _, c := range res.Charges {
		if c.Dropped {
			dropped = append(dropped, c)
		}
	}
	if len(dropped) != 1 || dropped[0].Account != "B" || dropped[0].Term != 13 || dropped[0].Amount != 50 {
		t.Fatalf("dropped = %+v", dropped)
	}
	if res.Final.Term != 13 || res.Final.SeatsFor("B") != 0 || res.Final.SeatsFor("A") != 2 {
		t.Fatalf("final plan = %+v", res.Final)
	}
	for _, bal := range res.Balances {
		if bal < 0 {
			t.Fatalf("negative balance: %v", res.Balances)
		}
	}
}

func TestCatchUpManyTermsMatchesSingleSteps(t *testing.T) {
	start := map[string]int64{"A": 1000, "B": 550, "C": 90}
	seats := map[string]int64{"A": 3, "B": 2, "C": 1}
	order := []string{"A", "B", "C"}

	bulk, err := CatchUp(Input{From: 20, To: 25, Balances: start, Plan: fixedPlanner(50, seats, order)})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}

	balances := start
	var final TermPlan
	for term := int64(20); term < 25; term++ {
		step, err := CatchUp(Input{From: term, To: term + 1, Balances: balances, Plan: fixedPlanner(50, seats, order)})
		if err != nil {
			t.Fatalf("step %d: %v", term, err)
		}
		balances = step.Balances
		final = step.Final
	}

	if !reflect.DeepEqual(bulk.Balances, balances) {
		t.Fatalf("balances differ: bulk=%v steps=%v", bulk.Balances, balances)
	}
	if !reflect.DeepEqual(bulk.Final, final) {
		t.Fatalf("final plan differs: bulk=%+v steps=%+v", bulk.Final, final)
	}
}

func TestCatchUpPropagatesPlannerError(t *testing.T) {
	_, err := CatchUp(Input{From: 1, To: 2, Plan: func(int64, map[string]int64) (TermPlan, error) {
		return TermPlan{}, ErrOverflow
	}})
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("err = %v", err)
	}
}
