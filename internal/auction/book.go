package auction

import (
	"errors"
	"sort"
)

var (
	ErrPriceTooLow = errors.New("price_too_low")
	ErrInvalidBid  = errors.New("invalid_bid")
)

type Bid struct {
	Account    string `json:"account" cbor:"1,keyasint"`
	Seats      int64  `json:"seats" cbor:"2,keyasint"`
	LimitPrice int64  `json:"limit_price" cbor:"3,keyasint"`
	Seq        uint64 `json:"seq" cbor:"4,keyasint"`
}

type Allocation struct {
	Account    string `json:"account"`
	Seats      int64  `json:"seats"`
	LimitPrice int64  `json:"limit_price"`
}

type Result struct {
	Allocations    []Allocation `json:"allocations"`
	SeatsAllocated int64        `json:"seats_allocated"`
	// ClearingPrice is the limit price of the lowest winning bid, 0 when
	// nothing was allocated.
	ClearingPrice int64 `json:"clearing_price"`
}

// Book holds at most one active bid per account, ordered by limit price
// descending and then by submission order.
type Book struct {
	bids    []Bid
	nextSeq uint64
}

func NewBook() *Book {
	return &Book{nextSeq: 1}
}

// Restore rebuilds a book from exported bids. nextSeq must be greater than
// every Seq in bids.
func Restore(bids []Bid, nextSeq uint64) (*Book, error) {
	b := &Book{nextSeq: nextSeq}
	seen := make(map[string]struct{}, len(bids))
	for _, bid := range bids {
		if bid.Account == "" || bid.Seats <= 0 || bid.Seq >= nextSeq {
			return nil, ErrInvalidBid
		}
		if _, ok := seen[bid.Account]; ok {
			return nil, ErrInvalidBid
		}
		seen[bid.Account] = struct{}{}
		b.bids = append(b.bids, bid)
	}
	sort.SliceStable(b.bids, func(i, j int) bool { return less(b.bids[i], b.bids[j]) })
	return b, nil
}

func less(a, b Bid) bool {
	if a.LimitPrice != b.LimitPrice {
		return a.LimitPrice > b.LimitPrice
	}
	return a.Seq < b.Seq
}

// Submit places, replaces or cancels the account's bid. Seats == 0 cancels
// and the returned Bid is zero. A resubmission at an unchanged price keeps
// its queue position; a price change re-queues it behind equal-priced bids.
func (b *Book) Submit(account string, limitPrice, seats, minPrice int64) (Bid, error) {
	if account == "" || seats < 0 || limitPrice < 0 {
		return Bid{}, ErrInvalidBid
	}
	if seats > 0 && limitPrice < minPrice {
		return Bid{}, ErrPriceTooLow
	}
	i := b.find(account)
	if seats == 0 {
		if i >= 0 {
			b.bids = append(b.bids[:i], b.bids[i+1:]...)
		}
		return Bid{}, nil
	}
	if i >= 0 && b.bids[i].LimitPrice == limitPrice {
		b.bids[i].Seats = seats
		return b.bids[i], nil
	}
	if i >= 0 {
		b.bids = append(b.bids[:i], b.bids[i+1:]...)
	}
	bid := Bid{Account: account, Seats: seats, LimitPrice: limitPrice, Seq: b.nextSeq}
	b.nextSeq++
	pos := sort.Search(len(b.bids), func(k int) bool { return less(bid, b.bids[k]) })
	b.bids = append(b.bids, Bid{})
	copy(b.bids[pos+1:], b.bids[pos:])
	b.bids[pos] = bid
	return bid, nil
}

// Allocate walks bids in order and grants seats until totalSeats is used
// up. Bids rejected by eligible are skipped. The book is not modified.
func (b *Book) Allocate(totalSeats int64, eligible func(Bid) bool) Result {
	var res Result
	remaining := totalSeats
	for _, bid := range b.bids {
		if remaining <= 0 {
			break
		}
		if eligible != nil && !eligible(bid) {
			continue
		}
		grant := bid.Seats
		if grant > remaining {
			grant = remaining
		}
		res.Allocations = append(res.Allocations, Allocation{Account: bid.Account, Seats: grant, LimitPrice: bid.LimitPrice})
		res.SeatsAllocated += grant
		res.ClearingPrice = bid.LimitPrice
		remaining -= grant
	}
	return res
}

// Highest returns the best bid, or the zero Bid when the book is empty.
func (b *Book) Highest() Bid {
	if len(b.bids) == 0 {
		return Bid{}
	}
	return b.bids[0]
}

// NextAfter returns the bid ranked right after account's, or the zero Bid
// at the end of the book or when account has no bid.
func (b *Book) NextAfter(account string) Bid {
	i := b.find(account)
	if i < 0 || i+1 >= len(b.bids) {
		return Bid{}
	}
	return b.bids[i+1]
}

func (b *Book) Get(account string) (Bid, bool) {
	i := b.find(account)
	if i < 0 {
		return Bid{}, false
	}
	return b.bids[i], true
}

func (b *Book) List() []Bid {
	out := make([]Bid, len(b.bids))
	copy(out, b.bids)
	return out
}

func (b *Book) Len() int { return len(b.bids) }

func (b *Book) NextSeq() uint64 { return b.nextSeq }

func (b *Book) Clone() *Book {
	out := &Book{bids: make([]Bid, len(b.bids)), nextSeq: b.nextSeq}
	copy(out.bids, b.bids)
	return out
}

func (b *Book) find(account string) int {
	for i := range b.bids {
		if b.bids[i].Account == account {
			return i
		}
	}
	return -1
}
