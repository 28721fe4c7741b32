// Package usefulness keeps the append-only chain of lepton attestations
// and the running total of incremental usefulness that scales rent.
package usefulness

import (
	"errors"
	"math"
)

var (
	ErrChainMismatch = errors.New("chain_mismatch")
	ErrDuplicate     = errors.New("duplicate_lepton")
	ErrInvalidRecord = errors.New("invalid_lepton")
	ErrTotalOverflow = errors.New("usefulness_overflow")
)

// Record is a single lepton. Usefulness is scaled by the market precision.
type Record struct {
	Hash         string `json:"hash" cbor:"1,keyasint"`
	PreviousHash string `json:"previous_hash" cbor:"2,keyasint"`
	Usefulness   int64  `json:"usefulness" cbor:"3,keyasint"`
}

type Chain struct {
	records []Record
	index   map[string]int
	total   int64
}

func NewChain() *Chain {
	return &Chain{index: make(map[string]int)}
}

// Restore rebuilds a chain from previously exported records, checking every
// link again.
func Restore(records []Record) (*Chain, error) {
	c := NewChain()
	for _, r := range records {
		if err := c.Append(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Chain) Append(r Record) error {
	if r.Hash == "" || r.Usefulness < 0 {
		return ErrInvalidRecord
	}
	want := ""
	if n := len(c.records); n > 0 {
		want = c.records[n-1].Hash
	}
	if r.PreviousHash != want {
		return ErrChainMismatch
	}
	if _, ok := c.index[r.Hash]; ok {
		return ErrDuplicate
	}
	if r.Usefulness > math.MaxInt64-c.total {
		return ErrTotalOverflow
	}
	c.index[r.Hash] = len(c.records)
	c.records = append(c.records, r)
	c.total += r.Usefulness
	return nil
}

func (c *Chain) Total() int64 { return c.total }

func (c *Chain) Len() int { return len(c.records) }

func (c *Chain) Get(i int) (Record, bool) {
	if i < 0 || i >= len(c.records) {
		return Record{}, false
	}
	return c.records[i], true
}

func (c *Chain) Last() (Record, bool) {
	return c.Get(len(c.records) - 1)
}

func (c *Chain) Contains(hash string) bool {
	_, ok := c.index[hash]
	return ok
}

func (c *Chain) List() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Clone shares nothing with the receiver. Records are values, so the index
// is the only structure that needs rebuilding.
func (c *Chain) Clone() *Chain {
	out := &Chain{
		records: make([]Record, len(c.records)),
		index:   make(map[string]int, len(c.index)),
		total:   c.total,
	}
	copy(out.records, c.records)
	for k, v := range c.index {
		out.index[k] = v
	}
	return out
}
