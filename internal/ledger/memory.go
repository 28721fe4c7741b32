package ledger

import (
	"context"
	"fmt"
	"sync"

	"lepton-rental/internal/escrow"
	"lepton-rental/internal/store"
)

// Memory is an in-process token ledger for tests and local runs.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	// FailTo makes transfers into the given wallet fail.
	FailTo map[string]error
}

func NewMemory(initial map[string]int64) *Memory {
	m := &Memory{balances: map[string]int64{}, FailTo: map[string]error{}}
	for k, v := range initial {
		m.balances[k] = v
	}
	return m
}

func (m *Memory) Transfer(_ context.Context, from, to string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailTo[to]; ok {
		return err
	}
	if amount <= 0 || from == to {
		return store.ErrInvalidAmount
	}
	if m.balances[from] < amount {
		return fmt.Errorf("%w: wallet %s", escrow.ErrInsufficientFunds, from)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id], nil
}

func (m *Memory) Mint(_ context.Context, id string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount <= 0 {
		return 0, store.ErrInvalidAmount
	}
	m.balances[id] += amount
	return m.balances[id], nil
}
