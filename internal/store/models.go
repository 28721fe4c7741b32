package store

import "time"

type Wallet struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LedgerEntry struct {
	ID           string    `json:"id"`
	WalletID     string    `json:"wallet_id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	Counterparty string    `json:"counterparty"`
	RefID        string    `json:"ref_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type MarketEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Term       int64     `json:"term"`
	Account    string    `json:"account"`
	Amount     int64     `json:"amount"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

type MarketSnapshot struct {
	ID        string
	Term      int64
	Digest    string
	Data      []byte
	CreatedAt time.Time
}

type AccountKey struct {
	ID        string
	AccountID string
	Status    string
	CreatedAt time.Time
}
