package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

func (s *Store) EnsureWallet(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO wallets (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return err
}

func (s *Store) GetWalletBalance(ctx context.Context, id string) (int64, error) {
	var bal int64
	err := s.Pool.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, id).Scan(&bal)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (s *Store) ListWallets(ctx context.Context, limit, offset int) ([]Wallet, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.Pool.Query(ctx, `SELECT id, balance, created_at, updated_at FROM wallets ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Wallet{}
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.ID, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Credit adds amount to a wallet, creating it if needed, and returns the new
// balance.
func (s *Store) Credit(ctx context.Context, id string, amount int64, entryType, refID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO wallets (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return 0, err
	}
	var bal int64
	if err := tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = now() WHERE id = $1 RETURNING balance`, id, amount).Scan(&bal); err != nil {
		return 0, err
	}
	if err := insertLedgerEntry(ctx, tx, id, entryType, amount, "", refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return bal, nil
}

// Transfer moves amount between wallets in one transaction. Both rows are
// locked in id order. The destination is created on first use.
func (s *Store) Transfer(ctx context.Context, from, to string, amount int64, refID string) error {
	if amount <= 0 || from == to {
		return ErrInvalidAmount
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO wallets (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, to); err != nil {
		return err
	}
	rows, err := tx.Query(ctx, `SELECT id, balance FROM wallets WHERE id = ANY($1) ORDER BY id FOR UPDATE`, []string{from, to})
	if err != nil {
		return err
	}
	balances := map[string]int64{}
	for rows.Next() {
		var id string
		var bal int64
		if err := rows.Scan(&id, &bal); err != nil {
			rows.Close()
			return err
		}
		balances[id] = bal
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	bal, ok := balances[from]
	if !ok {
		return ErrNotFound
	}
	if bal < amount {
		return ErrInsufficientBalance
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = now() WHERE id = $1`, from, amount); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = now() WHERE id = $1`, to, amount); err != nil {
		return err
	}
	if err := insertLedgerEntry(ctx, tx, from, "transfer_debit", -amount, to, refID); err != nil {
		return err
	}
	if err := insertLedgerEntry(ctx, tx, to, "transfer_credit", amount, from, refID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, walletID, entryType string, amount int64, counterparty, refID string) error {
	_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, wallet_id, type, amount, counterparty, ref_id) VALUES ($1, $2, $3, $4, $5, $6)`,
		NewID(), walletID, entryType, amount, counterparty, refID)
	return err
}

type LedgerFilter struct {
	WalletID string
	From     *time.Time
	To       *time.Time
}

func (s *Store) ListLedgerEntries(ctx context.Context, f LedgerFilter, limit, offset int) ([]LedgerEntry, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.Pool.Query(ctx, `
SELECT id, wallet_id, type, amount, counterparty, ref_id, created_at
FROM ledger_entries
WHERE ($1::text IS NULL OR wallet_id = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY id DESC
LIMIT $4 OFFSET $5`, textParam(f.WalletID), timeParam(f.From), timeParam(f.To), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Type, &e.Amount, &e.Counterparty, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
