package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AppendMarketEvents writes a committed batch in one round trip. Missing
// ids are filled with fresh ULIDs so batch order is preserved on read.
func (s *Store) AppendMarketEvents(ctx context.Context, events []MarketEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		id := e.ID
		if id == "" {
			id = NewID()
		}
		batch.Queue(`INSERT INTO market_events (id, kind, term, account, amount, detail, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, e.Kind, e.Term, e.Account, e.Amount, e.Detail, e.OccurredAt)
	}
	return s.Pool.SendBatch(ctx, batch).Close()
}

type MarketEventFilter struct {
	Account string
	Kind    string
}

func (s *Store) ListMarketEvents(ctx context.Context, f MarketEventFilter, limit, offset int) ([]MarketEvent, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.Pool.Query(ctx, `
SELECT id, kind, term, account, amount, detail, occurred_at
FROM market_events
WHERE ($1::text IS NULL OR account = $1)
  AND ($2::text IS NULL OR kind = $2)
ORDER BY id DESC
LIMIT $3 OFFSET $4`, textParam(f.Account), textParam(f.Kind), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []MarketEvent{}
	for rows.Next() {
		var e MarketEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.Term, &e.Account, &e.Amount, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveMarketSnapshot(ctx context.Context, term int64, data []byte, digest string) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx, `INSERT INTO market_snapshots (id, term, digest, data) VALUES ($1, $2, $3, $4)`, id, term, digest, data)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) LatestMarketSnapshot(ctx context.Context) (*MarketSnapshot, error) {
	var snap MarketSnapshot
	err := s.Pool.QueryRow(ctx, `SELECT id, term, digest, data, created_at FROM market_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&snap.ID, &snap.Term, &snap.Digest, &snap.Data, &snap.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &snap, nil
}
