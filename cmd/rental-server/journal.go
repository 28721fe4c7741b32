package main

import (
	"context"

	"lepton-rental/internal/rental"
	"lepton-rental/internal/store"
)

// journal persists committed market events and snapshots in Postgres.
type journal struct {
	st *store.Store
}

func newJournal(st *store.Store) *journal {
	return &journal{st: st}
}

func (j *journal) AppendEvents(ctx context.Context, events []rental.Event) error {
	return j.st.AppendMarketEvents(ctx, toMarketEvents(events))
}

func (j *journal) SaveSnapshot(ctx context.Context, term int64, data []byte, digest string) error {
	_, err := j.st.SaveMarketSnapshot(ctx, term, data, digest)
	return err
}

func toMarketEvents(events []rental.Event) []store.MarketEvent {
	out := make([]store.MarketEvent, 0, len(events))
	for _, e := range events {
		out = append(out, store.MarketEvent{
			ID:         store.NewID(),
			Kind:       string(e.Kind),
			Term:       e.Term,
			Account:    e.Account,
			Amount:     e.Amount,
			Detail:     e.Detail,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}
