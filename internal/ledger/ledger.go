package ledger

import (
	"context"
	"errors"
	"fmt"

	"lepton-rental/internal/escrow"
	"lepton-rental/internal/store"
)

// Ledger settles market transfers against Postgres wallet balances.
type Ledger struct {
	Store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{Store: s}
}

func (l *Ledger) Transfer(ctx context.Context, from, to string, amount int64) error {
	err := l.Store.Transfer(ctx, from, to, amount, store.NewID())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrInsufficientBalance), errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: wallet %s", escrow.ErrInsufficientFunds, from)
	default:
		return err
	}
}

// BalanceOf reports zero for wallets that have never held tokens.
func (l *Ledger) BalanceOf(ctx context.Context, id string) (int64, error) {
	bal, err := l.Store.GetWalletBalance(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	return bal, err
}

// Mint credits new tokens to a wallet.
func (l *Ledger) Mint(ctx context.Context, id string, amount int64) (int64, error) {
	return l.Store.Credit(ctx, id, amount, "mint", store.NewID())
}
