package store

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestTransferMovesBalanceAndRecordsEntries(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	mustFundWallet(t, st, ctx, "client-a", 1000)

	if err := st.Transfer(ctx, "client-a", "escrow", 2000, NewID()); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := st.Transfer(ctx, "client-a", "escrow", 300, NewID()); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, err := st.GetWalletBalance(ctx, "client-a")
	if err != nil {
		t.Fatalf("balance a: %v", err)
	}
	e, err := st.GetWalletBalance(ctx, "escrow")
	if err != nil {
		t.Fatalf("balance escrow: %v", err)
	}
	if a != 700 || e != 300 {
		t.Fatalf("balances = %d/%d, want 700/300", a, e)
	}

	entries, err := st.ListLedgerEntries(ctx, LedgerFilter{WalletID: "escrow"}, 10, 0)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != 300 || entries[0].Counterparty != "client-a" {
		t.Fatalf("escrow entries = %+v", entries)
	}
	if _, err := st.GetWalletBalance(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing wallet err = %v", err)
	}
	if err := st.Transfer(ctx, "nobody", "escrow", 1, NewID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing source err = %v", err)
	}
}

func TestMarketEventsAndSnapshots(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	at := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)
	err := st.AppendMarketEvents(ctx, []MarketEvent{
		{Kind: "provisioned", Term: 106, Account: "c1", Amount: 10, OccurredAt: at},
		{Kind: "renter_added", Term: 106, Account: "c1", Amount: 1, OccurredAt: at},
		{Kind: "provisioned", Term: 106, Account: "c2", Amount: 5, OccurredAt: at},
	})
	if err != nil {
		t.Fatalf("append events: %v", err)
	}
	items, err := st.ListMarketEvents(ctx, MarketEventFilter{Account: "c1"}, 10, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(items) != 2 || items[0].Kind != "renter_added" {
		t.Fatalf("c1 events = %+v", items)
	}

	if _, err := st.LatestMarketSnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty snapshot err = %v", err)
	}
	if _, err := st.SaveMarketSnapshot(ctx, 105, []byte{1}, "d1"); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if _, err := st.SaveMarketSnapshot(ctx, 106, []byte{2, 3}, "d2"); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	snap, err := st.LatestMarketSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap.Term != 106 || snap.Digest != "d2" || !bytes.Equal(snap.Data, []byte{2, 3}) {
		t.Fatalf("latest = %+v", snap)
	}
}

func TestAccountKeys(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	if _, err := st.CreateAccountKey(ctx, "client-a", "key-a"); err != nil {
		t.Fatalf("create key: %v", err)
	}
	id, err := st.GetAccountIDByAPIKey(ctx, "key-a")
	if err != nil || id != "client-a" {
		t.Fatalf("lookup = %q, %v", id, err)
	}
	n, err := st.RevokeAccountKeys(ctx, "client-a")
	if err != nil || n != 1 {
		t.Fatalf("revoke = %d, %v", n, err)
	}
	if _, err := st.GetAccountIDByAPIKey(ctx, "key-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked key err = %v", err)
	}
}

func TestHashAPIKeyStable(t *testing.T) {
	if HashAPIKey("k") != HashAPIKey("k") || HashAPIKey("k") == HashAPIKey("j") {
		t.Fatal("hash not stable or collides")
	}
}

func TestNewAPIKeyUnique(t *testing.T) {
	a, err := NewAPIKey()
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	b, _ := NewAPIKey()
	if a == b || len(a) != len("lpk_")+48 || a[:4] != "lpk_" {
		t.Fatalf("keys %q %q", a, b)
	}
}
