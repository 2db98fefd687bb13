package services

import (
	"path/filepath"
	"testing"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store, err := OpenSnapshotStore(filepath.Join(t.TempDir(), "features.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	sma := 101.5
	rsi := 55.2
	rows := []LatestFeature{
		{Symbol: "AAPL", Date: "2024-06-28", Close: 102.3, SMA10: &sma, RSI14: &rsi},
		{Symbol: "MSFT", Date: "2024-06-28", Close: 99.1},
	}

	if err := store.ReplaceLatest(rows); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	got, err := store.Latest()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}

	if got[0].Symbol != "AAPL" || got[1].Symbol != "MSFT" {
		t.Fatalf("unexpected symbol order: %s, %s", got[0].Symbol, got[1].Symbol)
	}
	if got[0].SMA10 == nil || *got[0].SMA10 != sma {
		t.Fatalf("unexpected SMA10: %v", got[0].SMA10)
	}
	if got[0].SMA50 != nil {
		t.Fatalf("expected nil SMA50, got %v", *got[0].SMA50)
	}
	if got[1].RSI14 != nil {
		t.Fatalf("expected nil RSI14, got %v", *got[1].RSI14)
	}
}

func TestSnapshotReplaceIsIdempotent(t *testing.T) {
	store, err := OpenSnapshotStore(filepath.Join(t.TempDir(), "features.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	rows := []LatestFeature{{Symbol: "VNM", Date: "2024-06-28", Close: 70000}}
	for i := 0; i < 3; i++ {
		if err := store.ReplaceLatest(rows); err != nil {
			t.Fatalf("replace %d failed: %v", i, err)
		}
	}

	got, err := store.Latest()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row after re-runs, got %d", len(got))
	}
}
