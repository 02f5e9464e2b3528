package local

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"study-battle/internal/domain"
)

func TestAppendQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLeaderboardStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	entry := domain.LeaderboardEntry{
		Name:    "Alice",
		Group:   "class-7b",
		Score:   20,
		Correct: 2,
		Total:   2,
		Percent: 100,
		TimeMs:  61000,
		DateISO: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Query(ctx, "class-7b", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if !got[0].DateISO.Equal(entry.DateISO) {
		t.Fatalf("timestamp changed: %v vs %v", got[0].DateISO, entry.DateISO)
	}
	got[0].DateISO = entry.DateISO
	if got[0] != entry {
		t.Fatalf("entry changed across round trip: %+v vs %+v", got[0], entry)
	}
}

func TestQueryRanksAndTruncates(t *testing.T) {
	ctx := context.Background()
	store, err := NewLeaderboardStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	for _, e := range []domain.LeaderboardEntry{
		{Name: "slow", Group: "g", Score: 20, Correct: 2, Total: 2, TimeMs: 9000},
		{Name: "low", Group: "g", Score: 10, Correct: 1, Total: 2, TimeMs: 1000},
		{Name: "fast", Group: "g", Score: 20, Correct: 2, Total: 2, TimeMs: 3000},
	} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("append %s: %v", e.Name, err)
		}
	}

	got, err := store.Query(ctx, "g", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].Name != "fast" || got[1].Name != "slow" {
		t.Fatalf("unexpected ranking: %+v", got)
	}
}

func TestGroupsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store, err := NewLeaderboardStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Append(ctx, domain.LeaderboardEntry{Name: "Alice", Group: "a", Score: 1, Total: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Query(ctx, "b", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty board for other group, got %+v", got)
	}
}

func TestCorruptFileSurfacesStoreError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLeaderboardStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	path := filepath.Join(dir, "leaderboard-"+url.PathEscape("g")+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := store.Query(ctx, "g", 10); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if err := store.Append(ctx, domain.LeaderboardEntry{Group: "g"}); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore on append, got %v", err)
	}
}
