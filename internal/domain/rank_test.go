package domain

import "testing"

func TestRankOrdersByScoreThenRatioThenTime(t *testing.T) {
	entries := []LeaderboardEntry{
		{Name: "slow-perfect", Score: 20, Correct: 2, Total: 2, TimeMs: 90000},
		{Name: "low-score", Score: 10, Correct: 1, Total: 2, TimeMs: 1000},
		{Name: "fast-perfect", Score: 20, Correct: 2, Total: 2, TimeMs: 60000},
		{Name: "high-score-low-ratio", Score: 20, Correct: 2, Total: 4, TimeMs: 30000},
	}

	ranked := Rank(entries)

	want := []string{"fast-perfect", "slow-perfect", "high-score-low-ratio", "low-score"}
	for i, name := range want {
		if ranked[i].Name != name {
			t.Fatalf("rank %d: got %s, want %s (%+v)", i, ranked[i].Name, name, ranked)
		}
	}
}

func TestRankZeroTotalSinks(t *testing.T) {
	entries := []LeaderboardEntry{
		{Name: "broken", Score: 10, Correct: 0, Total: 0, TimeMs: 1},
		{Name: "ok", Score: 10, Correct: 1, Total: 2, TimeMs: 99999},
	}
	ranked := Rank(entries)
	if ranked[0].Name != "ok" {
		t.Fatalf("expected zero-total entry to rank last, got %+v", ranked)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	entries := []LeaderboardEntry{
		{Name: "b", Score: 1},
		{Name: "a", Score: 2},
	}
	_ = Rank(entries)
	if entries[0].Name != "b" {
		t.Fatalf("input slice was reordered")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int64]string{
		0:      "0m 0s",
		61000:  "1m 1s",
		125500: "2m 5s",
		-5:     "0m 0s",
	}
	for ms, want := range cases {
		if got := FormatDuration(ms); got != want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", ms, got, want)
		}
	}
}
