package domain

import (
	"fmt"
	"sort"
	"time"
)

// Rank orders leaderboard entries: higher score first, ties broken by higher
// correct/total ratio, then by faster time. The input is not modified.
// Entries with Total <= 0 get a ratio of 0 so they sink instead of producing
// NaN comparisons.
func Rank(entries []LeaderboardEntry) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ra, rb := ratio(a), ratio(b)
		if ra != rb {
			return ra > rb
		}
		return a.TimeMs < b.TimeMs
	})
	return ranked
}

func ratio(e LeaderboardEntry) float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Correct) / float64(e.Total)
}

// FormatDuration renders a millisecond count as "XmYs" for HUD and summaries.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
