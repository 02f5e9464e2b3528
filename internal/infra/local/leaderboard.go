// Package local persists leaderboards as one JSON file per group under a data
// directory. Writes are read-append-write and serialized in-process only,
// which is acceptable for the single-user deployment this backend targets.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"study-battle/internal/domain"
)

// LeaderboardStore implements app.LeaderboardStore on the filesystem.
type LeaderboardStore struct {
	dir string
	mu  sync.Mutex
}

func NewLeaderboardStore(dir string) (*LeaderboardStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return &LeaderboardStore{dir: dir}, nil
}

// Append reads the group's list, appends the entry and writes the file back
// via a temp-file rename.
func (s *LeaderboardStore) Append(ctx context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(entry.Group)
	if err != nil {
		return err
	}
	entries = append(entries, entry)

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	path := s.path(entry.Group)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return nil
}

// Query returns the group's entries ranked best-first, truncated to limit.
func (s *LeaderboardStore) Query(ctx context.Context, group string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	entries, err := s.read(group)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ranked := domain.Rank(entries)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *LeaderboardStore) read(group string) ([]domain.LeaderboardEntry, error) {
	data, err := os.ReadFile(s.path(group))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return entries, nil
}

func (s *LeaderboardStore) path(group string) string {
	if group == "" {
		group = domain.DefaultGroup
	}
	return filepath.Join(s.dir, "leaderboard-"+url.PathEscape(group)+".json")
}
