package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"study-battle/internal/domain"
)

// LeaderboardStore keeps one hash per group:
//
//	HSET leaderboard:{group} {uuid} {entry JSON}
//
// Each append gets a fresh field key, so concurrent writers never have to read
// existing data.
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) Append(ctx context.Context, entry domain.LeaderboardEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	if err := s.client.HSet(ctx, s.key(entry.Group), uuid.NewString(), data).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *LeaderboardStore) Query(ctx context.Context, group string, limit int) ([]domain.LeaderboardEntry, error) {
	values, err := s.client.HVals(ctx, s.key(group)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(values))
	for _, raw := range values {
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Printf("skipping malformed leaderboard entry in %q: %v", group, err)
			continue
		}
		entries = append(entries, entry)
	}

	ranked := domain.Rank(entries)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *LeaderboardStore) key(group string) string {
	if group == "" {
		group = domain.DefaultGroup
	}
	return "leaderboard:" + url.PathEscape(group)
}
