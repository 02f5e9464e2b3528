package redis

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"study-battle/internal/domain"
)

// MatchCoordinator replicates match rooms through Redis. Per room:
//
//	match:{group}:{matchId}:meta    hash  host, createdIso, order, currentIdx, started, finished
//	match:{group}:{matchId}:roster  set   player names (SADD keeps joins idempotent)
//	match:{group}:{matchId}:answers list  answer JSON, append-only
//	match:{group}:{matchId}:events  channel, one message per mutation
//
// Subscribers re-read the full room on every event, so rapid successive writes
// may coalesce into a single delivered snapshot. Host-only fields are enforced
// here against the stored host name, not just in the UI.
type MatchCoordinator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMatchCoordinator(client *redis.Client, ttl time.Duration) *MatchCoordinator {
	return &MatchCoordinator{client: client, ttl: ttl}
}

// CreateRoom writes a fresh room, unconditionally replacing any previous room
// under the same key (last writer wins).
func (c *MatchCoordinator) CreateRoom(ctx context.Context, room domain.MatchRoom) (domain.MatchRoom, error) {
	k := c.keys(room.Group, room.MatchID)

	orderJSON, err := json.Marshal(room.Order)
	if err != nil {
		return domain.MatchRoom{}, err
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, k.meta, k.roster, k.answers)
	pipe.HSet(ctx, k.meta,
		"host", room.Host,
		"createdIso", room.CreatedAt.UTC().Format(time.RFC3339),
		"order", orderJSON,
		"currentIdx", 0,
		"started", 0,
		"finished", 0,
	)
	pipe.SAdd(ctx, k.roster, room.Host)
	c.expire(ctx, pipe, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.MatchRoom{}, err
	}
	c.notify(ctx, k)

	return c.loadRoom(ctx, room.Group, room.MatchID)
}

// JoinRoom adds the player to the roster. Joining twice is a no-op, and
// joining an already-started room is allowed (the subscription resumes the
// client at the room's current index).
func (c *MatchCoordinator) JoinRoom(ctx context.Context, group, matchID, player string) (domain.MatchRoom, error) {
	k := c.keys(group, matchID)

	exists, err := c.client.Exists(ctx, k.meta).Result()
	if err != nil {
		return domain.MatchRoom{}, err
	}
	if exists == 0 {
		return domain.MatchRoom{}, domain.ErrRoomNotFound
	}

	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, k.roster, player)
	c.expire(ctx, pipe, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.MatchRoom{}, err
	}
	c.notify(ctx, k)

	return c.loadRoom(ctx, group, matchID)
}

// StartMatch flips the room to started with the cursor at 0. Host only.
func (c *MatchCoordinator) StartMatch(ctx context.Context, group, matchID, caller string) error {
	k := c.keys(group, matchID)
	if err := c.requireHost(ctx, k, caller); err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, k.meta, "started", 1, "currentIdx", 0)
	c.expire(ctx, pipe, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	c.notify(ctx, k)
	return nil
}

// AdvanceMatch moves the shared cursor forward; past the last question it
// marks the room finished instead. Host only.
func (c *MatchCoordinator) AdvanceMatch(ctx context.Context, group, matchID, caller string) error {
	k := c.keys(group, matchID)
	if err := c.requireHost(ctx, k, caller); err != nil {
		return err
	}

	meta, err := c.client.HGetAll(ctx, k.meta).Result()
	if err != nil {
		return err
	}
	if len(meta) == 0 {
		return domain.ErrRoomNotFound
	}

	current, _ := strconv.Atoi(meta["currentIdx"])
	var order []int
	_ = json.Unmarshal([]byte(meta["order"]), &order)

	pipe := c.client.TxPipeline()
	if next := current + 1; next >= len(order) {
		pipe.HSet(ctx, k.meta, "finished", 1)
	} else {
		pipe.HSet(ctx, k.meta, "currentIdx", next)
	}
	c.expire(ctx, pipe, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	c.notify(ctx, k)
	return nil
}

// RecordAnswer appends one answer to the room's log. Repeated answers from the
// same player are kept as separate records.
func (c *MatchCoordinator) RecordAnswer(ctx context.Context, group, matchID string, answer domain.MatchAnswer) error {
	k := c.keys(group, matchID)

	exists, err := c.client.Exists(ctx, k.meta).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrRoomNotFound
	}

	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, k.answers, data)
	c.expire(ctx, pipe, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	c.notify(ctx, k)
	return nil
}

// Subscribe delivers the current room immediately, then a fresh snapshot per
// mutation event. Slow consumers see the latest state rather than a backlog.
// The cancel func is idempotent and must be called on teardown.
func (c *MatchCoordinator) Subscribe(ctx context.Context, group, matchID string) (<-chan domain.MatchRoom, func(), error) {
	k := c.keys(group, matchID)
	pubsub := c.client.Subscribe(ctx, k.events)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan domain.MatchRoom, 8)
	go func() {
		defer close(out)

		if room, err := c.loadRoom(ctx, group, matchID); err == nil {
			out <- room
		}
		for range pubsub.Channel() {
			room, err := c.loadRoom(ctx, group, matchID)
			if err != nil {
				// Treat unreadable snapshots as "no update yet".
				continue
			}
			select {
			case out <- room:
			default:
				select {
				case <-out:
				default:
				}
				out <- room
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				log.Printf("room unsubscribe failed: %v", err)
			}
		})
	}
	return out, cancel, nil
}

func (c *MatchCoordinator) requireHost(ctx context.Context, k roomKeys, caller string) error {
	host, err := c.client.HGet(ctx, k.meta, "host").Result()
	if err == redis.Nil {
		return domain.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	if host != caller {
		return domain.ErrNotHost
	}
	return nil
}

func (c *MatchCoordinator) loadRoom(ctx context.Context, group, matchID string) (domain.MatchRoom, error) {
	k := c.keys(group, matchID)

	meta, err := c.client.HGetAll(ctx, k.meta).Result()
	if err != nil {
		return domain.MatchRoom{}, err
	}
	if len(meta) == 0 {
		return domain.MatchRoom{}, domain.ErrRoomNotFound
	}

	room := domain.MatchRoom{
		Group:   group,
		MatchID: matchID,
		Host:    meta["host"],
	}
	room.CreatedAt, _ = time.Parse(time.RFC3339, meta["createdIso"])
	room.CurrentIndex, _ = strconv.Atoi(meta["currentIdx"])
	room.Started = meta["started"] == "1"
	room.Finished = meta["finished"] == "1"
	_ = json.Unmarshal([]byte(meta["order"]), &room.Order)

	roster, err := c.client.SMembers(ctx, k.roster).Result()
	if err != nil {
		return domain.MatchRoom{}, err
	}
	sort.Strings(roster)
	room.Roster = roster

	raw, err := c.client.LRange(ctx, k.answers, 0, -1).Result()
	if err != nil {
		return domain.MatchRoom{}, err
	}
	for _, item := range raw {
		var answer domain.MatchAnswer
		if err := json.Unmarshal([]byte(item), &answer); err != nil {
			continue
		}
		room.Answers = append(room.Answers, answer)
	}
	return room, nil
}

type roomKeys struct {
	meta    string
	roster  string
	answers string
	events  string
}

func (c *MatchCoordinator) keys(group, matchID string) roomKeys {
	base := "match:" + url.PathEscape(group) + ":" + url.PathEscape(matchID)
	return roomKeys{
		meta:    base + ":meta",
		roster:  base + ":roster",
		answers: base + ":answers",
		events:  base + ":events",
	}
}

func (c *MatchCoordinator) expire(ctx context.Context, pipe redis.Pipeliner, k roomKeys) {
	if c.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, k.meta, c.ttl)
	pipe.Expire(ctx, k.roster, c.ttl)
	pipe.Expire(ctx, k.answers, c.ttl)
}

func (c *MatchCoordinator) notify(ctx context.Context, k roomKeys) {
	if err := c.client.Publish(ctx, k.events, "update").Err(); err != nil {
		log.Printf("room notify failed: %v", err)
	}
}
