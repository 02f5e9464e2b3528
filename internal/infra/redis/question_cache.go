package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"study-battle/internal/domain"
)

// SetLoader fetches question sets from a backing store (e.g., Postgres).
type SetLoader interface {
	LoadSet(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionCache caches question-set JSON in Redis and falls back to a loader
// on cache miss:
//
//	SET questions:{setID} {questions JSON} EX {ttl}
type QuestionCache struct {
	client *redis.Client
	loader SetLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader SetLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) LoadSet(ctx context.Context, setID string) ([]domain.Question, error) {
	key := c.key(setID)

	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var questions []domain.Question
		if err := json.Unmarshal([]byte(raw), &questions); err == nil && len(questions) > 0 {
			return questions, nil
		}
	}

	result, err, _ := c.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Result(); err == nil {
			var questions []domain.Question
			if err := json.Unmarshal([]byte(raw), &questions); err == nil && len(questions) > 0 {
				return questions, nil
			}
		}

		questions, err := c.loader.LoadSet(ctx, setID)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(questions); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) key(setID string) string {
	return "questions:" + url.PathEscape(setID)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
