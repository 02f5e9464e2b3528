package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"study-battle/internal/domain"
)

// SetLoader fetches question sets from a backing store (e.g., Postgres).
type SetLoader interface {
	LoadSet(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionCache caches question sets with TTL to avoid repeated backing-store hits.
type QuestionCache struct {
	loader SetLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader SetLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (c *QuestionCache) LoadSet(ctx context.Context, setID string) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[setID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(setID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[setID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadSet(ctx, setID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[setID] = cachedSet{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticSetLoader serves question sets from an in-memory map (tests/demos).
type StaticSetLoader struct {
	sets map[string][]domain.Question
}

func NewStaticSetLoader(sets map[string][]domain.Question) *StaticSetLoader {
	return &StaticSetLoader{sets: sets}
}

func (l *StaticSetLoader) LoadSet(_ context.Context, setID string) ([]domain.Question, error) {
	if questions, ok := l.sets[setID]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuestionSetNotFound
}
