package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"study-battle/internal/domain"
	"study-battle/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		SetLoader: memory.NewStaticSetLoader(map[string][]domain.Question{
			"geo-101": {
				{ID: 1, Text: "What is 2 + 2?", Choices: []string{"3", "4"}, CorrectIndex: 1},
			},
		}),
	}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)

	questions, err := cache.LoadSet(context.Background(), "geo-101")
	if err != nil {
		t.Fatalf("load set: %v", err)
	}
	if len(questions) != 1 || questions[0].CorrectIndex != 1 {
		t.Fatalf("unexpected set: %+v", questions)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit the Redis cache, loader not incremented.
	if _, err := cache.LoadSet(context.Background(), "geo-101"); err != nil {
		t.Fatalf("load set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.SetLoader
	calls int
}

func (l *countingLoader) LoadSet(ctx context.Context, setID string) ([]domain.Question, error) {
	l.calls++
	return l.SetLoader.LoadSet(ctx, setID)
}
