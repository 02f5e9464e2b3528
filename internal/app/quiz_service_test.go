package app_test

import (
	"context"
	"errors"
	"testing"

	"study-battle/internal/app"
	"study-battle/internal/domain"
	"study-battle/internal/infra/memory"
)

type fakeStore struct {
	entries []domain.LeaderboardEntry
	fail    bool
}

func (s *fakeStore) Append(_ context.Context, entry domain.LeaderboardEntry) error {
	if s.fail {
		return domain.ErrStore
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeStore) Query(_ context.Context, group string, limit int) ([]domain.LeaderboardEntry, error) {
	var matched []domain.LeaderboardEntry
	for _, e := range s.entries {
		if e.Group == group {
			matched = append(matched, e)
		}
	}
	ranked := domain.Rank(matched)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func twoQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "first", Choices: []string{"wrong", "right"}, CorrectIndex: 1},
		{ID: 2, Text: "second", Choices: []string{"right", "wrong"}, CorrectIndex: 0},
	}
}

func TestFinishSessionRecordsEntry(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	service := app.NewQuizService(store, nil, nil)

	session, err := service.StartSession(ctx, app.SessionConfig{
		Player:    "Alice",
		Group:     "class-7b",
		Questions: twoQuestions(),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 2; i++ {
		q, _, _, _ := session.Current()
		if _, err := session.Answer(q.CorrectIndex); err != nil {
			t.Fatalf("answer: %v", err)
		}
		if _, err := session.Advance(); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	summary := service.FinishSession(ctx, session)
	if summary.Score != 20 || summary.Percent != 100 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(store.entries) != 1 {
		t.Fatalf("expected 1 recorded entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.Name != "Alice" || entry.Group != "class-7b" || entry.Score != 20 || entry.Correct != 2 || entry.Total != 2 || entry.Percent != 100 {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	// Round-trip: the appended entry comes back from a query for its group.
	got, err := service.Leaderboard(ctx, "class-7b", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(got) != 1 || got[0] != entry {
		t.Fatalf("expected round-tripped entry, got %+v", got)
	}
}

func TestFinishSessionStoreFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(&fakeStore{fail: true}, nil, nil)

	session, err := service.StartSession(ctx, app.SessionConfig{Player: "Alice", Questions: twoQuestions()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	session.Advance()
	session.Advance()

	summary := service.FinishSession(ctx, session)
	if summary.Total != 2 {
		t.Fatalf("expected summary despite store failure, got %+v", summary)
	}
}

func TestLeaderboardDefaultsGroup(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{entries: []domain.LeaderboardEntry{
		{Name: "Alice", Group: "default", Score: 10, Correct: 1, Total: 2},
	}}
	service := app.NewQuizService(store, nil, nil)

	got, err := service.Leaderboard(ctx, "  ", 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Alice" {
		t.Fatalf("expected default-group entry, got %+v", got)
	}
}

func TestStartSessionLoadsBankSet(t *testing.T) {
	ctx := context.Background()
	bank := memory.NewStaticSetLoader(map[string][]domain.Question{
		"geo-101": twoQuestions(),
	})
	service := app.NewQuizService(&fakeStore{}, bank, nil)

	session, err := service.StartSession(ctx, app.SessionConfig{Player: "Alice", SetID: "geo-101"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, total, _ := session.Current(); total != 2 {
		t.Fatalf("expected bank set of 2, got %d", total)
	}

	if _, err := service.StartSession(ctx, app.SessionConfig{Player: "Alice", SetID: "missing"}); !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected ErrQuestionSetNotFound, got %v", err)
	}
}

func TestMatchRequiresCoordinator(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(&fakeStore{}, nil, nil)

	if service.MatchAvailable() {
		t.Fatalf("expected match mode unavailable")
	}
	if _, err := service.HostMatch(ctx, app.SessionConfig{Player: "Alice"}, "m1"); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("host: expected ErrSyncUnavailable, got %v", err)
	}
	if _, err := service.JoinMatch(ctx, "g", "m1", "Bob"); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("join: expected ErrSyncUnavailable, got %v", err)
	}
	if err := service.StartMatch(ctx, "g", "m1", "Alice"); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("start: expected ErrSyncUnavailable, got %v", err)
	}
	if err := service.AdvanceMatch(ctx, "g", "m1", "Alice"); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("advance: expected ErrSyncUnavailable, got %v", err)
	}
	if _, _, err := service.SubscribeRoom(ctx, "g", "m1"); !errors.Is(err, domain.ErrSyncUnavailable) {
		t.Fatalf("subscribe: expected ErrSyncUnavailable, got %v", err)
	}
}

type fakeCoordinator struct {
	created domain.MatchRoom
}

func (c *fakeCoordinator) CreateRoom(_ context.Context, room domain.MatchRoom) (domain.MatchRoom, error) {
	c.created = room
	return room, nil
}

func (c *fakeCoordinator) JoinRoom(context.Context, string, string, string) (domain.MatchRoom, error) {
	return domain.MatchRoom{}, nil
}
func (c *fakeCoordinator) StartMatch(context.Context, string, string, string) error   { return nil }
func (c *fakeCoordinator) AdvanceMatch(context.Context, string, string, string) error { return nil }
func (c *fakeCoordinator) RecordAnswer(context.Context, string, string, domain.MatchAnswer) error {
	return nil
}
func (c *fakeCoordinator) Subscribe(context.Context, string, string) (<-chan domain.MatchRoom, func(), error) {
	return nil, func() {}, nil
}

func TestHostMatchSeedsRoom(t *testing.T) {
	ctx := context.Background()
	coordinator := &fakeCoordinator{}
	service := app.NewQuizService(&fakeStore{}, nil, coordinator)

	if _, err := service.HostMatch(ctx, app.SessionConfig{Player: "Alice"}, " "); !errors.Is(err, domain.ErrMatchIDRequired) {
		t.Fatalf("expected ErrMatchIDRequired, got %v", err)
	}
	if _, err := service.HostMatch(ctx, app.SessionConfig{Player: ""}, "m1"); !errors.Is(err, domain.ErrPlayerNameRequired) {
		t.Fatalf("expected ErrPlayerNameRequired, got %v", err)
	}

	room, err := service.HostMatch(ctx, app.SessionConfig{
		Player:    "Alice",
		Mode:      domain.ModeMatch,
		Questions: twoQuestions(),
	}, "m1")
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	if room.Host != "Alice" || room.Group != domain.DefaultGroup || room.MatchID != "m1" {
		t.Fatalf("unexpected room: %+v", room)
	}
	if len(room.Roster) != 1 || room.Roster[0] != "Alice" {
		t.Fatalf("expected host-only roster, got %v", room.Roster)
	}
	if len(room.Order) != 2 {
		t.Fatalf("expected order over 2 questions, got %v", room.Order)
	}
	if room.Started || room.Finished {
		t.Fatalf("expected unstarted room, got %+v", room)
	}
}
