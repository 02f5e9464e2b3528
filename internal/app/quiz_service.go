package app

import (
	"context"
	"log"
	"strings"
	"time"

	"study-battle/internal/domain"
)

// DefaultLeaderboardLimit caps leaderboard queries when the caller passes no limit.
const DefaultLeaderboardLimit = 50

// LeaderboardStore abstracts score persistence (local files, Redis, etc).
type LeaderboardStore interface {
	Append(ctx context.Context, entry domain.LeaderboardEntry) error
	Query(ctx context.Context, group string, limit int) ([]domain.LeaderboardEntry, error)
}

// QuestionSource loads named question sets (from cache/backing store).
type QuestionSource interface {
	LoadSet(ctx context.Context, setID string) ([]domain.Question, error)
}

// MatchCoordinator replicates match-room state across clients. CurrentIndex,
// Started, Finished and Order accept writes only from the recorded host;
// Roster and Answers are append-only for any participant.
type MatchCoordinator interface {
	CreateRoom(ctx context.Context, room domain.MatchRoom) (domain.MatchRoom, error)
	JoinRoom(ctx context.Context, group, matchID, player string) (domain.MatchRoom, error)
	StartMatch(ctx context.Context, group, matchID, caller string) error
	AdvanceMatch(ctx context.Context, group, matchID, caller string) error
	RecordAnswer(ctx context.Context, group, matchID string, answer domain.MatchAnswer) error
	Subscribe(ctx context.Context, group, matchID string) (<-chan domain.MatchRoom, func(), error)
}

// QuizService wires the session state machine to its persistence and sync
// backends. Backends are chosen once at startup and injected; a nil
// coordinator means match mode is unavailable.
type QuizService struct {
	store LeaderboardStore
	bank  QuestionSource
	match MatchCoordinator
}

func NewQuizService(store LeaderboardStore, bank QuestionSource, match MatchCoordinator) *QuizService {
	return &QuizService{store: store, bank: bank, match: match}
}

// MatchAvailable reports whether a sync backend is configured.
func (s *QuizService) MatchAvailable() bool { return s.match != nil }

// StartSession resolves the question set (explicit upload, bank set, or the
// built-in samples) and builds the session.
func (s *QuizService) StartSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if len(cfg.Questions) == 0 && cfg.SetID != "" {
		if s.bank == nil {
			return nil, domain.ErrQuestionSetNotFound
		}
		questions, err := s.bank.LoadSet(ctx, cfg.SetID)
		if err != nil {
			return nil, err
		}
		cfg.Questions = questions
	}
	return NewSession(cfg)
}

// FinishSession freezes the session and records its leaderboard entry.
// Persistence failures are logged and dropped; they never block the result.
func (s *QuizService) FinishSession(ctx context.Context, session *Session) domain.Summary {
	entry := session.Entry()
	if err := s.store.Append(ctx, entry); err != nil {
		log.Printf("leaderboard append failed for %s/%s: %v", entry.Group, entry.Name, err)
	}
	return session.Summary()
}

// Leaderboard returns the ranked entries for a group, best first.
func (s *QuizService) Leaderboard(ctx context.Context, group string, limit int) ([]domain.LeaderboardEntry, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		group = domain.DefaultGroup
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return s.store.Query(ctx, group, limit)
}

// HostMatch creates (or overwrites) the room for (group, matchID) with the
// caller as host, seeding the shared order with the same shuffling rule as
// solo sessions.
func (s *QuizService) HostMatch(ctx context.Context, cfg SessionConfig, matchID string) (domain.MatchRoom, error) {
	if s.match == nil {
		return domain.MatchRoom{}, domain.ErrSyncUnavailable
	}
	host := strings.TrimSpace(cfg.Player)
	if host == "" {
		return domain.MatchRoom{}, domain.ErrPlayerNameRequired
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return domain.MatchRoom{}, domain.ErrMatchIDRequired
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = domain.DefaultGroup
	}

	questions := cfg.Questions
	if len(questions) == 0 {
		questions = domain.SampleQuestions()
	}

	room := domain.MatchRoom{
		Group:     group,
		MatchID:   matchID,
		Host:      host,
		CreatedAt: time.Now(),
		Roster:    []string{host},
		Order:     OrderFor(cfg.Mode, cfg.Shuffle, group, len(questions)),
	}
	return s.match.CreateRoom(ctx, room)
}

// JoinMatch adds the player to the room's roster (idempotent) and returns the
// current room snapshot.
func (s *QuizService) JoinMatch(ctx context.Context, group, matchID, player string) (domain.MatchRoom, error) {
	if s.match == nil {
		return domain.MatchRoom{}, domain.ErrSyncUnavailable
	}
	player = strings.TrimSpace(player)
	if player == "" {
		return domain.MatchRoom{}, domain.ErrPlayerNameRequired
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return domain.MatchRoom{}, domain.ErrMatchIDRequired
	}
	if strings.TrimSpace(group) == "" {
		group = domain.DefaultGroup
	}
	return s.match.JoinRoom(ctx, group, matchID, player)
}

// StartMatch marks the room as started. Host only.
func (s *QuizService) StartMatch(ctx context.Context, group, matchID, caller string) error {
	if s.match == nil {
		return domain.ErrSyncUnavailable
	}
	return s.match.StartMatch(ctx, group, matchID, caller)
}

// AdvanceMatch moves the room's shared cursor, finishing the match past the
// last question. Host only.
func (s *QuizService) AdvanceMatch(ctx context.Context, group, matchID, caller string) error {
	if s.match == nil {
		return domain.ErrSyncUnavailable
	}
	return s.match.AdvanceMatch(ctx, group, matchID, caller)
}

// RecordMatchAnswer appends one answer to the room's log. Any participant may
// write; repeated answers are kept, not deduplicated.
func (s *QuizService) RecordMatchAnswer(ctx context.Context, group, matchID string, answer domain.MatchAnswer) error {
	if s.match == nil {
		return domain.ErrSyncUnavailable
	}
	return s.match.RecordAnswer(ctx, group, matchID, answer)
}

// SubscribeRoom delivers room snapshots until the cancel func is called. The
// caller must invoke cancel on every teardown path to avoid leaks.
func (s *QuizService) SubscribeRoom(ctx context.Context, group, matchID string) (<-chan domain.MatchRoom, func(), error) {
	if s.match == nil {
		return nil, nil, domain.ErrSyncUnavailable
	}
	return s.match.Subscribe(ctx, group, matchID)
}
