package app

import (
	"math"
	"strings"
	"sync"
	"time"

	"study-battle/internal/domain"
	"study-battle/internal/shuffle"
)

// State is the session lifecycle phase.
type State string

const (
	StateSetup    State = "setup"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

const defaultTimedMinutes = 15

// SessionConfig carries everything the presentation layer collects before a run.
type SessionConfig struct {
	Player      string
	Group       string
	Mode        domain.Mode
	Shuffle     bool
	ShowExplain bool
	Minutes     int
	SetID       string
	Questions   []domain.Question
}

// Session is the quiz state machine: Setup -> Running -> Finished, with no way
// back into Running short of building a fresh session. All methods are safe
// for the transport's ticker and room-subscription goroutines to call.
type Session struct {
	mu sync.Mutex

	state       State
	player      string
	group       string
	mode        domain.Mode
	showExplain bool

	questions []domain.Question
	order     []int
	idx       int
	score     int
	correct   int
	total     int
	answered  bool

	startTime time.Time
	endTime   time.Time
	timeLimit time.Duration

	now func() time.Time
}

// NewSession validates the config and builds a session. Solo modes come out
// Running with the clock already started; match-mode sessions stay in Setup
// until the shared room reports started.
func NewSession(cfg SessionConfig) (*Session, error) {
	return NewSessionWithClock(cfg, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(cfg SessionConfig, now func() time.Time) (*Session, error) {
	player := strings.TrimSpace(cfg.Player)
	if player == "" {
		return nil, domain.ErrPlayerNameRequired
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = domain.DefaultGroup
	}

	questions := cfg.Questions
	if len(questions) == 0 {
		questions = domain.SampleQuestions()
	}

	s := &Session{
		state:       StateSetup,
		player:      player,
		group:       group,
		mode:        cfg.Mode,
		showExplain: cfg.ShowExplain,
		questions:   questions,
		order:       OrderFor(cfg.Mode, cfg.Shuffle, group, len(questions)),
		total:       len(questions),
		now:         now,
	}

	if cfg.Mode == domain.ModeTimed {
		minutes := cfg.Minutes
		if minutes == 0 {
			minutes = defaultTimedMinutes
		}
		if minutes < 1 {
			minutes = 1
		}
		s.timeLimit = time.Duration(minutes) * time.Minute
	}

	if cfg.Mode != domain.ModeMatch {
		s.state = StateRunning
		s.startTime = now()
	}
	return s, nil
}

// OrderFor applies the mode's shuffling rule: challenge derives the order from
// the group name, otherwise shuffle randomly when enabled, else keep file order.
func OrderFor(mode domain.Mode, shuffleOn bool, group string, n int) []int {
	switch {
	case mode == domain.ModeChallenge:
		return shuffle.Seeded(n, shuffle.HashSeed(group))
	case shuffleOn:
		return shuffle.Random(n)
	default:
		return shuffle.Identity(n)
	}
}

// orderFits reports whether every index in order addresses a question in
// [0, n).
func orderFits(order []int, n int) bool {
	for _, idx := range order {
		if idx < 0 || idx >= n {
			return false
		}
	}
	return true
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Player returns the player name.
func (s *Session) Player() string { return s.player }

// Group returns the group code.
func (s *Session) Group() string { return s.group }

// Mode returns the session mode.
func (s *Session) Mode() domain.Mode { return s.mode }

// Current returns the question at the session's cursor, its position and the
// total count. ok is false once the session has run out of questions.
func (s *Session) Current() (q domain.Question, index, total int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= s.total {
		return domain.Question{}, s.idx, s.total, false
	}
	return s.questions[s.order[s.idx]], s.idx, s.total, true
}

// Score returns the running score and correct count.
func (s *Session) Score() (score, correct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, s.correct
}

// Answer scores the current question. It is valid exactly once per question
// while Running; further answers are locked until Advance moves the cursor.
func (s *Session) Answer(selected int) (domain.AnswerResult, error) {
	_, result, err := s.AnswerCurrent(selected)
	return result, err
}

// AnswerCurrent scores the current question under a single lock and returns
// the question that was scored. Callers that log the answer elsewhere must use
// this instead of a Current/Answer pair, which could straddle a room advance.
func (s *Session) AnswerCurrent(selected int) (domain.Question, domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.idx >= s.total {
		return domain.Question{}, domain.AnswerResult{}, domain.ErrSessionNotRunning
	}
	if s.answered {
		return domain.Question{}, domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	q := s.questions[s.order[s.idx]]
	correct := selected == q.CorrectIndex
	if correct {
		s.score += domain.PointsPerCorrect
		s.correct++
	}
	s.answered = true

	result := domain.AnswerResult{
		Correct:      correct,
		CorrectIndex: q.CorrectIndex,
		Score:        s.score,
		CorrectCount: s.correct,
	}
	if s.showExplain {
		result.Explanation = q.Explanation
	}
	return q, result, nil
}

// Advance moves the cursor to the next question and reports whether the
// session just finished. Answering is not required before advancing.
func (s *Session) Advance() (finished bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return false, domain.ErrSessionNotRunning
	}
	s.idx++
	s.answered = false
	if s.idx >= s.total {
		s.finishLocked()
		return true, nil
	}
	return false, nil
}

// TickInfo is one timer observation, anchored at startTime so repeated calls
// never accumulate drift.
type TickInfo struct {
	Timed        bool
	ElapsedMs    int64
	RemainingMs  int64
	JustFinished bool
}

// Tick reports elapsed (and, for timed sessions, remaining) time. The first
// tick at or past the limit forces the session to Finished; later ticks keep
// reporting zero remaining.
func (s *Session) Tick() TickInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := TickInfo{Timed: s.timeLimit > 0}
	if s.startTime.IsZero() {
		return info
	}

	end := s.now()
	if s.state == StateFinished && !s.endTime.IsZero() {
		end = s.endTime
	}
	info.ElapsedMs = end.Sub(s.startTime).Milliseconds()

	if !info.Timed {
		return info
	}
	remaining := s.timeLimit.Milliseconds() - info.ElapsedMs
	if remaining <= 0 {
		remaining = 0
		if s.state == StateRunning {
			s.finishLocked()
			info.JustFinished = true
		}
	}
	info.RemainingMs = remaining
	return info
}

// SyncEvent describes what changed when a room snapshot was applied.
type SyncEvent struct {
	StartedNow   bool
	IndexChanged bool
	FinishedNow  bool
}

// SyncRoom applies a match-room snapshot to a match-mode session: adopts the
// shared order, promotes Setup to Running once the host starts, follows the
// host's cursor (so late joiners resume mid-match), and finishes when the room
// does.
func (s *Session) SyncRoom(room domain.MatchRoom) SyncEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ev SyncEvent
	if s.state == StateFinished {
		return ev
	}

	if len(room.Order) > 0 {
		// A room whose order references questions this client does not hold
		// (a joiner without the host's uploaded set) cannot be played here.
		// Skip the snapshot instead of running off the end of the local set.
		if !orderFits(room.Order, len(s.questions)) {
			return ev
		}
		s.order = room.Order
		s.total = len(room.Order)
	}

	if room.Started && !room.Finished && s.state == StateSetup {
		s.state = StateRunning
		s.startTime = s.now()
		ev.StartedNow = true
	}

	if s.state == StateRunning && room.Started {
		next := room.CurrentIndex
		if next < 0 {
			next = 0
		}
		if next != s.idx {
			s.idx = next
			s.answered = false
			ev.IndexChanged = true
		}
	}

	if room.Finished {
		if s.state == StateSetup {
			s.state = StateRunning
			s.startTime = s.now()
		}
		s.finishLocked()
		ev.FinishedNow = true
	}
	return ev
}

func (s *Session) finishLocked() {
	s.state = StateFinished
	if s.endTime.IsZero() {
		s.endTime = s.now()
	}
}

// Summary freezes the final numbers. Meaningful once Finished.
func (s *Session) Summary() domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	timeMs := int64(0)
	if !s.startTime.IsZero() && !s.endTime.IsZero() {
		timeMs = s.endTime.Sub(s.startTime).Milliseconds()
	}
	return domain.Summary{
		Player:   s.player,
		Group:    s.group,
		Score:    s.score,
		Correct:  s.correct,
		Total:    s.total,
		Percent:  percent(s.correct, s.total),
		TimeMs:   timeMs,
		Duration: domain.FormatDuration(timeMs),
	}
}

// Entry builds the leaderboard record for a finished session.
func (s *Session) Entry() domain.LeaderboardEntry {
	summary := s.Summary()
	return domain.LeaderboardEntry{
		Name:    summary.Player,
		Group:   summary.Group,
		Score:   summary.Score,
		Correct: summary.Correct,
		Total:   summary.Total,
		Percent: summary.Percent,
		TimeMs:  summary.TimeMs,
		DateISO: s.now(),
	}
}

func percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
