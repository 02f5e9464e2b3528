package domain

import "time"

// Mode selects how a quiz session progresses and how its question order is derived.
type Mode string

const (
	// ModePractice is the default untimed solo mode.
	ModePractice Mode = "practice"
	// ModeTimed enforces a wall-clock limit; expiry finishes the session early.
	ModeTimed Mode = "timed"
	// ModeChallenge derives the question order from the group name so every
	// player in the group sees the same sequence without live sync.
	ModeChallenge Mode = "challenge"
	// ModeMatch synchronizes progression across participants via a shared room.
	ModeMatch Mode = "match"
)

// ParseMode maps a free-text mode value to a Mode. Empty means practice.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "":
		return ModePractice, nil
	case ModePractice, ModeTimed, ModeChallenge, ModeMatch:
		return Mode(raw), nil
	}
	return "", ErrUnknownMode
}

// PointsPerCorrect is the flat award for a correct answer.
const PointsPerCorrect = 10

// DefaultGroup is used whenever the group code is left blank.
const DefaultGroup = "default"

// Question is a single multiple-choice question. Immutable once loaded into a session.
type Question struct {
	ID           int      `json:"id"`
	Text         string   `json:"question"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// LeaderboardEntry is one finished run. Append-only; never mutated after creation.
type LeaderboardEntry struct {
	Name    string    `json:"name"`
	Group   string    `json:"group"`
	Score   int       `json:"score"`
	Correct int       `json:"correct"`
	Total   int       `json:"total"`
	Percent int       `json:"percent"`
	TimeMs  int64     `json:"timeMs"`
	DateISO time.Time `json:"dateIso"`
}

// AnswerResult summarizes the outcome of answering the current question.
type AnswerResult struct {
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correctIndex"`
	Explanation  string `json:"explanation,omitempty"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
}

// Summary is the frozen view of a finished session.
type Summary struct {
	Player   string `json:"player"`
	Group    string `json:"group"`
	Score    int    `json:"score"`
	Correct  int    `json:"correct"`
	Total    int    `json:"total"`
	Percent  int    `json:"percent"`
	TimeMs   int64  `json:"timeMs"`
	Duration string `json:"duration"`
}

// MatchAnswer is one immutable record in a room's answer log.
type MatchAnswer struct {
	Player        string    `json:"player"`
	QuestionID    int       `json:"qid"`
	SelectedIndex int       `json:"selected"`
	Correct       bool      `json:"correct"`
	At            time.Time `json:"ts"`
}

// MatchRoom is the replicated state shared by all participants of one match.
// CurrentIndex, Started, Finished and Order are host-write-only; Roster and
// Answers are multi-writer append.
type MatchRoom struct {
	Group        string        `json:"group"`
	MatchID      string        `json:"matchId"`
	Host         string        `json:"host"`
	CreatedAt    time.Time     `json:"createdIso"`
	Roster       []string      `json:"roster"`
	Order        []int         `json:"order"`
	CurrentIndex int           `json:"currentIdx"`
	Started      bool          `json:"started"`
	Finished     bool          `json:"finished"`
	Answers      []MatchAnswer `json:"answers,omitempty"`
}

// HasPlayer reports roster membership.
func (r MatchRoom) HasPlayer(name string) bool {
	for _, p := range r.Roster {
		if p == name {
			return true
		}
	}
	return false
}
