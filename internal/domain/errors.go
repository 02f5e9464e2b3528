package domain

import "errors"

var (
	// ErrPlayerNameRequired is returned when a session is started without a player name.
	ErrPlayerNameRequired = errors.New("player name is required")
	// ErrMatchIDRequired is returned when a match operation is attempted without a match ID.
	ErrMatchIDRequired = errors.New("match id is required")
	// ErrUnknownMode indicates an unrecognized quiz mode value.
	ErrUnknownMode = errors.New("unknown quiz mode")
	// ErrInvalidQuestionFile indicates an uploaded question set failed validation.
	ErrInvalidQuestionFile = errors.New("invalid questions file")
	// ErrQuestionSetNotFound indicates the question bank has no set with the given ID.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrSessionNotRunning is returned for answer/advance calls outside the Running state.
	ErrSessionNotRunning = errors.New("quiz session is not running")
	// ErrAlreadyAnswered is returned when the current question was already answered.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrRoomNotFound indicates the match room does not exist (or expired).
	ErrRoomNotFound = errors.New("match room not found")
	// ErrNotHost is returned when a non-host tries to start or advance a match.
	ErrNotHost = errors.New("only the host can do that")
	// ErrSyncUnavailable is returned for match operations without a configured sync backend.
	ErrSyncUnavailable = errors.New("match mode requires a sync backend")
	// ErrStore wraps leaderboard persistence failures; they are logged, never fatal.
	ErrStore = errors.New("leaderboard store failure")
)
