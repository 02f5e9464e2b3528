package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"study-battle/internal/app"
	"study-battle/internal/domain"
)

// tickInterval is the HUD clock cadence. Remaining time is always recomputed
// from the session's start anchor, so the cadence itself cannot drift.
const tickInterval = 250 * time.Millisecond

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type startPayload struct {
	Player      string `json:"player"`
	Group       string `json:"group"`
	Mode        string `json:"mode"`
	Shuffle     *bool  `json:"shuffle"`
	ShowExplain *bool  `json:"showExplain"`
	Minutes     int    `json:"minutes"`
	SetID       string `json:"setId"`
}

type matchPayload struct {
	Player  string `json:"player"`
	Group   string `json:"group"`
	MatchID string `json:"matchId"`
	Shuffle *bool  `json:"shuffle"`
}

type answerPayload struct {
	SelectedIndex int `json:"selectedIndex"`
}

type leaderboardQuery struct {
	Group string `json:"group"`
	Limit int    `json:"limit"`
}

type startedPayload struct {
	Player string `json:"player"`
	Group  string `json:"group"`
	Mode   string `json:"mode"`
	Total  int    `json:"total"`
}

type questionPayload struct {
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

type timePayload struct {
	Timed       bool   `json:"timed"`
	ElapsedMs   int64  `json:"elapsedMs"`
	RemainingMs int64  `json:"remainingMs"`
	Display     string `json:"display"`
}

type roomPayload struct {
	MatchID      string   `json:"matchId"`
	Host         string   `json:"host"`
	Roster       []string `json:"roster"`
	Started      bool     `json:"started"`
	Finished     bool     `json:"finished"`
	CurrentIndex int      `json:"currentIdx"`
}

type countPayload struct {
	Count int `json:"count"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// run is the lifecycle state of one quiz attempt. The ticker and room
// goroutines capture the run they were spawned for, never the connection, so
// a later start cannot hand them a different session.
type run struct {
	session    *app.Session
	stopTicker chan struct{}
	stopOnce   sync.Once
	finishOnce sync.Once
}

func newRun(session *app.Session) *run {
	return &run{session: session, stopTicker: make(chan struct{})}
}

func (r *run) haltTicker() {
	r.stopOnce.Do(func() { close(r.stopTicker) })
}

// conn is the per-connection state, owned by the reader loop.
type conn struct {
	run       *run
	questions []domain.Question

	player  string
	group   string
	matchID string
	isHost  bool

	roomCancel func()
}

// leaveRoom releases the room subscription and clears the match context.
// Starting a solo run or entering another room both go through here first.
func (st *conn) leaveRoom() {
	if st.roomCancel != nil {
		st.roomCancel()
		st.roomCancel = nil
	}
	st.matchID = ""
	st.isHost = false
}

// ServeWS upgrades the request and runs one quiz client: a writer goroutine
// owns the socket, a ticker goroutine drives the HUD clock, and an optional
// room goroutine applies match-room snapshots. All of them stand down when the
// reader loop ends.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer sock.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var producers sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := sock.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	st := &conn{}
	defer func() {
		// Subscription release happens on every exit path.
		st.leaveRoom()
		if st.run != nil {
			st.run.haltTicker()
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := sock.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, st, inbound, send, closeSignals, &producers)
	}

	close(closeSignals)
	producers.Wait()
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, st *conn, inbound inboundMessage, send chan outboundMessage[any], closeSignals chan struct{}, producers *sync.WaitGroup) {
	switch inbound.Type {
	case "loadQuestions":
		h.handleLoadQuestions(st, inbound.Payload, send, closeSignals)
	case "start":
		h.handleStart(ctx, st, inbound.Payload, send, closeSignals, producers)
	case "answer":
		h.handleAnswer(ctx, st, inbound.Payload, send, closeSignals)
	case "next":
		h.handleNext(ctx, st, send, closeSignals)
	case "leaderboard":
		h.handleLeaderboard(ctx, st, inbound.Payload, send, closeSignals)
	case "hostMatch":
		h.handleHostMatch(ctx, st, inbound.Payload, send, closeSignals, producers)
	case "joinMatch":
		h.handleJoinMatch(ctx, st, inbound.Payload, send, closeSignals, producers)
	default:
		sendError(send, closeSignals, "unsupported message type")
	}
}

func (h *WSHandler) handleLoadQuestions(st *conn, payload json.RawMessage, send chan outboundMessage[any], closeSignals chan struct{}) {
	questions, err := domain.ParseQuestionSet(payload)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}
	st.questions = questions
	trySend(send, closeSignals, outboundMessage[any]{Type: "questionsLoaded", Payload: countPayload{Count: len(questions)}})
}

func (h *WSHandler) handleStart(ctx context.Context, st *conn, payload json.RawMessage, send chan outboundMessage[any], closeSignals chan struct{}, producers *sync.WaitGroup) {
	var p startPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		sendError(send, closeSignals, "invalid start payload")
		return
	}
	mode, err := domain.ParseMode(p.Mode)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}

	if mode == domain.ModeMatch {
		// In match mode Start is a room action: the host flips the shared
		// started flag, everyone else waits for the snapshot.
		if st.matchID == "" {
			sendError(send, closeSignals, "host or join a match first")
			return
		}
		if !st.isHost {
			sendError(send, closeSignals, "waiting for host to start")
			return
		}
		if err := h.service.StartMatch(ctx, st.group, st.matchID, st.player); err != nil {
			sendError(send, closeSignals, err.Error())
		}
		return
	}

	cfg := app.SessionConfig{
		Player:      p.Player,
		Group:       p.Group,
		Mode:        mode,
		Shuffle:     boolOr(p.Shuffle, true),
		ShowExplain: boolOr(p.ShowExplain, true),
		Minutes:     p.Minutes,
		SetID:       p.SetID,
		Questions:   st.questions,
	}
	session, err := h.service.StartSession(ctx, cfg)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}

	st.leaveRoom()
	if st.run != nil {
		st.run.haltTicker()
	}
	r := newRun(session)
	st.run = r
	st.player = session.Player()
	st.group = session.Group()

	trySend(send, closeSignals, outboundMessage[any]{Type: "started", Payload: startedPayload{
		Player: session.Player(),
		Group:  session.Group(),
		Mode:   string(mode),
		Total:  totalOf(session),
	}})
	h.sendQuestion(r, send, closeSignals)
	h.spawnTicker(ctx, r, send, closeSignals, producers)
}

func (h *WSHandler) handleAnswer(ctx context.Context, st *conn, payload json.RawMessage, send chan outboundMessage[any], closeSignals chan struct{}) {
	if st.run == nil {
		sendError(send, closeSignals, domain.ErrSessionNotRunning.Error())
		return
	}
	var p answerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		sendError(send, closeSignals, "invalid answer payload")
		return
	}

	session := st.run.session
	q, result, err := session.AnswerCurrent(p.SelectedIndex)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}

	if session.Mode() == domain.ModeMatch && st.matchID != "" {
		answer := domain.MatchAnswer{
			Player:        st.player,
			QuestionID:    q.ID,
			SelectedIndex: p.SelectedIndex,
			Correct:       result.Correct,
			At:            time.Now(),
		}
		if err := h.service.RecordMatchAnswer(ctx, st.group, st.matchID, answer); err != nil {
			log.Printf("record match answer failed: %v", err)
		}
	}

	trySend(send, closeSignals, outboundMessage[any]{Type: "answerResult", Payload: result})
}

func (h *WSHandler) handleNext(ctx context.Context, st *conn, send chan outboundMessage[any], closeSignals chan struct{}) {
	if st.run == nil {
		sendError(send, closeSignals, domain.ErrSessionNotRunning.Error())
		return
	}
	r := st.run

	if r.session.Mode() == domain.ModeMatch {
		if !st.isHost {
			sendError(send, closeSignals, domain.ErrNotHost.Error())
			return
		}
		if err := h.service.AdvanceMatch(ctx, st.group, st.matchID, st.player); err != nil {
			sendError(send, closeSignals, err.Error())
		}
		// Progression arrives via the room snapshot.
		return
	}

	finished, err := r.session.Advance()
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}
	if finished {
		h.finish(ctx, r, send, closeSignals)
		return
	}
	h.sendQuestion(r, send, closeSignals)
}

func (h *WSHandler) handleLeaderboard(ctx context.Context, st *conn, payload json.RawMessage, send chan outboundMessage[any], closeSignals chan struct{}) {
	var p leaderboardQuery
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			sendError(send, closeSignals, "invalid leaderboard payload")
			return
		}
	}
	entries, err := h.service.Leaderboard(ctx, p.Group, p.Limit)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}
	trySend(send, closeSignals, outboundMessage[any]{Type: "leaderboard", Payload: entries})
}

func (h *WSHandler) handleHostMatch(ctx context.Context, st *conn, payload json.RawMessage, send chan outboundMessage[any], closeSignals chan struct{}, producers *sync.WaitGroup) {
	var p matchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		sendError(send, closeSignals, "invalid match payload")
		return
	}
	cfg := app.SessionConfig{
		Player:    p.Player,
		Group:     p.Group,
		Mode:      domain.ModeMatch,
		Shuffle:   boolOr(p.Shuffle, true),
		Questions: st.questions,
	}
	room, err := h.service.HostMatch(ctx, cfg, p.MatchID)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}
	h.enterRoom(ctx, st, cfg, room, true, send, closeSignals, producers)
}

func (h *WSHandler) handleJoinMatch(ctx context.Context, st *conn, payload json.RawMessage, send chan outboundMessage[any], closeSignals chan struct{}, producers *sync.WaitGroup) {
	var p matchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		sendError(send, closeSignals, "invalid match payload")
		return
	}
	room, err := h.service.JoinMatch(ctx, p.Group, p.MatchID, p.Player)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}
	cfg := app.SessionConfig{
		Player:    p.Player,
		Group:     p.Group,
		Mode:      domain.ModeMatch,
		Questions: st.questions,
	}
	h.enterRoom(ctx, st, cfg, room, false, send, closeSignals, producers)
}

// enterRoom builds the local match session, applies the first snapshot (a
// joiner of a started room resumes at the room's cursor) and subscribes for
// the rest.
func (h *WSHandler) enterRoom(ctx context.Context, st *conn, cfg app.SessionConfig, room domain.MatchRoom, isHost bool, send chan outboundMessage[any], closeSignals chan struct{}, producers *sync.WaitGroup) {
	session, err := h.service.StartSession(ctx, cfg)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}

	st.leaveRoom()
	if st.run != nil {
		st.run.haltTicker()
	}

	r := newRun(session)
	st.run = r
	st.player = session.Player()
	st.group = session.Group()
	st.matchID = room.MatchID
	st.isHost = isHost

	trySend(send, closeSignals, outboundMessage[any]{Type: "room", Payload: roomView(room)})
	h.applyRoom(ctx, r, room, send, closeSignals, producers)

	updates, cancel, err := h.service.SubscribeRoom(ctx, st.group, st.matchID)
	if err != nil {
		sendError(send, closeSignals, err.Error())
		return
	}
	st.roomCancel = cancel

	producers.Add(1)
	go func() {
		defer producers.Done()
		for {
			select {
			case room, ok := <-updates:
				if !ok {
					return
				}
				trySend(send, closeSignals, outboundMessage[any]{Type: "room", Payload: roomView(room)})
				h.applyRoom(ctx, r, room, send, closeSignals, producers)
			case <-closeSignals:
				return
			}
		}
	}()
}

func (h *WSHandler) applyRoom(ctx context.Context, r *run, room domain.MatchRoom, send chan outboundMessage[any], closeSignals chan struct{}, producers *sync.WaitGroup) {
	ev := r.session.SyncRoom(room)
	if ev.StartedNow {
		trySend(send, closeSignals, outboundMessage[any]{Type: "started", Payload: startedPayload{
			Player: r.session.Player(),
			Group:  r.session.Group(),
			Mode:   string(domain.ModeMatch),
			Total:  totalOf(r.session),
		}})
		h.spawnTicker(ctx, r, send, closeSignals, producers)
	}
	if ev.StartedNow || ev.IndexChanged {
		h.sendQuestion(r, send, closeSignals)
	}
	if ev.FinishedNow {
		h.finish(ctx, r, send, closeSignals)
	}
}

func (h *WSHandler) spawnTicker(ctx context.Context, r *run, send chan outboundMessage[any], closeSignals chan struct{}, producers *sync.WaitGroup) {
	producers.Add(1)
	go func() {
		defer producers.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopTicker:
				return
			case <-closeSignals:
				return
			case <-ticker.C:
				info := r.session.Tick()
				display := domain.FormatDuration(info.ElapsedMs) + " elapsed"
				if info.Timed {
					display = domain.FormatDuration(info.RemainingMs)
				}
				trySend(send, closeSignals, outboundMessage[any]{Type: "time", Payload: timePayload{
					Timed:       info.Timed,
					ElapsedMs:   info.ElapsedMs,
					RemainingMs: info.RemainingMs,
					Display:     display,
				}})
				if info.JustFinished {
					h.finish(ctx, r, send, closeSignals)
					return
				}
				if r.session.State() == app.StateFinished {
					return
				}
			}
		}
	}()
}

// finish runs exactly once per run: freeze, persist (best effort), report,
// and show the group's board, mirroring the results screen of the quiz flow.
func (h *WSHandler) finish(ctx context.Context, r *run, send chan outboundMessage[any], closeSignals chan struct{}) {
	r.finishOnce.Do(func() {
		r.haltTicker()
		summary := h.service.FinishSession(ctx, r.session)
		trySend(send, closeSignals, outboundMessage[any]{Type: "finished", Payload: summary})

		entries, err := h.service.Leaderboard(ctx, r.session.Group(), 0)
		if err != nil {
			log.Printf("leaderboard query failed for %q: %v", r.session.Group(), err)
			return
		}
		trySend(send, closeSignals, outboundMessage[any]{Type: "leaderboard", Payload: entries})
	})
}

func (h *WSHandler) sendQuestion(r *run, send chan outboundMessage[any], closeSignals chan struct{}) {
	q, index, total, ok := r.session.Current()
	if !ok {
		return
	}
	// The correct index stays server-side until the answer comes back.
	trySend(send, closeSignals, outboundMessage[any]{Type: "question", Payload: questionPayload{
		Index:    index,
		Total:    total,
		ID:       q.ID,
		Question: q.Text,
		Choices:  q.Choices,
	}})
}

func roomView(room domain.MatchRoom) roomPayload {
	return roomPayload{
		MatchID:      room.MatchID,
		Host:         room.Host,
		Roster:       room.Roster,
		Started:      room.Started,
		Finished:     room.Finished,
		CurrentIndex: room.CurrentIndex,
	}
}

func totalOf(session *app.Session) int {
	_, _, total, _ := session.Current()
	return total
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func trySend(send chan outboundMessage[any], closeSignals chan struct{}, msg outboundMessage[any]) {
	select {
	case send <- msg:
	case <-closeSignals:
	}
}

func sendError(send chan outboundMessage[any], closeSignals chan struct{}, message string) {
	trySend(send, closeSignals, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
}
