package game

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mottyeytan/HeadToHead/internal/engine"
	"github.com/mottyeytan/HeadToHead/internal/types"
)

// Broadcaster delivers events to the room's connections. Implemented by the
// websocket hub.
type Broadcaster interface {
	Broadcast(roomID string, msg types.ServerMessage)
	Send(connID string, msg types.ServerMessage)
}

// Session owns one room's game. Every mutation goes through the inbox and
// is handled by a single goroutine, so the race between "all answered",
// "all ready" and "time up" resolves to exactly one transition: whichever
// trigger arrives first flips the phase, and the engine rejects the loser
// with a wrong-phase result.
type Session struct {
	roomID string
	game   *engine.Game
	inbox  chan msg
	bc     Broadcaster
	timer  *phaseTimer
	clock  clockwork.Clock
	log    *zap.Logger
	onEnd  func(roomID string)
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(parent context.Context, roomID string, g *engine.Game, bc Broadcaster, clock clockwork.Clock, log *zap.Logger, onEnd func(string)) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		roomID: roomID,
		game:   g,
		inbox:  make(chan msg, 64),
		bc:     bc,
		clock:  clock,
		log:    log,
		onEnd:  onEnd,
		ctx:    ctx,
		cancel: cancel,
	}
	s.timer = newPhaseTimer(clock)
	go s.loop()
	return s
}

// Start kicks the game off: waiting -> first question.
func (s *Session) Start() { s.send(startMsg{}) }

// Submit records a player's answer for the open question.
func (s *Session) Submit(playerID, answer string) {
	s.send(submitMsg{PlayerID: playerID, Answer: answer})
}

// Ready marks a player done with the current phase.
func (s *Session) Ready(playerID string) { s.send(readyMsg{PlayerID: playerID}) }

// Leave removes a player mid-game.
func (s *Session) Leave(playerID string) { s.send(leaveMsg{PlayerID: playerID}) }

// Shutdown tears the session down without declaring a result.
func (s *Session) Shutdown() { s.send(shutdownMsg{}) }

// State returns a snapshot for game:get_state. ok is false once the
// session has ended.
func (s *Session) State() (types.GameState, bool) {
	reply := make(chan types.GameState, 1)
	select {
	case s.inbox <- getStateMsg{Reply: reply}:
	case <-s.ctx.Done():
		return types.GameState{}, false
	}
	select {
	case st := <-reply:
		return st, true
	case <-s.ctx.Done():
		return types.GameState{}, false
	}
}

func (s *Session) send(m msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.timer.Stop()
			return

		case <-s.timer.Chan():
			s.handleTick()

		case m := <-s.inbox:
			switch m := m.(type) {
			case startMsg:
				s.handleStart()
			case submitMsg:
				s.handleSubmit(m)
			case readyMsg:
				s.handleReady(m)
			case leaveMsg:
				s.handleLeave(m)
			case getStateMsg:
				m.Reply <- s.snapshot()
			case shutdownMsg:
				s.finish()
				return
			}
		}

		if s.game.Phase == engine.PhaseFinished {
			s.finish()
			return
		}
	}
}

func (s *Session) handleStart() {
	if err := s.game.Start(); err != nil {
		return
	}

	first := s.newQuestionPayload()
	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtGameStarted, Payload: types.GameStarted{
		RoomID:         s.roomID,
		TotalQuestions: len(s.game.Questions),
		Players:        playerViews(s.game.Players),
		FirstQuestion:  &first,
	}})
	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtNewQuestion, Payload: first})
	s.timer.Start()

	s.log.Info("game started",
		zap.String("room", s.roomID),
		zap.Int("players", len(s.game.Players)),
		zap.Int("questions", len(s.game.Questions)))
}

func (s *Session) handleSubmit(m submitMsg) {
	// Time taken is derived server-side from the countdown, not trusted
	// from the client.
	elapsed := int64(s.game.Rules.QuestionSec-s.game.Remaining) * 1000

	res, err := s.game.SubmitAnswer(m.PlayerID, m.Answer, elapsed, s.now())
	if err != nil || !res.Applied {
		// Wrong phase, unknown player or duplicate delivery: silently
		// ignorable per the retry semantics.
		return
	}

	s.bc.Send(m.PlayerID, types.ServerMessage{Type: types.EvtAnswerResult, Payload: types.AnswerResult{
		RoomID:      s.roomID,
		PlayerID:    m.PlayerID,
		IsCorrect:   res.Correct,
		TimeTakenMs: res.TimeTakenMs,
	}})
	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtPlayerAnswered, Payload: types.PlayerAnswered{
		PlayerID:   m.PlayerID,
		PlayerName: s.playerName(m.PlayerID),
	}})

	if res.AllAnswered {
		s.closeQuestion()
	}
}

func (s *Session) handleReady(m readyMsg) {
	allReady, err := s.game.MarkReady(m.PlayerID)
	if err != nil {
		return
	}

	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtPlayerReady, Payload: types.PlayerReady{
		PlayerID:   m.PlayerID,
		PlayerName: s.playerName(m.PlayerID),
	}})

	if !allReady {
		return
	}
	switch s.game.Phase {
	case engine.PhaseQuestion:
		s.closeQuestion()
	case engine.PhaseAnswer:
		s.nextQuestion()
	}
}

func (s *Session) handleLeave(m leaveMsg) {
	res, err := s.game.RemovePlayer(m.PlayerID)
	if err != nil {
		return
	}

	if res.Ended {
		s.timer.Stop()
		over := types.GameOver{Reason: "opponent left"}
		if res.Winner != nil {
			over.Winner = res.Winner.Name
			over.FinalScores = []types.ScoreEntry{{
				PlayerID: res.Winner.ID,
				Name:     res.Winner.Name,
				Score:    res.Winner.Score,
			}}
		}
		s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtGameOver, Payload: over})
		s.log.Info("game forfeited",
			zap.String("room", s.roomID),
			zap.String("left", res.Left.Name))
		return
	}

	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtPlayerLeft, Payload: types.PlayerLeftGame{
		PlayerID:         m.PlayerID,
		PlayerName:       res.Left.Name,
		RemainingPlayers: playerViews(res.Remaining),
	}})

	// The departed player may have been the last holdout; "all answered"
	// and "all ready" are over present players only.
	switch s.game.Phase {
	case engine.PhaseQuestion:
		if s.game.AllAnswered() {
			s.closeQuestion()
		}
	case engine.PhaseAnswer:
		if s.game.AllReady() {
			s.nextQuestion()
		}
	}
}

func (s *Session) handleTick() {
	// Phase check, not timer bookkeeping, is the race guard: a tick that
	// lost to an early advancement finds the old phase gone and does
	// nothing.
	if s.game.Phase != engine.PhaseQuestion && s.game.Phase != engine.PhaseAnswer {
		return
	}

	remaining, timeUp := s.game.Tick()
	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtTimeUpdate, Payload: types.TimeUpdate{
		RemainingTime: remaining,
	}})
	if !timeUp {
		return
	}

	switch s.game.Phase {
	case engine.PhaseQuestion:
		s.closeQuestion()
	case engine.PhaseAnswer:
		// Time up in the answer phase counts as everyone ready.
		s.nextQuestion()
	}
}

// closeQuestion is the single authoritative question -> answer transition,
// shared by "all answered", "all ready" and "time up". Calling it after the
// phase already flipped is a no-op.
func (s *Session) closeQuestion() {
	s.timer.Stop()
	reveal, final, err := s.game.AdvanceToAnswer()
	if err != nil {
		return
	}

	if final {
		// Last question: no dangling reveal, bundle it into game over.
		payload := revealPayload(reveal)
		winner, _ := s.game.Winner()
		s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtGameOver, Payload: types.GameOver{
			FinalScores:        scoreEntries(reveal.Scores),
			Winner:             winner.Name,
			LastQuestionAnswer: &payload,
		}})
		s.log.Info("game finished", zap.String("room", s.roomID), zap.String("winner", winner.Name))
		return
	}

	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtRevealAnswer, Payload: revealPayload(reveal)})
	s.timer.Start()
}

// nextQuestion is the answer -> question transition for both "all ready"
// and "time up".
func (s *Session) nextQuestion() {
	s.timer.Stop()
	finished, err := s.game.AdvanceToNextQuestion()
	if err != nil {
		return
	}

	if finished {
		winner, _ := s.game.Winner()
		s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtGameOver, Payload: types.GameOver{
			FinalScores: scoreEntries(s.game.Scores()),
			Winner:      winner.Name,
		}})
		return
	}

	s.bc.Broadcast(s.roomID, types.ServerMessage{Type: types.EvtNewQuestion, Payload: s.newQuestionPayload()})
	s.timer.Start()
}

func (s *Session) finish() {
	s.timer.Stop()
	s.cancel()
	if s.onEnd != nil {
		s.onEnd(s.roomID)
	}
}

func (s *Session) snapshot() types.GameState {
	st := types.GameState{
		Exists:         true,
		Phase:          string(s.game.Phase),
		QuestionIndex:  s.game.Index + 1,
		TotalQuestions: len(s.game.Questions),
		RemainingTime:  s.game.Remaining,
		Scores:         scoreEntries(s.game.Scores()),
	}
	if s.game.Phase == engine.PhaseQuestion || s.game.Phase == engine.PhaseAnswer {
		q := types.NewQuestionView(s.game.CurrentQuestion())
		st.Question = &q
	}
	return st
}

func (s *Session) newQuestionPayload() types.NewQuestion {
	return types.NewQuestion{
		QuestionIndex:  s.game.Index + 1,
		TotalQuestions: len(s.game.Questions),
		Question:       types.NewQuestionView(s.game.CurrentQuestion()),
		TimeLimit:      s.game.Rules.QuestionSec,
	}
}

func (s *Session) now() time.Time { return s.clock.Now() }

func (s *Session) playerName(id string) string {
	for _, p := range s.game.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

func playerViews(players []*engine.Player) []types.PlayerView {
	out := make([]types.PlayerView, 0, len(players))
	for _, p := range players {
		out = append(out, types.PlayerView{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

func scoreEntries(scores []engine.Score) []types.ScoreEntry {
	out := make([]types.ScoreEntry, 0, len(scores))
	for _, sc := range scores {
		out = append(out, types.ScoreEntry{PlayerID: sc.PlayerID, Name: sc.Name, Score: sc.Score})
	}
	return out
}

func revealPayload(r engine.Reveal) types.RevealAnswer {
	results := make([]types.PlayerResult, 0, len(r.Results))
	for _, pr := range r.Results {
		results = append(results, types.PlayerResult{
			ID:          pr.ID,
			Name:        pr.Name,
			Answer:      pr.Answer,
			Answered:    pr.Answered,
			IsCorrect:   pr.Correct,
			TimeTakenMs: pr.TimeTakenMs,
		})
	}
	return types.RevealAnswer{
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation,
		Results:       results,
		Scores:        scoreEntries(r.Scores),
	}
}
