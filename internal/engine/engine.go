package engine

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/mottyeytan/HeadToHead/internal/question"
)

var ErrNotEnoughPlayers = errors.New("need at least 2 players")
var ErrNoQuestions = errors.New("no questions drawn")
var ErrWrongPhase = errors.New("operation not valid in current phase")
var ErrUnknownPlayer = errors.New("player not in game")

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseQuestion Phase = "question"
	PhaseAnswer   Phase = "answer"
	PhaseFinished Phase = "finished"
)

// MinPlayers is the floor below which a game cannot run.
const MinPlayers = 2

// PointsPerCorrect is awarded for every correct answer.
const PointsPerCorrect = 10

// DefaultQuestionCount questions are drawn per game unless overridden.
const DefaultQuestionCount = 10

// Rules carries the per-phase countdown lengths.
type Rules struct {
	QuestionSec int
	AnswerSec   int
}

func DefaultRules() Rules {
	return Rules{QuestionSec: 15, AnswerSec: 5}
}

// PlayerAnswer is one player's recorded answer for one question. Immutable
// once stored.
type PlayerAnswer struct {
	QuestionID  string
	Answer      string
	Correct     bool
	TimeTakenMs int64
	SubmittedAt time.Time
}

// Player is the per-game mutable record for one participant. Join order is
// the slice position in Game.Players and never changes while the player is
// present.
type Player struct {
	ID      string
	Name    string
	Score   int
	Current *PlayerAnswer
	Answers []PlayerAnswer
	Ready   bool
}

// Game is the authoritative state machine for one room's play-through. All
// methods mutate in place; the caller is responsible for serializing access
// (one goroutine per game).
type Game struct {
	ID        string
	Phase     Phase
	Questions []question.Question
	Index     int
	Remaining int
	Players   []*Player
	Rules     Rules
}

// Seed identifies a joining player when the game is built.
type Seed struct {
	ID   string
	Name string
}

// New builds a game in the waiting phase from the room's current members and
// a drawn question set.
func New(id string, seeds []Seed, questions []question.Question, rules Rules) (*Game, error) {
	if len(seeds) < MinPlayers {
		return nil, ErrNotEnoughPlayers
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	players := make([]*Player, 0, len(seeds))
	for _, s := range seeds {
		players = append(players, &Player{ID: s.ID, Name: s.Name})
	}

	return &Game{
		ID:        id,
		Phase:     PhaseWaiting,
		Questions: questions,
		Players:   players,
		Rules:     rules,
	}, nil
}

// CurrentQuestion returns questions[Index]. Only meaningful outside
// waiting/finished.
func (g *Game) CurrentQuestion() question.Question {
	return g.Questions[g.Index]
}

// Start moves waiting -> question and arms the first countdown.
func (g *Game) Start() error {
	if g.Phase != PhaseWaiting {
		return ErrWrongPhase
	}
	g.Phase = PhaseQuestion
	g.Index = 0
	g.Remaining = g.Rules.QuestionSec
	g.resetRound()
	return nil
}

// SubmitResult reports what a submission did. Applied is false when the
// player already answered this question; duplicate deliveries are a no-op,
// not an error.
type SubmitResult struct {
	Applied     bool
	Correct     bool
	TimeTakenMs int64
	AllAnswered bool
}

// SubmitAnswer records a player's answer for the current question,
// at-most-once. A correct answer scores PointsPerCorrect.
func (g *Game) SubmitAnswer(playerID, answer string, timeTakenMs int64, now time.Time) (SubmitResult, error) {
	if g.Phase != PhaseQuestion {
		return SubmitResult{}, ErrWrongPhase
	}
	p := g.player(playerID)
	if p == nil {
		return SubmitResult{}, ErrUnknownPlayer
	}
	if p.Current != nil {
		return SubmitResult{Applied: false}, nil
	}

	q := g.CurrentQuestion()
	correct := checkAnswer(q, answer)

	pa := PlayerAnswer{
		QuestionID:  q.ID,
		Answer:      answer,
		Correct:     correct,
		TimeTakenMs: timeTakenMs,
		SubmittedAt: now,
	}
	p.Current = &pa
	p.Answers = append(p.Answers, pa)
	if correct {
		p.Score += PointsPerCorrect
	}

	return SubmitResult{
		Applied:     true,
		Correct:     correct,
		TimeTakenMs: timeTakenMs,
		AllAnswered: g.AllAnswered(),
	}, nil
}

// AllAnswered reports whether every currently-present player has a recorded
// answer for the current question.
func (g *Game) AllAnswered() bool {
	for _, p := range g.Players {
		if p.Current == nil {
			return false
		}
	}
	return true
}

// MarkReady flags a player as done with the current phase and reports
// whether everyone present now is. Calling it twice is the same as once.
func (g *Game) MarkReady(playerID string) (allReady bool, err error) {
	if g.Phase != PhaseQuestion && g.Phase != PhaseAnswer {
		return false, ErrWrongPhase
	}
	p := g.player(playerID)
	if p == nil {
		return false, ErrUnknownPlayer
	}
	p.Ready = true
	return g.AllReady(), nil
}

// AllReady reports whether every currently-present player is flagged ready.
func (g *Game) AllReady() bool {
	for _, p := range g.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// PlayerResult is one player's line in a reveal payload.
type PlayerResult struct {
	ID          string
	Name        string
	Answer      string
	Answered    bool
	Correct     bool
	TimeTakenMs int64
}

// Reveal discloses the closed question's answer and everyone's results.
type Reveal struct {
	CorrectAnswer string
	Explanation   string
	Results       []PlayerResult
	Scores        []Score
}

// AdvanceToAnswer closes the current question: question -> answer, or
// question -> finished when this was the last question (the reveal is then
// bundled into the game-over payload instead of a separate broadcast).
func (g *Game) AdvanceToAnswer() (Reveal, bool, error) {
	if g.Phase != PhaseQuestion {
		return Reveal{}, false, ErrWrongPhase
	}

	q := g.CurrentQuestion()
	reveal := Reveal{
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Results:       g.results(),
		Scores:        g.Scores(),
	}

	if g.Index >= len(g.Questions)-1 {
		g.Phase = PhaseFinished
		g.Remaining = 0
		return reveal, true, nil
	}

	g.Phase = PhaseAnswer
	g.Remaining = g.Rules.AnswerSec
	for _, p := range g.Players {
		p.Ready = false
	}
	return reveal, false, nil
}

// AdvanceToNextQuestion moves answer -> question, or answer -> finished when
// the question list is exhausted.
func (g *Game) AdvanceToNextQuestion() (finished bool, err error) {
	if g.Phase != PhaseAnswer {
		return false, ErrWrongPhase
	}

	g.Index++
	if g.Index >= len(g.Questions) {
		g.Phase = PhaseFinished
		g.Remaining = 0
		return true, nil
	}

	g.Phase = PhaseQuestion
	g.Remaining = g.Rules.QuestionSec
	g.resetRound()
	return false, nil
}

// Tick decrements the countdown by one second, floored at zero, and reports
// whether time has run out.
func (g *Game) Tick() (remaining int, timeUp bool) {
	if g.Remaining > 0 {
		g.Remaining--
	}
	return g.Remaining, g.Remaining == 0
}

// LeaveResult describes what removing a player did to the game.
type LeaveResult struct {
	Ended     bool
	Left      *Player
	Winner    *Player
	Remaining []*Player
}

// RemovePlayer takes a player out of the game. Dropping below MinPlayers
// ends the session immediately; the sole survivor (if any) wins by forfeit
// regardless of score.
func (g *Game) RemovePlayer(playerID string) (LeaveResult, error) {
	idx := -1
	for i, p := range g.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LeaveResult{}, ErrUnknownPlayer
	}

	left := g.Players[idx]
	g.Players = append(g.Players[:idx], g.Players[idx+1:]...)

	if len(g.Players) < MinPlayers {
		g.Phase = PhaseFinished
		res := LeaveResult{Ended: true, Left: left, Remaining: g.Players}
		if len(g.Players) > 0 {
			res.Winner = g.Players[0]
		}
		return res, nil
	}
	return LeaveResult{Ended: false, Left: left, Remaining: g.Players}, nil
}

// Score is one scoreboard line.
type Score struct {
	PlayerID string
	Name     string
	Score    int
}

// Scores returns the scoreboard sorted by score descending. Ties keep join
// order (stable sort), so the ordering is deterministic.
func (g *Game) Scores() []Score {
	out := make([]Score, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, Score{PlayerID: p.ID, Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Winner returns the top scorer; among equal scores the earliest joiner
// wins.
func (g *Game) Winner() (Score, bool) {
	scores := g.Scores()
	if len(scores) == 0 {
		return Score{}, false
	}
	return scores[0], true
}

func (g *Game) player(id string) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// resetRound clears per-question player state when a question opens.
func (g *Game) resetRound() {
	for _, p := range g.Players {
		p.Current = nil
		p.Ready = false
	}
}

func (g *Game) results() []PlayerResult {
	out := make([]PlayerResult, 0, len(g.Players))
	for _, p := range g.Players {
		r := PlayerResult{ID: p.ID, Name: p.Name}
		if p.Current != nil {
			r.Answered = true
			r.Answer = p.Current.Answer
			r.Correct = p.Current.Correct
			r.TimeTakenMs = p.Current.TimeTakenMs
		}
		out = append(out, r)
	}
	return out
}

// checkAnswer trims and case-folds both sides; the canonical answer and any
// acceptable variant count as correct.
func checkAnswer(q question.Question, answer string) bool {
	submitted := normalize(answer)
	if submitted == "" {
		return false
	}
	if submitted == normalize(q.CorrectAnswer) {
		return true
	}
	for _, alt := range q.AcceptableAnswers {
		if submitted == normalize(alt) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
