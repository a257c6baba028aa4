package game

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mottyeytan/HeadToHead/internal/engine"
	"github.com/mottyeytan/HeadToHead/internal/question"
	"github.com/mottyeytan/HeadToHead/internal/types"
)

// recorder captures everything a session broadcasts so tests can assert on
// the event stream.
type recorder struct{ ch chan sentEvent }

type sentEvent struct {
	Room string
	Conn string
	Msg  types.ServerMessage
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan sentEvent, 256)}
}

func (r *recorder) Broadcast(roomID string, msg types.ServerMessage) {
	r.ch <- sentEvent{Room: roomID, Msg: msg}
}

func (r *recorder) Send(connID string, msg types.ServerMessage) {
	r.ch <- sentEvent{Conn: connID, Msg: msg}
}

// helper: receive the next event of the given type, skipping others, with a
// timeout so tests never hang.
func waitForEvent(t *testing.T, ch <-chan sentEvent, eventType string, within time.Duration) sentEvent {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case e := <-ch:
			if e.Msg.Type == eventType {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
			return sentEvent{} // unreachable
		}
	}
}

func expectNoEvent(t *testing.T, ch <-chan sentEvent, eventType string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case e := <-ch:
			if e.Msg.Type == eventType {
				t.Fatalf("expected no %s within %v, got %+v", eventType, within, e.Msg)
			}
		case <-deadline:
			return
		}
	}
}

func testQuestions() []question.Question {
	return []question.Question{
		{ID: "q1", Text: "מהי עיר הבירה של צרפת?", CorrectAnswer: "פריז", Explanation: "בירת צרפת.", Category: "geography"},
		{ID: "q2", Text: "מהי עיר הבירה של בריטניה?", CorrectAnswer: "לונדון", Explanation: "בירת בריטניה.", Category: "geography"},
	}
}

func twoSeeds() []engine.Seed {
	return []engine.Seed{{ID: "c1", Name: "Alice"}, {ID: "c2", Name: "Bob"}}
}

func newTestSession(t *testing.T, rules engine.Rules, seeds []engine.Seed) (*Session, *Store, *recorder, *clockwork.FakeClock) {
	t.Helper()
	rec := newRecorder()
	clock := clockwork.NewFakeClock()
	store := NewStore(context.Background(), rec, clock, rules, zap.NewNop(), nil)

	sess, err := store.Create("ABCD", seeds, testQuestions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sess, store, rec, clock
}

// syncState waits until the session loop has drained everything sent so far.
func syncState(t *testing.T, sess *Session) types.GameState {
	t.Helper()
	st, ok := sess.State()
	if !ok {
		t.Fatalf("session ended unexpectedly")
	}
	return st
}

func TestSessionStartBroadcastsFirstQuestion(t *testing.T) {
	sess, _, rec, _ := newTestSession(t, engine.DefaultRules(), twoSeeds())
	sess.Start()

	started := waitForEvent(t, rec.ch, types.EvtGameStarted, time.Second)
	payload := started.Msg.Payload.(types.GameStarted)
	if payload.TotalQuestions != 2 || len(payload.Players) != 2 {
		t.Fatalf("game started payload %+v", payload)
	}
	if payload.FirstQuestion == nil || payload.FirstQuestion.QuestionIndex != 1 {
		t.Fatalf("first question missing or wrong index: %+v", payload.FirstQuestion)
	}

	nq := waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)
	q := nq.Msg.Payload.(types.NewQuestion)
	if q.TimeLimit != 15 || q.Question.ID != "q1" {
		t.Fatalf("new question payload %+v", q)
	}

	st := syncState(t, sess)
	if st.Phase != string(engine.PhaseQuestion) || st.RemainingTime != 15 {
		t.Fatalf("state after start: %+v", st)
	}
}

func TestSubmitSendsVerdictAndAnnouncesPlayer(t *testing.T) {
	sess, _, rec, _ := newTestSession(t, engine.DefaultRules(), twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	sess.Submit("c1", "פריז")

	res := waitForEvent(t, rec.ch, types.EvtAnswerResult, time.Second)
	if res.Conn != "c1" {
		t.Fatalf("answer result must target the submitter, went to %q", res.Conn)
	}
	if !res.Msg.Payload.(types.AnswerResult).IsCorrect {
		t.Fatalf("expected correct verdict")
	}

	ann := waitForEvent(t, rec.ch, types.EvtPlayerAnswered, time.Second)
	pa := ann.Msg.Payload.(types.PlayerAnswered)
	if pa.PlayerName != "Alice" {
		t.Fatalf("player answered payload %+v", pa)
	}
	// One of two answered: no reveal yet.
	expectNoEvent(t, rec.ch, types.EvtRevealAnswer, 100*time.Millisecond)
}

func TestAllAnsweredRevealsEarly(t *testing.T) {
	sess, _, rec, _ := newTestSession(t, engine.DefaultRules(), twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	sess.Submit("c1", "פריז")
	sess.Submit("c2", "מדריד")

	reveal := waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)
	payload := reveal.Msg.Payload.(types.RevealAnswer)
	if payload.CorrectAnswer != "פריז" || len(payload.Results) != 2 {
		t.Fatalf("reveal payload %+v", payload)
	}
	if payload.Scores[0].Name != "Alice" || payload.Scores[0].Score != 10 {
		t.Fatalf("reveal scores %+v", payload.Scores)
	}

	st := syncState(t, sess)
	if st.Phase != string(engine.PhaseAnswer) || st.RemainingTime != 5 {
		t.Fatalf("state after reveal: %+v", st)
	}
}

func TestQuestionTimeoutForcesReveal(t *testing.T) {
	rules := engine.Rules{QuestionSec: 2, AnswerSec: 5}
	sess, _, rec, clock := newTestSession(t, rules, twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	tu := waitForEvent(t, rec.ch, types.EvtTimeUpdate, time.Second)
	if tu.Msg.Payload.(types.TimeUpdate).RemainingTime != 1 {
		t.Fatalf("time update %+v", tu.Msg.Payload)
	}

	clock.Advance(time.Second)
	tu = waitForEvent(t, rec.ch, types.EvtTimeUpdate, time.Second)
	if tu.Msg.Payload.(types.TimeUpdate).RemainingTime != 0 {
		t.Fatalf("time update %+v", tu.Msg.Payload)
	}

	reveal := waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)
	results := reveal.Msg.Payload.(types.RevealAnswer).Results
	if results[0].Answered || results[1].Answered {
		t.Fatalf("nobody answered, results %+v", results)
	}
}

func TestAnswerTimeoutAdvancesToNextQuestion(t *testing.T) {
	rules := engine.Rules{QuestionSec: 15, AnswerSec: 1}
	sess, _, rec, clock := newTestSession(t, rules, twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	sess.Submit("c1", "פריז")
	sess.Submit("c2", "לונדון")
	waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)
	syncState(t, sess) // answer countdown armed

	clock.BlockUntil(1)
	clock.Advance(time.Second)

	nq := waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)
	payload := nq.Msg.Payload.(types.NewQuestion)
	if payload.QuestionIndex != 2 || payload.Question.ID != "q2" {
		t.Fatalf("straggler timeout must open question 2, got %+v", payload)
	}
}

// The "all answered" and "time up" triggers race for the same transition;
// exactly one reveal may happen.
func TestAllAnsweredAndTimeoutRaceSingleTransition(t *testing.T) {
	rules := engine.Rules{QuestionSec: 1, AnswerSec: 30}
	sess, _, rec, clock := newTestSession(t, rules, twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	clock.BlockUntil(1)
	sess.Submit("c1", "פריז")
	sess.Submit("c2", "לונדון")
	clock.Advance(time.Second) // time up lands together with the answers

	waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)
	expectNoEvent(t, rec.ch, types.EvtRevealAnswer, 200*time.Millisecond)

	st := syncState(t, sess)
	if st.Phase != string(engine.PhaseAnswer) {
		t.Fatalf("phase after race: %+v", st)
	}
}

func TestAllReadySkipsAnswerCountdown(t *testing.T) {
	sess, _, rec, _ := newTestSession(t, engine.DefaultRules(), twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	sess.Submit("c1", "פריז")
	sess.Submit("c2", "לונדון")
	waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)

	sess.Ready("c1")
	waitForEvent(t, rec.ch, types.EvtPlayerReady, time.Second)
	expectNoEvent(t, rec.ch, types.EvtNewQuestion, 100*time.Millisecond)

	sess.Ready("c2")
	nq := waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)
	if nq.Msg.Payload.(types.NewQuestion).QuestionIndex != 2 {
		t.Fatalf("expected question 2 after everyone ready")
	}
}

func TestLastQuestionBundlesRevealIntoGameOver(t *testing.T) {
	sess, store, rec, _ := newTestSession(t, engine.DefaultRules(), twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	// Q1: Alice correct, Bob wrong.
	sess.Submit("c1", "פריז")
	sess.Submit("c2", "לונדון")
	waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)
	sess.Ready("c1")
	sess.Ready("c2")
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	// Q2 (last): Alice correct again.
	sess.Submit("c1", "לונדון")
	sess.Submit("c2", "ברלין")

	over := waitForEvent(t, rec.ch, types.EvtGameOver, time.Second)
	payload := over.Msg.Payload.(types.GameOver)
	if payload.Winner != "Alice" {
		t.Fatalf("winner %q", payload.Winner)
	}
	if len(payload.FinalScores) != 2 || payload.FinalScores[0].Score != 20 || payload.FinalScores[1].Score != 0 {
		t.Fatalf("final scores %+v", payload.FinalScores)
	}
	if payload.LastQuestionAnswer == nil || payload.LastQuestionAnswer.CorrectAnswer != "לונדון" {
		t.Fatalf("last reveal must ride in the game over payload: %+v", payload.LastQuestionAnswer)
	}
	// No standalone reveal for the last question.
	expectNoEvent(t, rec.ch, types.EvtRevealAnswer, 100*time.Millisecond)

	waitDeleted(t, store, "ABCD")
}

func TestForfeitLeaveEndsGame(t *testing.T) {
	sess, store, rec, _ := newTestSession(t, engine.DefaultRules(), twoSeeds())
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	// Give the leaver the higher score; the survivor still wins.
	sess.Submit("c1", "פריז")
	waitForEvent(t, rec.ch, types.EvtPlayerAnswered, time.Second)

	sess.Leave("c1")

	over := waitForEvent(t, rec.ch, types.EvtGameOver, time.Second)
	payload := over.Msg.Payload.(types.GameOver)
	if payload.Winner != "Bob" || payload.Reason != "opponent left" {
		t.Fatalf("forfeit payload %+v", payload)
	}

	waitDeleted(t, store, "ABCD")
}

func TestMidGameLeaveContinuesAboveFloor(t *testing.T) {
	seeds := []engine.Seed{{ID: "c1", Name: "Alice"}, {ID: "c2", Name: "Bob"}, {ID: "c3", Name: "Carol"}}
	sess, store, rec, _ := newTestSession(t, engine.DefaultRules(), seeds)
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	sess.Leave("c2")

	left := waitForEvent(t, rec.ch, types.EvtPlayerLeft, time.Second)
	payload := left.Msg.Payload.(types.PlayerLeftGame)
	if payload.PlayerName != "Bob" || len(payload.RemainingPlayers) != 2 {
		t.Fatalf("player left payload %+v", payload)
	}
	expectNoEvent(t, rec.ch, types.EvtGameOver, 100*time.Millisecond)

	// Remaining players can still close the question.
	sess.Submit("c1", "פריז")
	sess.Submit("c3", "רומא")
	waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)

	if _, ok := store.Get("ABCD"); !ok {
		t.Fatalf("session must survive a 3 -> 2 departure")
	}
}

func TestLeaveOfLastHoldoutClosesQuestion(t *testing.T) {
	seeds := []engine.Seed{{ID: "c1", Name: "Alice"}, {ID: "c2", Name: "Bob"}, {ID: "c3", Name: "Carol"}}
	sess, _, rec, _ := newTestSession(t, engine.DefaultRules(), seeds)
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	sess.Submit("c1", "פריז")
	sess.Submit("c3", "רומא")
	expectNoEvent(t, rec.ch, types.EvtRevealAnswer, 100*time.Millisecond)

	// Everyone still present has answered once Bob is gone.
	sess.Leave("c2")
	waitForEvent(t, rec.ch, types.EvtPlayerLeft, time.Second)
	waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)
}

func TestLeaveOfLastHoldoutAdvancesAnswerPhase(t *testing.T) {
	seeds := []engine.Seed{{ID: "c1", Name: "Alice"}, {ID: "c2", Name: "Bob"}, {ID: "c3", Name: "Carol"}}
	sess, _, rec, _ := newTestSession(t, engine.DefaultRules(), seeds)
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	sess.Submit("c1", "פריז")
	sess.Submit("c2", "מדריד")
	sess.Submit("c3", "רומא")
	waitForEvent(t, rec.ch, types.EvtRevealAnswer, time.Second)

	sess.Ready("c1")
	sess.Ready("c3")
	expectNoEvent(t, rec.ch, types.EvtNewQuestion, 100*time.Millisecond)

	sess.Leave("c2")
	nq := waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)
	if nq.Msg.Payload.(types.NewQuestion).QuestionIndex != 2 {
		t.Fatalf("expected question 2 once the unready player left")
	}
}

func waitDeleted(t *testing.T, store *Store, roomID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Get(roomID); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s not deleted after game over", roomID)
}
