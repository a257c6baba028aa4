package game

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mottyeytan/HeadToHead/internal/engine"
	"github.com/mottyeytan/HeadToHead/internal/types"
)

func newTestStore() (*Store, *recorder) {
	rec := newRecorder()
	return NewStore(context.Background(), rec, clockwork.NewFakeClock(), engine.DefaultRules(), zap.NewNop(), nil), rec
}

func TestStoreCreateAndGet(t *testing.T) {
	st, _ := newTestStore()

	sess, err := st.Create("ABCD", twoSeeds(), testQuestions())
	require.NoError(t, err)
	require.NotNil(t, sess)

	got, ok := st.Get("ABCD")
	assert.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = st.Get("WXYZ")
	assert.False(t, ok)
}

func TestStoreRejectsSecondSessionForRoom(t *testing.T) {
	st, _ := newTestStore()

	_, err := st.Create("ABCD", twoSeeds(), testQuestions())
	require.NoError(t, err)

	_, err = st.Create("ABCD", twoSeeds(), testQuestions())
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestStoreCreatePropagatesEngineErrors(t *testing.T) {
	st, _ := newTestStore()

	_, err := st.Create("ABCD", []engine.Seed{{ID: "c1", Name: "Alice"}}, testQuestions())
	assert.ErrorIs(t, err, engine.ErrNotEnoughPlayers)

	_, err = st.Create("ABCD", twoSeeds(), nil)
	assert.ErrorIs(t, err, engine.ErrNoQuestions)

	// Failed creates do not occupy the room slot.
	_, ok := st.Get("ABCD")
	assert.False(t, ok)
}

func TestLeaveAllForfeitsOnlyThePlayersSessions(t *testing.T) {
	st, rec := newTestStore()

	sess, err := st.Create("ABCD", twoSeeds(), testQuestions())
	require.NoError(t, err)
	_, err = st.Create("WXYZ", []engine.Seed{{ID: "c3", Name: "Carol"}, {ID: "c4", Name: "Dave"}}, testQuestions())
	require.NoError(t, err)
	sess.Start()
	waitForEvent(t, rec.ch, types.EvtNewQuestion, time.Second)

	// The disconnect path calls this without knowing which game, if any,
	// the connection was in.
	st.LeaveAll("c1")

	over := waitForEvent(t, rec.ch, types.EvtGameOver, time.Second)
	require.Equal(t, "ABCD", over.Room)
	payload := over.Msg.Payload.(types.GameOver)
	assert.Equal(t, "Bob", payload.Winner)
	assert.Equal(t, "opponent left", payload.Reason)

	expectNoEvent(t, rec.ch, types.EvtGameOver, 100*time.Millisecond)
	_, ok := st.Get("WXYZ")
	assert.True(t, ok, "sessions without the player must be untouched")
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	st, _ := newTestStore()

	_, err := st.Create("ABCD", twoSeeds(), testQuestions())
	require.NoError(t, err)

	st.Delete("ABCD")
	_, ok := st.Get("ABCD")
	assert.False(t, ok)
	st.Delete("ABCD")
}
