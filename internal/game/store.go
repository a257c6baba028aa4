package game

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mottyeytan/HeadToHead/internal/engine"
	"github.com/mottyeytan/HeadToHead/internal/question"
)

var ErrSessionActive = errors.New("session already active for room")

// Store is the authoritative map of active sessions, keyed by room id.
// Constructed once at the composition root and injected wherever sessions
// are created or looked up; rooms never coordinate with each other through
// it beyond the map itself.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	bc    Broadcaster
	clock clockwork.Clock
	rules engine.Rules
	log   *zap.Logger
	ctx   context.Context

	// onEnd is invoked after a finished session is removed, with the room
	// id. Used to flip the lobby status.
	onEnd func(roomID string)
}

func NewStore(ctx context.Context, bc Broadcaster, clock clockwork.Clock, rules engine.Rules, log *zap.Logger, onEnd func(roomID string)) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		bc:       bc,
		clock:    clock,
		rules:    rules,
		log:      log,
		ctx:      ctx,
		onEnd:    onEnd,
	}
}

// Create builds a session in the waiting phase for the room. Exactly one
// session may be active per room at a time.
func (st *Store) Create(roomID string, seeds []engine.Seed, questions []question.Question) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[roomID]; ok {
		return nil, ErrSessionActive
	}

	g, err := engine.New(roomID, seeds, questions, st.rules)
	if err != nil {
		return nil, err
	}

	s := newSession(st.ctx, roomID, g, st.bc, st.clock, st.log, func(roomID string) {
		st.Delete(roomID)
		if st.onEnd != nil {
			st.onEnd(roomID)
		}
	})
	st.sessions[roomID] = s
	return s, nil
}

// Get returns the active session for the room, if any.
func (st *Store) Get(roomID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[roomID]
	return s, ok
}

// LeaveAll tells every active session the player is gone. A session the
// player was never in treats the message as a no-op, so this is safe to
// call on any disconnect without tracking which game the connection joined.
func (st *Store) LeaveAll(playerID string) {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	for _, s := range sessions {
		s.Leave(playerID)
	}
}

// Delete drops the session from the map. Idempotent.
func (st *Store) Delete(roomID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, roomID)
}

// Shutdown tears down every active session.
func (st *Store) Shutdown() {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()

	for _, s := range sessions {
		s.Shutdown()
	}
}
