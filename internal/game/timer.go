package game

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// phaseTimer is the per-session countdown handle. The session loop selects
// on Chan directly, so ticks are serialized with every other mutation and
// at most one countdown is live per room: Start replaces the previous run,
// Stop is an idempotent no-op when nothing is armed, and a tick buffered by
// a replaced ticker is unreachable once Chan points at the new one. Only
// the session goroutine touches it.
type phaseTimer struct {
	clock  clockwork.Clock
	ticker clockwork.Ticker
}

func newPhaseTimer(clock clockwork.Clock) *phaseTimer {
	return &phaseTimer{clock: clock}
}

// Start arms a fresh once-per-second countdown, cancelling any live one.
func (t *phaseTimer) Start() {
	t.Stop()
	t.ticker = t.clock.NewTicker(time.Second)
}

// Stop cancels the live countdown, if any. Safe to call repeatedly.
func (t *phaseTimer) Stop() {
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
}

// Chan is the tick source. Nil (blocking forever) while no countdown is
// armed, which is exactly what a select case wants.
func (t *phaseTimer) Chan() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.Chan()
}
