// Package clock is the injectable Now() seam named in spec.md §6 as
// the Clock external interface, so retry/backoff/ETA tests (spec.md §8
// scenario 3, the ETA monotonicity property) can advance time
// deterministically instead of sleeping. Grounded on the teacher's
// internal/clock package (only referenced, not retained, from
// cli/observability_flags.go's `"github.com/kopia/kopia/internal/clock"`
// import) — we rebuild the Now() seam that import implies.
package clock

import (
	"context"
	"time"
)

// Clock returns the current time. The default implementation wraps
// time.Now(); tests substitute a Frozen or Manual clock.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Manual is a test Clock whose time only moves when Advance is called.
// Not safe for concurrent use without external synchronization, which
// matches the teacher's single-threaded orchestrator-tick-loop model
// (spec.md §5): only the tick loop's goroutine reads or advances it.
type Manual struct {
	t time.Time
}

// NewManual creates a Manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{t: t}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time { return m.t }

// Advance moves the manual clock forward by d.
func (m *Manual) Advance(d time.Duration) { m.t = m.t.Add(d) }

// Set pins the manual clock to t.
func (m *Manual) Set(t time.Time) { m.t = t }

// SleepInterruptibly blocks for d or until ctx is cancelled, whichever
// comes first. It returns true if the full duration elapsed and false
// if ctx was cancelled first — the shared wait primitive for the
// orchestrator's tick loop and the snapshot manager's retry backoff
// (spec.md §5's tick loop, §4.4's retry delay), both of which need to
// wake up early on shutdown rather than sleep out a full interval.
func SleepInterruptibly(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
