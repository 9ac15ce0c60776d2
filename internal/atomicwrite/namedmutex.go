package atomicwrite

import (
	"context"
	"time"

	"github.com/gofrs/flock"
)

// NamedMutex is a cross-process, session-scoped mutex backed by a lock
// file, grounded on the teacher's go.mod dependency
// github.com/gofrs/flock. spec.md §5 calls for "Named OS mutex for
// tracking registry... scope its name by user/session so multi-user
// hosts don't deadlock" and for explicit timeouts on every acquisition.
type NamedMutex struct {
	fl *flock.Flock
}

// NewNamedMutex returns a mutex whose lock file lives at lockPath.
// Callers scope lockPath by session (e.g. include the session id or
// user name in the path) per spec.md §5.
func NewNamedMutex(lockPath string) *NamedMutex {
	return &NamedMutex{fl: flock.New(lockPath)}
}

// ErrTimeout is returned by WithLock when the lock could not be
// acquired before timeout elapsed.
var ErrTimeout = context.DeadlineExceeded

// WithLock runs fn while holding the exclusive lock, retrying
// acquisition every retryDelay until timeout elapses. Returns
// ErrTimeout on expiry so callers can apply spec.md §5's two policies:
// best-effort (proceed unlocked) for non-critical paths like log
// append, or fail for critical paths like the tracking registry.
func (m *NamedMutex) WithLock(ctx context.Context, timeout, retryDelay time.Duration, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := m.fl.TryLockContext(lockCtx, retryDelay)
	if err != nil || !locked {
		return ErrTimeout
	}
	defer m.fl.Unlock() //nolint:errcheck

	return fn()
}
