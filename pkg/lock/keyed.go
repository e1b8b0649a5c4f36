package lock

import (
	"context"
	"sync"
	"time"

	appErrors "github.com/schnillerman/care-contracts-api/pkg/errors"
)

// Keyed serialises critical sections per key. Callers for the same key run
// one at a time; callers for different keys never block each other. Entries
// are reference counted and removed once the last waiter is gone, so the map
// does not grow with the key space.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewKeyed constructs an empty keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held, the timeout elapses, or the
// context is done. On success it returns a release function that must be
// called exactly once. A timeout surfaces as LOCK_TIMEOUT rather than an
// indefinite hang. A non-positive timeout disables the timer and waits on
// the context alone.
func (k *Keyed) Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			k.put(key, e)
		}, nil
	case <-timerC:
		k.put(key, e)
		return nil, appErrors.Clone(appErrors.ErrLockTimeout, "")
	case <-ctx.Done():
		k.put(key, e)
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, "lock wait cancelled")
	}
}

func (k *Keyed) put(key string, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}
