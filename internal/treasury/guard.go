package treasury

import (
	"errors"
	"sync/atomic"
)

// ErrReentrantCall is returned when a guarded entry point is invoked while
// another guarded call is still in flight. Venue interactions can trigger
// callbacks, so reentry is an error rather than a wait.
var ErrReentrantCall = errors.New("reentrant call into treasury")

// reentrancyGuard is the call-scoped mutual exclusion around every
// state-mutating entry point. Acquired on entry, released on every exit path.
type reentrancyGuard struct {
	locked atomic.Bool
}

func (g *reentrancyGuard) enter() error {
	if !g.locked.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (g *reentrancyGuard) exit() {
	g.locked.Store(false)
}
