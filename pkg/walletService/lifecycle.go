package walletService

import (
	"sync"
	"sync/atomic"
)

type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle guards adapter initialization.
//
// Transitions: Uninitialized -> Initializing -> Ready | Failed, and Failed -> Initializing
// on retry. Ready is terminal. The mutex is held for the whole setup, so concurrent
// first-time callers wait and then observe Ready instead of running setup again.
// State reads never block, so signing during an in-flight setup fails fast.
type Lifecycle struct {
	mu    sync.Mutex
	state atomic.Int32
}

// Initialize runs setup unless the lifecycle is already Ready. setup must only publish
// adapter state on success; on error the lifecycle moves to Failed and may be retried.
func (l *Lifecycle) Initialize(setup func() error) (ran bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() == StateReady {
		return false, nil
	}

	l.state.Store(int32(StateInitializing))
	if err := setup(); err != nil {
		l.state.Store(int32(StateFailed))
		return true, err
	}
	l.state.Store(int32(StateReady))
	return true, nil
}

func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

func (l *Lifecycle) Ready() bool {
	return l.State() == StateReady
}
