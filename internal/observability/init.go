package observability

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the lifecycle of the event store.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
	StateClosed
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
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// initHandle runs a connect function once and lets any number of waiters
// observe its outcome. Waiting never re-runs it.
type initHandle struct {
	once  sync.Once
	done  chan struct{}
	state atomic.Int32
	err   error
}

func newInitHandle() *initHandle {
	return &initHandle{done: make(chan struct{})}
}

func (h *initHandle) start(connect func() error) {
	h.once.Do(func() {
		h.setState(StateInitializing)
		go func() {
			defer close(h.done)
			if err := runConnect(connect); err != nil {
				h.err = err
				h.setState(StateFailed)
				return
			}
			h.setState(StateReady)
		}()
	})
}

func runConnect(connect func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return connect()
}

// wait blocks until connect has finished or ctx is done.
func (h *initHandle) wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *initHandle) State() State {
	return State(h.state.Load())
}

func (h *initHandle) setState(s State) {
	h.state.Store(int32(s))
}
