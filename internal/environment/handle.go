package environment

import (
	"context"
	"sync"

	descriptor "github.com/hanpama/ghcard/internal/descriptor"
)

// State is the lifecycle of a Handle: Pending, then exactly one of
// Resolved or Failed. Both are terminal.
type State int

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Handle is one fetch of a (descriptor, variables) pair.
type Handle struct {
	key  string
	desc *descriptor.Descriptor
	vars map[string]any
	done chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

func newHandle(key string, desc *descriptor.Descriptor, vars map[string]any) *Handle {
	return &Handle{key: key, desc: desc, vars: vars, done: make(chan struct{})}
}

// Key is the dedup key of the handle.
func (h *Handle) Key() string { return h.key }

func (h *Handle) Descriptor() *descriptor.Descriptor { return h.desc }

// Variables returns a copy of the coerced variables.
func (h *Handle) Variables() map[string]any {
	out := make(map[string]any, len(h.vars))
	for k, v := range h.vars {
		out[k] = v
	}
	return out
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err is the failure of a Failed handle and nil otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the handle leaves Pending.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the handle settles or ctx is done. It returns the
// handle's failure, or ctx.Err() when ctx ended first.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle moves a pending handle to its terminal state. Later calls are
// ignored and report false.
func (h *Handle) settle(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Pending {
		return false
	}
	if err != nil {
		h.state = Failed
		h.err = err
	} else {
		h.state = Resolved
	}
	close(h.done)
	return true
}
