// Package environment runs queries against the data service and serves their
// results from a normalized store.
//
// An Environment deduplicates fetches: for a given descriptor and variable
// set there is at most one Handle, and so at most one transport call, until
// the handle is invalidated. Handles settle exactly once. Reads of a resolved
// handle always project the current store state, so later fetches touching
// the same entities are reflected.
package environment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	descriptor "github.com/hanpama/ghcard/internal/descriptor"
	eventbus "github.com/hanpama/ghcard/internal/eventbus"
	events "github.com/hanpama/ghcard/internal/events"
	reqid "github.com/hanpama/ghcard/internal/reqid"
	store "github.com/hanpama/ghcard/internal/store"
	transport "github.com/hanpama/ghcard/internal/transport"
)

// Executor sends an operation to the data service. *transport.Client
// implements it. Implementations must be safe for concurrent use.
type Executor interface {
	Execute(ctx context.Context, operationName, query string, vars map[string]any) (*transport.Response, error)
}

var _ Executor = (*transport.Client)(nil)

// Result is a read of a handle. Data is set only when State is Resolved
// and Err only when State is Failed.
type Result struct {
	State State
	Data  map[string]any
	Err   error
}

type Environment struct {
	transport Executor
	store     *store.Store

	mu      sync.Mutex
	handles map[string]*Handle
}

type Option func(*Environment)

// WithStore makes the environment use s instead of a new empty store.
func WithStore(s *store.Store) Option { return func(e *Environment) { e.store = s } }

func New(t Executor, opts ...Option) *Environment {
	e := &Environment{transport: t, handles: make(map[string]*Handle)}
	for _, f := range opts {
		f(e)
	}
	if e.store == nil {
		e.store = store.New()
	}
	return e
}

func (e *Environment) Store() *store.Store { return e.store }

// Key returns the dedup key for desc and already coerced vars.
func Key(desc *descriptor.Descriptor, vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	// encoding/json sorts map keys, which makes the key stable.
	b, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("environment: encode variables: %w", err)
	}
	return desc.Name + string(b), nil
}

// Fetch returns the handle for desc and vars, starting a fetch when none
// exists. Variables are validated before anything else; a mismatch is
// returned as *descriptor.ValidationError and no handle is created.
//
// The fetch runs detached from ctx cancellation: once started it always
// completes. Values of ctx are kept.
func (e *Environment) Fetch(ctx context.Context, desc *descriptor.Descriptor, vars map[string]any) (*Handle, error) {
	coerced, err := desc.CoerceVariables(vars)
	if err != nil {
		return nil, err
	}
	key, err := Key(desc, coerced)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if h, ok := e.handles[key]; ok {
		e.mu.Unlock()
		return h, nil
	}
	h := newHandle(key, desc, coerced)
	e.handles[key] = h
	e.mu.Unlock()

	go e.execute(context.WithoutCancel(ctx), h)
	return h, nil
}

// Read reports the handle's state. A resolved read projects the current store
// state every time it is called.
func (e *Environment) Read(h *Handle) Result {
	switch st := h.State(); st {
	case Resolved:
		snap := e.store.Lookup(h.desc, h.vars)
		return Result{State: Resolved, Data: snap.Data}
	case Failed:
		return Result{State: Failed, Err: h.Err()}
	default:
		return Result{State: Pending}
	}
}

// Invalidate forgets the settled handle for desc and vars so that the next
// Fetch starts a new one. Pending handles are kept. It reports whether a
// handle was dropped.
func (e *Environment) Invalidate(desc *descriptor.Descriptor, vars map[string]any) (bool, error) {
	coerced, err := desc.CoerceVariables(vars)
	if err != nil {
		return false, err
	}
	key, err := Key(desc, coerced)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[key]
	if !ok || h.State() == Pending {
		return false, nil
	}
	delete(e.handles, key)
	return true, nil
}

func (e *Environment) execute(ctx context.Context, h *Handle) {
	ctx, _ = reqid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.FetchStart{Key: h.key, OperationName: h.desc.Name})

	err := e.run(ctx, h)
	h.settle(err)

	eventbus.Publish(ctx, events.FetchFinish{
		Key:           h.key,
		OperationName: h.desc.Name,
		State:         h.State().String(),
		Err:           err,
		Records:       e.store.Len(),
		Duration:      time.Since(start),
	})
}

func (e *Environment) run(ctx context.Context, h *Handle) error {
	resp, err := e.transport.Execute(ctx, h.desc.Name, h.desc.Text, h.vars)
	if err != nil {
		return err
	}
	// Partial data next to errors is dropped.
	if len(resp.Errors) > 0 {
		return newGraphQLError(resp.Errors)
	}
	data, err := decodeData(resp.Data)
	if err != nil {
		return err
	}
	// The merge is complete before the handle settles.
	return e.store.Publish(h.desc, h.vars, data)
}

func decodeData(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("environment: decode data: %w", err)
	}
	return data, nil
}
