package rawgkit

import (
	"context"
	"sync"
)

// inflightResult is the raw outcome shared by every caller coalesced onto one
// network call. Waiters decode the payload independently.
type inflightResult struct {
	payload []byte
	status  int
	err     error
}

// inflightCall represents one in-flight network call and the callers waiting
// on it. The owner executes the call with ctx; cancel fires when the waiter
// set becomes empty so an abandoned call never runs unobserved.
type inflightCall struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	result inflightResult

	registry *inflightRegistry
	key      string

	mu      sync.Mutex
	waiters int
}

// inflightRegistry tracks in-flight calls by request key. The lookup and the
// publish of a new call happen under one lock, so two simultaneous first
// callers can never both become owners.
type inflightRegistry struct {
	mu    sync.Mutex
	calls map[string]*inflightCall
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{
		calls: make(map[string]*inflightCall),
	}
}

// join returns the call for key, creating it if absent. The second return is
// true for the caller that created the entry: that caller owns the network
// call and must eventually invoke complete. Every joiner, owner included,
// is registered as a waiter.
func (r *inflightRegistry) join(key string) (*inflightCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if call, exists := r.calls[key]; exists {
		call.mu.Lock()
		call.waiters++
		call.mu.Unlock()
		return call, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	call := &inflightCall{
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		registry: r,
		key:      key,
		waiters:  1,
	}
	r.calls[key] = call
	return call, true
}

// complete publishes the final result, releases all waiters and removes the
// entry immediately so later callers start a fresh call.
func (r *inflightRegistry) complete(key string, payload []byte, status int, err error) {
	r.mu.Lock()
	call, exists := r.calls[key]
	if exists {
		delete(r.calls, key)
	}
	r.mu.Unlock()

	if !exists {
		return
	}

	call.result = inflightResult{payload: payload, status: status, err: err}
	close(call.done)
	call.cancel()
}

// cancelAll aborts every in-flight call. Waiters observe the resulting
// context error through the owner's completion.
func (r *inflightRegistry) cancelAll() {
	r.mu.Lock()
	calls := make([]*inflightCall, 0, len(r.calls))
	for _, call := range r.calls {
		calls = append(calls, call)
	}
	r.mu.Unlock()

	for _, call := range calls {
		call.cancel()
	}
}

// size reports the number of in-flight calls, for metrics.
func (r *inflightRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// wait blocks until the call resolves or ctx is cancelled. Cancellation
// removes only this waiter; the shared call keeps running unless no waiters
// remain, in which case the call's own context is cancelled.
func (c *inflightCall) wait(ctx context.Context) ([]byte, int, error) {
	select {
	case <-c.done:
		return c.result.payload, c.result.status, c.result.err
	case <-ctx.Done():
		c.leave()
		return nil, 0, ctx.Err()
	}
}

// leave removes one waiter. When the set empties, the call's registry entry
// is unpublished in the same critical section a joiner would use, so a caller
// arriving afterwards starts a fresh call instead of inheriting the
// cancellation. Lock order matches join: registry, then call.
func (c *inflightCall) leave() {
	c.registry.mu.Lock()
	c.mu.Lock()
	c.waiters--
	abandoned := c.waiters <= 0
	if abandoned && c.registry.calls[c.key] == c {
		delete(c.registry.calls, c.key)
	}
	c.mu.Unlock()
	c.registry.mu.Unlock()

	if abandoned {
		c.cancel()
	}
}
