package faultline

import (
	"context"
	"sync"
)

// PromiseState reports where a promise is in its lifecycle.
type PromiseState int

const (
	// PromisePending means no terminal transition has happened yet.
	PromisePending PromiseState = iota
	// PromiseResolved means the delivery succeeded.
	PromiseResolved
	// PromiseRejected means the delivery was suppressed or failed.
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromiseResolved:
		return "resolved"
	case PromiseRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Promise is a single-resolution future conveying a delivery outcome. The
// first Resolve or Reject wins; later calls are no-ops. Resolve/Reject from
// one goroutine and Await from another are safe.
type Promise struct {
	once sync.Once
	done chan struct{}

	mu     sync.Mutex
	state  PromiseState
	value  *Response
	reason error
}

// NewPromise returns a pending promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve transitions the promise to resolved with the given response.
// Calls after the first terminal transition are ignored.
func (p *Promise) Resolve(resp *Response) *Promise {
	p.once.Do(func() {
		p.mu.Lock()
		p.state = PromiseResolved
		p.value = resp
		p.mu.Unlock()
		close(p.done)
	})
	return p
}

// Reject transitions the promise to rejected with the given reason.
// Calls after the first terminal transition are ignored.
func (p *Promise) Reject(reason error) *Promise {
	p.once.Do(func() {
		p.mu.Lock()
		p.state = PromiseRejected
		p.reason = reason
		p.mu.Unlock()
		close(p.done)
	})
	return p
}

// Await blocks until the promise leaves the pending state, then returns the
// terminal outcome. If ctx is done first, Await returns ctx.Err() and the
// promise stays pending.
func (p *Promise) Await(ctx context.Context) (*Response, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PromiseRejected {
		return nil, p.reason
	}
	return p.value, nil
}

// State reports the current promise state without blocking.
func (p *Promise) State() PromiseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
