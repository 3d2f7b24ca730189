package faultline

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type envelope struct {
	notice  *Notice
	promise *Promise
}

// AsyncSender owns a bounded task queue and a fixed pool of delivery
// workers. Send enqueues without waiting for delivery; workers settle each
// notice's promise with the transport outcome.
//
// Lifecycle is open -> closing -> closed. While open, a full queue blocks
// the enqueuing call (backpressure) rather than dropping work. Once closing,
// new work is rejected and the queue drains.
type AsyncSender struct {
	transport Transport
	logger    zerolog.Logger

	poolSize  int
	queueSize int

	mu        sync.Mutex
	queue     chan envelope
	accepting bool
	started   bool

	// sendWG tracks in-flight enqueues so Close never races a channel send
	// with close(queue).
	sendWG   sync.WaitGroup
	workerWG sync.WaitGroup

	alive atomic.Int32
}

// NewAsyncSender constructs an async sender with the given pool and queue
// sizes. Workers do not run until Start is called.
func NewAsyncSender(transport Transport, poolSize, queueSize int, logger zerolog.Logger) *AsyncSender {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	if poolSize < 1 {
		poolSize = DefaultPoolSize
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &AsyncSender{
		transport: transport,
		logger:    logger.With().Str("component", "async-sender").Logger(),
		poolSize:  poolSize,
		queueSize: queueSize,
	}
}

// Start transitions the sender to open and launches the worker pool. A
// second call is a no-op; a closed sender cannot be restarted.
func (s *AsyncSender) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.accepting = true
	s.queue = make(chan envelope, s.queueSize)

	for i := 0; i < s.poolSize; i++ {
		s.workerWG.Add(1)
		s.alive.Add(1)
		go func(idx int) {
			defer s.workerWG.Done()
			defer s.alive.Add(-1)
			s.workerLoop(idx)
		}(i)
	}
}

func (s *AsyncSender) workerLoop(idx int) {
	for env := range s.queue {
		resp, err := s.transport.SendNotice(context.Background(), env.notice)
		if err != nil {
			s.logger.Warn().
				Int("worker", idx).
				Str("notice_id", env.notice.ID).
				Err(err).
				Msg("async delivery failed")
			env.promise.Reject(err)
			continue
		}
		env.promise.Resolve(resp)
	}
}

// Send enqueues the notice for background delivery. If the sender is not
// accepting work (never started, closing, or closed) the promise is
// rejected with ErrClosedPipeline. A full queue blocks until a worker frees
// space.
func (s *AsyncSender) Send(n *Notice, p *Promise) {
	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		p.Reject(ErrClosedPipeline)
		return
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	q <- envelope{notice: n, promise: p}
}

// HasWorkers reports whether at least one delivery worker is alive.
func (s *AsyncSender) HasWorkers() bool {
	return s.alive.Load() > 0
}

// Closed reports whether the sender has stopped accepting new work. It is
// false before Start: a never-started sender simply has no workers yet.
func (s *AsyncSender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.accepting
}

// Close stops intake, lets the workers drain the queue, and waits for them
// to exit. If ctx expires before the drain completes, the remaining queued
// promises are rejected with ErrClosedPipeline so none is left pending
// forever. Close is idempotent.
func (s *AsyncSender) Close(ctx context.Context) error {
	s.mu.Lock()
	q := s.queue
	if q == nil || !s.accepting {
		s.mu.Unlock()
		return nil
	}
	s.accepting = false
	s.mu.Unlock()

	// Wait out in-flight enqueues before closing the channel.
	s.sendWG.Wait()
	close(q)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Abandon whatever is still queued; each reader (worker or this
		// loop) receives an envelope at most once, so no promise settles
		// twice.
		for env := range q {
			env.promise.Reject(ErrClosedPipeline)
		}
		s.logger.Warn().Err(ctx.Err()).Msg("close timed out before queue drained")
		return ctx.Err()
	}
}
