package faultline

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
)

// Notifier is the entry point of the delivery pipeline. It validates
// configuration, owns the filter chain and both senders, and routes each
// captured error through build -> refine -> deliver.
type Notifier struct {
	cfg       *Config
	logger    zerolog.Logger
	filters   *FilterChain
	transport Transport
	sync      *SyncSender
	async     *AsyncSender
}

// Option customises notifier construction.
type Option func(*Notifier)

// WithTransport replaces the default HTTP transport. Intended for tests and
// for hosts that tunnel delivery through their own client.
func WithTransport(t Transport) Option {
	return func(n *Notifier) {
		if t != nil {
			n.transport = t
		}
	}
}

// New constructs a notifier from the supplied configuration. Invalid
// configuration fails immediately with ErrInvalidConfig before any pipeline
// component is built. The async worker pool is started as part of
// construction.
func New(cfg *Config, opts ...Option) (*Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.normalize()

	logger := cfg.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "notifier").Logger()

	n := &Notifier{
		cfg:     cfg,
		logger:  logger,
		filters: NewFilterChain(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}

	if n.transport == nil {
		n.transport = NewHTTPTransport(cfg, cfg.Logger)
	}
	n.sync = NewSyncSender(n.transport, cfg.Logger)
	n.async = NewAsyncSender(n.transport, cfg.PoolSize, cfg.QueueSize, cfg.Logger)
	n.async.Start()

	if len(cfg.BlacklistKeys) > 0 {
		n.filters.AddFilter(NewBlacklistFilter(cfg.BlacklistKeys...))
	}
	if len(cfg.WhitelistKeys) > 0 {
		n.filters.AddFilter(NewWhitelistFilter(cfg.WhitelistKeys...))
	}

	return n, nil
}

// AddFilter registers a custom stage at the end of the filter chain.
func (n *Notifier) AddFilter(f Filter) {
	n.filters.AddFilter(f)
}

// BuildNotice wraps the captured value into a Notice without sending it,
// for pre-inspection or mutation before an explicit Notify call. It fails
// with ErrClosedPipeline once the async pipeline has been closed.
func (n *Notifier) BuildNotice(v any, params Params) (*Notice, error) {
	if n.async.Closed() {
		return nil, ErrClosedPipeline
	}
	return newNotice(v, params), nil
}

// Notify captures the value fire-and-forget: the notice is delivered in the
// background and the outcome is discarded. The call never fails the caller;
// suppression and transport failures surface only through logs.
func (n *Notifier) Notify(v any, params Params) {
	_ = n.sendNotice(v, params, false)
}

// NotifySync captures the value and blocks until delivery settles,
// returning the terminal outcome: the endpoint's acceptance record, or the
// rejection reason (suppression or transport failure) as an error.
func (n *Notifier) NotifySync(v any, params Params) (*Response, error) {
	return n.sendNotice(v, params, true).Await(context.Background())
}

// sendNotice runs the shared pipeline: ignored-environment check, build,
// refine, ignored-notice check, then delivery. With syncOnly the notice
// always goes through the blocking sender; otherwise the async sender is
// preferred, falling back to a warned synchronous send when no workers are
// alive. The returned promise is settled by whichever step decides the
// outcome.
func (n *Notifier) sendNotice(v any, params Params, syncOnly bool) *Promise {
	p := NewPromise()

	if n.cfg.environmentIgnored() {
		n.logger.Debug().Str("environment", n.cfg.Environment).Msg("notice suppressed before build")
		return p.Reject(WrapIgnored(fmt.Sprintf("environment %q is ignored", n.cfg.Environment)))
	}

	notice, err := n.BuildNotice(v, params)
	if err != nil {
		if !errors.Is(err, ErrClosedPipeline) {
			n.logger.Warn().Err(err).Msg("notice build failed")
		}
		return p.Reject(err)
	}

	n.filters.Refine(notice)

	if notice.Ignored {
		n.logger.Debug().Str("notice_id", notice.ID).Msg("notice suppressed by filter chain")
		return p.Reject(WrapIgnored("a filter stage marked the notice ignored"))
	}

	if syncOnly {
		n.sync.Send(context.Background(), notice, p)
		return p
	}

	if n.async.HasWorkers() {
		n.async.Send(notice, p)
		return p
	}

	// Zero live workers covers both a never-started pool and one drained by
	// Close; both fall back to a blocking send rather than dropping.
	n.logger.Warn().
		Str("notice_id", notice.ID).
		Msg("async sender has no workers; falling back to synchronous delivery")
	n.sync.Send(context.Background(), notice, p)
	return p
}

// Close shuts down the async sender, draining queued deliveries. After it
// returns, BuildNotice and async Notify calls fail with ErrClosedPipeline.
// The synchronous path needs no shutdown.
func (n *Notifier) Close(ctx context.Context) error {
	return n.async.Close(ctx)
}

// CreateDeploy posts deployment metadata to the deploy-tracking endpoint.
// It always uses the blocking sender; the returned promise is settled when
// the call returns.
func (n *Notifier) CreateDeploy(d *Deploy) *Promise {
	p := NewPromise()
	if d == nil {
		return p.Reject(WrapPermanent(errors.New("deploy payload is required")))
	}
	if d.Environment == "" {
		d.Environment = n.cfg.Environment
	}
	n.sync.SendDeploy(context.Background(), d, p)
	return p
}
