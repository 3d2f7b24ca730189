package faultline

import (
	"context"
	"reflect"

	"github.com/rs/zerolog"
)

// SyncSender performs a blocking delivery on the calling goroutine and
// settles the promise with the transport outcome. It holds no state beyond
// its collaborators; each call is independent.
type SyncSender struct {
	transport Transport
	logger    zerolog.Logger
}

// NewSyncSender constructs a synchronous sender.
func NewSyncSender(transport Transport, logger zerolog.Logger) *SyncSender {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &SyncSender{
		transport: transport,
		logger:    logger.With().Str("component", "sync-sender").Logger(),
	}
}

// Send delivers the notice and resolves or rejects the promise. No retry is
// performed at this layer.
func (s *SyncSender) Send(ctx context.Context, n *Notice, p *Promise) {
	resp, err := s.transport.SendNotice(ctx, n)
	if err != nil {
		s.logger.Warn().
			Str("notice_id", n.ID).
			Err(err).
			Msg("synchronous delivery failed")
		p.Reject(err)
		return
	}
	p.Resolve(resp)
}

// SendDeploy delivers deploy metadata through the same blocking path.
func (s *SyncSender) SendDeploy(ctx context.Context, d *Deploy, p *Promise) {
	resp, err := s.transport.SendDeploy(ctx, d)
	if err != nil {
		s.logger.Warn().
			Str("environment", d.Environment).
			Err(err).
			Msg("deploy delivery failed")
		p.Reject(err)
		return
	}
	p.Resolve(resp)
}
