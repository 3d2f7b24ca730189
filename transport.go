package faultline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/faultline/internal/wire"
)

// Version is the client version reported in notice payloads.
const Version = "1.0.0"

// maxConcurrentRequests caps outbound requests across both senders so a
// large worker pool cannot exhaust the host's connection budget.
const maxConcurrentRequests = 8

// Response is the collection endpoint's acceptance record for a notice or
// deploy.
type Response struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Transport performs the network delivery for built notices and deploy
// payloads. The pipeline treats it as opaque: it either returns an
// acceptance record or an error classified with ErrTransient/ErrPermanent.
type Transport interface {
	SendNotice(ctx context.Context, n *Notice) (*Response, error)
	SendDeploy(ctx context.Context, d *Deploy) (*Response, error)
}

// HTTPTransport delivers payloads to the collection endpoint over HTTP.
type HTTPTransport struct {
	client     *http.Client
	host       string
	projectID  int64
	projectKey string
	logger     zerolog.Logger
	sem        *semaphore.Weighted
}

// NewHTTPTransport constructs the default transport from the supplied
// configuration.
func NewHTTPTransport(cfg *Config, logger zerolog.Logger) *HTTPTransport {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &HTTPTransport{
		client:     &http.Client{Timeout: cfg.Timeout},
		host:       cfg.Host,
		projectID:  cfg.ProjectID,
		projectKey: cfg.ProjectKey,
		logger:     logger.With().Str("component", "http-transport").Logger(),
		sem:        semaphore.NewWeighted(maxConcurrentRequests),
	}
}

func notifierInfo() wire.Notifier {
	return wire.Notifier{
		Name:    "faultline",
		Version: Version,
		URL:     "https://github.com/example/faultline",
	}
}

// SendNotice posts the notice payload and returns the endpoint's acceptance
// record. Failures are wrapped with ErrTransient or ErrPermanent.
func (t *HTTPTransport) SendNotice(ctx context.Context, n *Notice) (*Response, error) {
	payload, err := noticePayload(n).Marshal()
	if err != nil {
		return nil, WrapPermanent(err)
	}

	url := fmt.Sprintf("%s/api/v3/projects/%d/notices", t.host, t.projectID)
	resp, err := t.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	t.logger.Debug().
		Str("notice_id", n.ID).
		Str("remote_id", resp.ID).
		Msg("notice accepted by endpoint")
	return resp, nil
}

// SendDeploy posts deploy metadata to the deploy-tracking endpoint.
func (t *HTTPTransport) SendDeploy(ctx context.Context, d *Deploy) (*Response, error) {
	payload, err := deployPayload(d).Marshal()
	if err != nil {
		return nil, WrapPermanent(err)
	}

	url := fmt.Sprintf("%s/api/v4/projects/%d/deploys", t.host, t.projectID)
	resp, err := t.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}

	t.logger.Debug().
		Str("environment", d.Environment).
		Str("remote_id", resp.ID).
		Msg("deploy recorded by endpoint")
	return resp, nil
}

func (t *HTTPTransport) post(ctx context.Context, url string, payload []byte) (*Response, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, WrapTransient(err)
	}
	defer t.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, WrapPermanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.projectKey)

	httpResp, err := t.client.Do(req)
	if err != nil {
		// Connection failures and timeouts may clear up; classify transient.
		return nil, WrapTransient(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
	if err != nil {
		return nil, WrapTransient(err)
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		out := &Response{}
		if err := json.Unmarshal(body, out); err != nil {
			return nil, WrapTransient(fmt.Errorf("decode response: %v", err))
		}
		return out, nil
	}

	err = fmt.Errorf("endpoint returned %d: %s", httpResp.StatusCode, bytes.TrimSpace(body))
	if isPermanentStatus(httpResp.StatusCode) {
		return nil, WrapPermanent(err)
	}
	return nil, WrapTransient(err)
}

func noticePayload(n *Notice) *wire.Notice {
	frames := make([]wire.Frame, 0, len(n.Backtrace))
	for _, f := range n.Backtrace {
		frames = append(frames, wire.Frame{File: f.File, Line: f.Line, Function: f.Function})
	}
	return &wire.Notice{
		Notifier: notifierInfo(),
		Errors: []wire.Error{{
			Type:      n.ErrorType,
			Message:   n.ErrorMessage,
			Backtrace: frames,
		}},
		Context:     n.Context,
		Environment: n.Env,
		Params:      n.Params,
	}
}

func deployPayload(d *Deploy) *wire.Deploy {
	return &wire.Deploy{
		Environment: d.Environment,
		Repository:  d.Repository,
		Revision:    d.Revision,
		Version:     d.Version,
		Username:    d.Username,
	}
}

func isPermanentStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}
