package faultline_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/faultline"
)

type transportStub struct {
	mu          sync.Mutex
	noticeCalls int
	deployCalls int
	resp        *faultline.Response
	err         error
	delay       time.Duration
}

func (t *transportStub) SendNotice(ctx context.Context, n *faultline.Notice) (*faultline.Response, error) {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.noticeCalls++
	return t.resp, t.err
}

func (t *transportStub) SendDeploy(ctx context.Context, d *faultline.Deploy) (*faultline.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deployCalls++
	return t.resp, t.err
}

func (t *transportStub) notices() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.noticeCalls
}

func (t *transportStub) deploys() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deployCalls
}

func newTestConfig() *faultline.Config {
	return &faultline.Config{
		ProjectID:   1,
		ProjectKey:  "key",
		Environment: "production",
		PoolSize:    1,
		QueueSize:   8,
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := faultline.New(&faultline.Config{ProjectKey: "key"})
	if !errors.Is(err, faultline.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	_, err = faultline.New(&faultline.Config{ProjectID: 1})
	if !errors.Is(err, faultline.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for missing key, got %v", err)
	}

	_, err = faultline.New(nil)
	if !errors.Is(err, faultline.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil config, got %v", err)
	}
}

func TestNotifySyncIgnoredEnvironment(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "42"}}
	stageRuns := 0

	cfg := newTestConfig()
	cfg.Environment = "test"
	cfg.IgnoredEnvironments = []string{"test"}

	notifier, err := faultline.New(cfg, faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer notifier.Close(context.Background())

	notifier.AddFilter(faultline.FilterFunc(func(n *faultline.Notice) { stageRuns++ }))

	_, err = notifier.NotifySync(errors.New("boom"), nil)
	if !errors.Is(err, faultline.ErrIgnored) {
		t.Fatalf("expected ErrIgnored, got %v", err)
	}
	if !strings.Contains(err.Error(), "test") || !strings.Contains(err.Error(), "ignored") {
		t.Fatalf("reason must name the environment and ignored: %v", err)
	}
	if stageRuns != 0 {
		t.Fatalf("no filter stage may run for an ignored environment, got %d", stageRuns)
	}
	if transport.notices() != 0 {
		t.Fatalf("transport must not be invoked, got %d calls", transport.notices())
	}
}

func TestNotifySyncDeliversSuccessfully(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "42"}}

	notifier, err := faultline.New(newTestConfig(), faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer notifier.Close(context.Background())

	resp, err := notifier.NotifySync(errors.New("boom"), faultline.Params{"a": 1})
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if resp.ID != "42" {
		t.Fatalf("expected remote id 42, got %q", resp.ID)
	}
	if transport.notices() != 1 {
		t.Fatalf("expected exactly one delivery, got %d", transport.notices())
	}
}

func TestNotifySyncFilterIgnoredNoticeNeverDelivered(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "42"}}

	notifier, err := faultline.New(newTestConfig(), faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer notifier.Close(context.Background())

	notifier.AddFilter(faultline.FilterFunc(func(n *faultline.Notice) { n.Ignore() }))

	laterRan := false
	notifier.AddFilter(faultline.FilterFunc(func(n *faultline.Notice) { laterRan = true }))

	_, err = notifier.NotifySync(errors.New("boom"), nil)
	if !errors.Is(err, faultline.ErrIgnored) {
		t.Fatalf("expected ErrIgnored, got %v", err)
	}
	if !laterRan {
		t.Fatalf("stages after the ignoring one must still run")
	}
	if transport.notices() != 0 {
		t.Fatalf("transport must never see an ignored notice, got %d calls", transport.notices())
	}
}

func TestNotifySyncTransportFailureSurfacesThroughPromise(t *testing.T) {
	transport := &transportStub{err: faultline.WrapTransient(errors.New("connection refused"))}

	notifier, err := faultline.New(newTestConfig(), faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer notifier.Close(context.Background())

	_, err = notifier.NotifySync(errors.New("boom"), nil)
	if !errors.Is(err, faultline.ErrTransient) {
		t.Fatalf("expected transient transport failure, got %v", err)
	}
}

func TestNotifyUsesAsyncSender(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "42"}}

	var buf bytes.Buffer
	cfg := newTestConfig()
	cfg.Logger = zerolog.New(&buf)

	notifier, err := faultline.New(cfg, faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notifier.Notify(errors.New("boom"), nil)

	if err := notifier.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if transport.notices() != 1 {
		t.Fatalf("expected one async delivery, got %d", transport.notices())
	}
	if strings.Contains(buf.String(), "falling back") {
		t.Fatalf("no fallback warning expected while workers are alive: %s", buf.String())
	}
}

func TestNotifyNeverPanicsOnWeirdInput(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "1"}}

	notifier, err := faultline.New(newTestConfig(), faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer notifier.Close(context.Background())

	notifier.Notify(nil, nil)
	notifier.Notify(struct{ X int }{X: 1}, faultline.Params{"k": "v"})
	notifier.Notify("plain string", nil)
}

func TestBuildNoticeFailsAfterClose(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "1"}}

	notifier, err := faultline.New(newTestConfig(), faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := notifier.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := notifier.BuildNotice(errors.New("boom"), nil); !errors.Is(err, faultline.ErrClosedPipeline) {
		t.Fatalf("expected ErrClosedPipeline, got %v", err)
	}

	_, err = notifier.NotifySync(errors.New("boom"), nil)
	if !errors.Is(err, faultline.ErrClosedPipeline) {
		t.Fatalf("expected ErrClosedPipeline from the pipeline, got %v", err)
	}
}

func TestCreateDeployUsesSyncPath(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "deploy-1"}}

	cfg := newTestConfig()
	cfg.Environment = "staging"

	notifier, err := faultline.New(cfg, faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer notifier.Close(context.Background())

	deploy := &faultline.Deploy{Revision: "abc123"}
	resp, err := notifier.CreateDeploy(deploy).Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if resp.ID != "deploy-1" {
		t.Fatalf("unexpected deploy id %q", resp.ID)
	}
	if deploy.Environment != "staging" {
		t.Fatalf("environment must default from config, got %q", deploy.Environment)
	}
	if transport.deploys() != 1 {
		t.Fatalf("expected one deploy call, got %d", transport.deploys())
	}
}

func TestConfigBlacklistSeedsFilterChain(t *testing.T) {
	transport := &transportStub{resp: &faultline.Response{ID: "1"}}

	cfg := newTestConfig()
	cfg.BlacklistKeys = []string{"password"}

	notifier, err := faultline.New(cfg, faultline.WithTransport(transport))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer notifier.Close(context.Background())

	var redacted, user any
	notifier.AddFilter(faultline.FilterFunc(func(n *faultline.Notice) {
		redacted = n.Params["password"]
		user = n.Params["user"]
	}))

	if _, err := notifier.NotifySync(errors.New("boom"), faultline.Params{"password": "secret", "user": "bob"}); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if redacted != faultline.FilteredMarker {
		t.Fatalf("expected password to reach later stages redacted, got %v", redacted)
	}
	if user != "bob" {
		t.Fatalf("expected user untouched, got %v", user)
	}
}
