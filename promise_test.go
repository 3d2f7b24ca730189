package faultline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/faultline"
)

func TestPromiseResolveWins(t *testing.T) {
	p := faultline.NewPromise()
	if p.State() != faultline.PromisePending {
		t.Fatalf("expected pending state, got %v", p.State())
	}

	p.Resolve(&faultline.Response{ID: "1"})
	p.Reject(errors.New("too late"))
	p.Resolve(&faultline.Response{ID: "2"})

	resp, err := p.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if resp.ID != "1" {
		t.Fatalf("expected first resolution to win, got id %q", resp.ID)
	}
	if p.State() != faultline.PromiseResolved {
		t.Fatalf("expected resolved state, got %v", p.State())
	}
}

func TestPromiseRejectWins(t *testing.T) {
	p := faultline.NewPromise()
	reason := errors.New("boom")

	p.Reject(reason)
	p.Resolve(&faultline.Response{ID: "1"})
	p.Reject(errors.New("other"))

	if _, err := p.Await(context.Background()); !errors.Is(err, reason) {
		t.Fatalf("expected original rejection reason, got %v", err)
	}
	if p.State() != faultline.PromiseRejected {
		t.Fatalf("expected rejected state, got %v", p.State())
	}
}

func TestPromiseAwaitBlocksUntilResolved(t *testing.T) {
	p := faultline.NewPromise()

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Resolve(&faultline.Response{ID: "42"})
	}()

	resp, err := p.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if resp.ID != "42" {
		t.Fatalf("unexpected response id %q", resp.ID)
	}
}

func TestPromiseAwaitHonoursContext(t *testing.T) {
	p := faultline.NewPromise()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if p.State() != faultline.PromisePending {
		t.Fatalf("promise must stay pending after a cancelled await")
	}
}

func TestPromiseConcurrentSettlement(t *testing.T) {
	p := faultline.NewPromise()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				p.Resolve(&faultline.Response{ID: "even"})
			} else {
				p.Reject(errors.New("odd"))
			}
		}(i)
	}
	wg.Wait()

	if p.State() == faultline.PromisePending {
		t.Fatalf("promise must have settled")
	}
	// Whatever won, both readers must observe the same terminal outcome.
	resp1, err1 := p.Await(context.Background())
	resp2, err2 := p.Await(context.Background())
	if (err1 == nil) != (err2 == nil) || (resp1 == nil) != (resp2 == nil) {
		t.Fatalf("awaits disagree: (%v,%v) vs (%v,%v)", resp1, err1, resp2, err2)
	}
}
