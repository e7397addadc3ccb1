package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "sarabot/pkg/logx"
)

func TestGoPropagatesFirstError(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	boom := errors.New("boom")

	s.Go("fails", func(ctx context.Context) error { return boom })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestGoRecoverFromPanic(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("panics", func(ctx context.Context) error { panic("oh no") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatalf("expected a panic to surface as an error")
	}
}

func TestCancelStopsGoroutines(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()))
	started := make(chan struct{})
	s.Go("waits", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	s.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("context.Canceled is a clean exit, got %v", err)
	}
}

func TestGoRestartBacksOffAndStops(t *testing.T) {
	s := New(context.Background(), WithLogger(logx.Nop()), WithCancelOnError(false))

	runs := make(chan struct{}, 8)
	s.GoRestart("flaky", func(ctx context.Context) error {
		select {
		case runs <- struct{}{}:
		default:
		}
		return errors.New("transient")
	}, 5*time.Millisecond, 20*time.Millisecond)

	// It should restart at least twice.
	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatalf("restart %d never happened", i)
		}
	}

	s.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait after cancel: %v", err)
	}
}
