package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewDefaultsAndValidation(t *testing.T) {
	s, err := New("", func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if s.Expr() != DefaultSchedule {
		t.Errorf("Expr() = %q, want %q", s.Expr(), DefaultSchedule)
	}

	for _, expr := range []string{"0 */6 * * *", "*/30 * * * * *", "@hourly", "@every 15m"} {
		if _, err := New(expr, nil); err != nil {
			t.Errorf("New(%q) error = %v", expr, err)
		}
	}
	if _, err := New("every six hours", nil); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestSchedulerFiresJob(t *testing.T) {
	var fires atomic.Int32
	s, err := New("* * * * * *", func(context.Context) error {
		fires.Add(1)
		return errors.New("job errors are logged")
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-deadline:
			t.Fatalf("job did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				break loop
			}
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSchedulerRunOnStart(t *testing.T) {
	fired := make(chan struct{}, 1)
	s, err := New("@every 1h", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, WithRunOnStart(true))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestSchedulerWaitsForRunOnStartJob(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	s, err := New("@every 1h", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}, WithRunOnStart(true))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()

	select {
	case <-done:
		if !finished.Load() {
			t.Error("Run returned before the run-on-start job finished")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
