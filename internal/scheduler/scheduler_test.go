package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestOverlapPreventionSkipsOneFiring(t *testing.T) {
	s := New(zerolog.Nop())

	var running int32
	var runs int32
	release := make(chan struct{})

	s.Register("playerList", 20*time.Millisecond, true, func(ctx context.Context) error {
		atomic.AddInt32(&running, 1)
		atomic.AddInt32(&runs, 1)
		<-release
		atomic.AddInt32(&running, -1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartAll(ctx)

	// Let the immediate run start and the first ticker firing land while
	// it's still in flight; that firing must be skipped, not queued.
	time.Sleep(45 * time.Millisecond)
	close(release)
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	stats, ok := s.TaskStats("playerList")
	if !ok {
		t.Fatal("expected playerList task to be registered")
	}
	if stats.Skipped == 0 {
		t.Fatalf("expected at least one skipped firing, got %d skipped, %d runs", stats.Skipped, stats.Runs)
	}
	if atomic.LoadInt32(&running) != 0 {
		t.Fatal("task should not still be marked running after release")
	}
}

func TestRunNowObeysOverlapRule(t *testing.T) {
	s := New(zerolog.Nop())
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	s.Register("manual", time.Hour, false, func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	})

	go s.RunNow(context.Background(), "manual")
	<-started

	if err := s.RunNow(context.Background(), "manual"); err != nil {
		t.Fatalf("RunNow should not itself error on overlap, got %v", err)
	}
	stats, _ := s.TaskStats("manual")
	if stats.Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", stats.Skipped)
	}
	close(release)
}

func TestFailedTaskRecordsErrorWithoutPropagating(t *testing.T) {
	s := New(zerolog.Nop())
	s.Register("flaky", time.Hour, false, func(ctx context.Context) error {
		panic("boom")
	})

	if err := s.RunNow(context.Background(), "flaky"); err != nil {
		t.Fatalf("RunNow itself should not surface the task's panic, got %v", err)
	}
	stats, _ := s.TaskStats("flaky")
	if stats.Errors != 1 || stats.LastError == nil {
		t.Fatalf("expected one recorded error, got errors=%d lastErr=%v", stats.Errors, stats.LastError)
	}
}

func TestUnknownTaskErrors(t *testing.T) {
	s := New(zerolog.Nop())
	if err := s.RunNow(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unregistered task")
	}
}
