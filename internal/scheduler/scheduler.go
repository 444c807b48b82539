// Package scheduler implements the update scheduler that runs registered
// periodic tasks (playerList, squadList, layerInfo, serverInfo, adminList
// by default), each serializing its own runs with overlap prevention.
// Grounded on the reference pack's
// internal/player_tracker/player_tracker.go refresh-loop shape (immediate
// run, then fixed interval, isRunning guard) generalized from one hardcoded
// task to a registered task table, plus internal/workflow_manager's
// gopher-lua embedding for optional user-scripted tasks.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TaskFunc is the body of a scheduled task.
type TaskFunc func(ctx context.Context) error

// Stats tracks one task's run history.
type Stats struct {
	mu        sync.Mutex
	LastRun   time.Time
	LastError error
	Runs      uint64
	Errors    uint64
	Skipped   uint64
	isRunning bool
}

// Snapshot returns a copy of the current stats, safe to read concurrently
// with the task executing.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{LastRun: s.LastRun, LastError: s.LastError, Runs: s.Runs, Errors: s.Errors, Skipped: s.Skipped}
}

// IsRunning reports whether the task's previous run is still in flight.
func (s *Stats) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	enabled  bool
	stats    *Stats
}

// Scheduler runs a set of named periodic tasks, one goroutine per task,
// each refusing to overlap with its own still-running invocation.
// Individual task failures are caught, recorded in that task's Stats, and
// never propagate to the scheduler or to peer tasks.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	log    zerolog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an empty Scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*task),
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a named periodic task. enabled tasks run immediately on
// StartAll and then at the fixed interval; disabled tasks are tracked
// (visible via Stats/RunNow) but never auto-fire.
func (s *Scheduler) Register(name string, interval time.Duration, enabled bool, fn TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = &task{name: name, interval: interval, fn: fn, enabled: enabled, stats: &Stats{}}
}

// StartAll runs every enabled task immediately, then on its own ticker.
func (s *Scheduler) StartAll(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.enabled {
			tasks = append(tasks, t)
		}
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t := t
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(ctx, t)
		}()
	}
}

// Stop cancels every running task loop and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// runLoop anchors the ticker to task start, not to the first run's
// completion: the immediate run executes in its own goroutine while the
// ticker is already counting, so a slow first run sees its overlapping
// firings skipped like any other.
func (s *Scheduler) runLoop(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, t)
	}()

	for {
		select {
		case <-ticker.C:
			s.execute(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// execute runs t.fn if it isn't already running; otherwise the firing is
// skipped (not queued) and counted.
func (s *Scheduler) execute(ctx context.Context, t *task) {
	t.stats.mu.Lock()
	if t.stats.isRunning {
		t.stats.Skipped++
		t.stats.mu.Unlock()
		s.log.Debug().Str("task", t.name).Msg("previous run still in progress, skipping this firing")
		return
	}
	t.stats.isRunning = true
	t.stats.mu.Unlock()

	defer func() {
		t.stats.mu.Lock()
		t.stats.isRunning = false
		t.stats.mu.Unlock()
	}()

	err := runCaught(ctx, t.fn)

	t.stats.mu.Lock()
	t.stats.LastRun = time.Now()
	t.stats.Runs++
	t.stats.LastError = err
	if err != nil {
		t.stats.Errors++
	}
	t.stats.mu.Unlock()

	if err != nil {
		s.log.Warn().Str("task", t.name).Err(err).Msg("scheduled task failed")
	}
}

// runCaught isolates a task panic the same way the event bus isolates a
// subscriber panic: scheduler task errors never propagate to peers.
func runCaught(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// RunNow invokes the named task outside its schedule, obeying the same
// overlap rule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown task %q", name)
	}
	s.execute(ctx, t)
	return nil
}

// TaskStats returns a snapshot of the named task's stats.
func (s *Scheduler) TaskStats(name string) (Stats, bool) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return t.stats.Snapshot(), true
}
