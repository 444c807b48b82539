package logwatcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/events"
)

const (
	defaultBatchSize  = 100
	defaultCadence    = 10 * time.Millisecond
	unmatchedSampleCap = 5
)

// Publisher is the subset of eventbus.Bus the rule loop depends on.
type Publisher interface {
	Publish(events.Data)
}

// Stats mirrors the counters kept per engine pass: throughput, match/no-
// match breakdown with a bounded diagnostic sample, per-kind counts,
// rolling average match latency, and peak observed queue depth.
type Stats struct {
	mu sync.Mutex

	LinesProcessed uint64
	LinesMatched   uint64
	LinesUnmatched uint64
	LinesDropped   uint64
	PeakQueueDepth int

	unmatchedSample []string
	byKind          map[events.Type]uint64

	totalMatchLatency time.Duration
}

func newStats() *Stats {
	return &Stats{byKind: make(map[events.Type]uint64)}
}

func (s *Stats) recordProcessed(depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LinesProcessed++
	if depth > s.PeakQueueDepth {
		s.PeakQueueDepth = depth
	}
}

func (s *Stats) recordMatch(kind events.Type, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LinesMatched++
	s.byKind[kind]++
	s.totalMatchLatency += latency
}

func (s *Stats) recordUnmatched(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LinesUnmatched++
	if len(s.unmatchedSample) < unmatchedSampleCap {
		sample := line
		if len(sample) > 120 {
			sample = sample[:120]
		}
		s.unmatchedSample = append(s.unmatchedSample, sample)
	}
}

func (s *Stats) recordDropped(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LinesDropped += n
}

// AverageMatchLatency returns the rolling mean time spent in a rule's Parse
// callback across all matched lines.
func (s *Stats) AverageMatchLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LinesMatched == 0 {
		return 0
	}
	return s.totalMatchLatency / time.Duration(s.LinesMatched)
}

// UnmatchedSample returns a bounded diagnostic sample of unmatched line
// prefixes observed so far.
func (s *Stats) UnmatchedSample() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.unmatchedSample))
	copy(out, s.unmatchedSample)
	return out
}

// CountByKind returns the per-event-kind match counts observed so far.
func (s *Stats) CountByKind() map[events.Type]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[events.Type]uint64, len(s.byKind))
	for k, v := range s.byKind {
		out[k] = v
	}
	return out
}

// Engine is the rule loop: it dequeues batches from a Queue on a fixed
// cadence, evaluates each line against the ordered rule table with
// first-match-wins semantics, and publishes resulting events.
type Engine struct {
	queue     *Queue
	store     *EventStore
	rules     []Rule
	publisher Publisher
	log       zerolog.Logger

	batchSize int
	cadence   time.Duration

	stats *Stats
}

// EngineConfig configures batch size and cadence; both default when zero.
type EngineConfig struct {
	BatchSize int
	Cadence   time.Duration
}

// NewEngine constructs a rule loop over queue, publishing matched events to
// publisher. The event store is owned exclusively by this engine's Run
// loop.
func NewEngine(cfg EngineConfig, queue *Queue, publisher Publisher, log zerolog.Logger) *Engine {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	cadence := cfg.Cadence
	if cadence <= 0 {
		cadence = defaultCadence
	}
	return &Engine{
		queue:     queue,
		store:     NewEventStore(),
		rules:     Rules(),
		publisher: publisher,
		log:       log.With().Str("component", "logwatcher.engine").Logger(),
		batchSize: batch,
		cadence:   cadence,
		stats:     newStats(),
	}
}

// Stats returns the live stats counters.
func (e *Engine) Stats() *Stats { return e.stats }

// Run drives the fixed-cadence dequeue/process/publish loop until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.drain()
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) drain() {
	lines := e.queue.DequeueMany(e.batchSize)
	// Evictions happen in Enqueue, on the reader's side; fold in whatever
	// the queue has counted since the last drain. drain is the only writer
	// of LinesDropped.
	if total := e.queue.Drops(); total > e.stats.LinesDropped {
		e.stats.recordDropped(total - e.stats.LinesDropped)
	}
	for _, line := range lines {
		e.processLine(line, time.Now())
	}
}

// processLine evaluates line against the ordered rule table and publishes
// the first match's event, if any.
func (e *Engine) processLine(line string, observed time.Time) {
	e.stats.recordProcessed(e.queue.Depth())

	for _, rule := range e.rules {
		m := rule.Pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		start := time.Now()
		data := rule.Parse(m, observed, e.store)
		e.stats.recordMatch(rule.Kind, time.Since(start))

		if data != nil {
			e.publisher.Publish(data)
		}
		return
	}

	e.stats.recordUnmatched(line)
	e.log.Trace().Str("line", line).Msg("no rule matched")
}
