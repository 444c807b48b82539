package logwatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Manager wires a log Source into a bounded Queue and a rule-loop Engine:
// the full read→enqueue→match→correlate→publish pipeline.
type Manager struct {
	source Source
	queue  *Queue
	engine *Engine
	log    zerolog.Logger
}

// ManagerConfig bundles the queue and engine tuning values.
type ManagerConfig struct {
	QueueCapacity int
	HighWaterFrac float64
	BatchSize     int
	Cadence       time.Duration

	OnHighWater func(depth int)
	OnDrop      func(n int)
}

// NewManager constructs a Manager over an already-built Source.
func NewManager(source Source, cfg ManagerConfig, publisher Publisher, log zerolog.Logger) *Manager {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 10000
	}
	queue := NewQueue(capacity, cfg.HighWaterFrac, cfg.OnHighWater, cfg.OnDrop)
	engine := NewEngine(EngineConfig{BatchSize: cfg.BatchSize, Cadence: cfg.Cadence}, queue, publisher, log)
	return &Manager{source: source, queue: queue, engine: engine, log: log.With().Str("component", "logwatcher.manager").Logger()}
}

// Start begins the source watch and the rule loop; it returns once the
// source's initial health check completes (file found, auth and connection
// verified) or fails.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.source.Watch(ctx, m.queue.Enqueue); err != nil {
		return err
	}
	go m.engine.Run(ctx)
	return nil
}

// Stop detaches the source; the rule loop exits once ctx used in Start is
// cancelled.
func (m *Manager) Stop() {
	m.source.Unwatch()
}

// Stats exposes the engine's live rule-processing counters.
func (m *Manager) Stats() *Stats { return m.engine.Stats() }

// QueueDepth exposes the current backlog for health reporting.
func (m *Manager) QueueDepth() int { return m.queue.Depth() }
