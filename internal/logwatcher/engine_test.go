package logwatcher

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/events"
)

type captureBus struct {
	published []events.Data
}

func (c *captureBus) Publish(d events.Data) { c.published = append(c.published, d) }

func newTestEngine(bus Publisher) (*Engine, *Queue) {
	q := NewQueue(100, 0.8, nil, nil)
	e := NewEngine(EngineConfig{}, q, bus, zerolog.Nop())
	return e, q
}

func TestEngineProcessLinePublishesMatch(t *testing.T) {
	bus := &captureBus{}
	e, _ := newTestEngine(bus)

	line := `[2024.01.01-00.00.00:000][14]LogSquad: USQGameState: Server Tick Rate: 39.52`
	e.processLine(line, time.Now())

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	tick, ok := bus.published[0].(events.TickRateData)
	if !ok || tick.TickRate != 39.52 || tick.ChainID != 14 {
		t.Fatalf("published = %+v", bus.published[0])
	}

	stats := e.Stats()
	if stats.LinesProcessed != 1 || stats.LinesMatched != 1 || stats.LinesUnmatched != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.CountByKind()[events.TypeTickRate] != 1 {
		t.Fatalf("by-kind counts = %v", stats.CountByKind())
	}
}

func TestEngineUnmatchedSampleIsBounded(t *testing.T) {
	bus := &captureBus{}
	e, _ := newTestEngine(bus)

	for i := 0; i < 10; i++ {
		e.processLine("garbage line that matches nothing", time.Now())
	}

	stats := e.Stats()
	if stats.LinesUnmatched != 10 {
		t.Fatalf("unmatched = %d, want 10", stats.LinesUnmatched)
	}
	if sample := stats.UnmatchedSample(); len(sample) != unmatchedSampleCap {
		t.Fatalf("sample length = %d, want %d", len(sample), unmatchedSampleCap)
	}
	if len(bus.published) != 0 {
		t.Fatalf("unmatched lines published %d events", len(bus.published))
	}
}

func TestEngineDrainConsumesQueueInOrder(t *testing.T) {
	bus := &captureBus{}
	e, q := newTestEngine(bus)

	q.Enqueue(`[2024.01.01-00.00.00:000][1]LogSquad: USQGameState: Server Tick Rate: 10.0`)
	q.Enqueue(`[2024.01.01-00.00.01:000][2]LogSquad: USQGameState: Server Tick Rate: 20.0`)
	e.drain()

	if len(bus.published) != 2 {
		t.Fatalf("published %d events, want 2", len(bus.published))
	}
	first := bus.published[0].(events.TickRateData)
	second := bus.published[1].(events.TickRateData)
	if first.TickRate != 10.0 || second.TickRate != 20.0 {
		t.Fatalf("events out of order: %v then %v", first.TickRate, second.TickRate)
	}
	if q.Depth() != 0 {
		t.Fatalf("queue depth = %d, want 0", q.Depth())
	}
}

func TestEngineSideEffectOnlyMatchPublishesNothing(t *testing.T) {
	bus := &captureBus{}
	e, _ := newTestEngine(bus)

	// A transition-map world load matches the new-game rule but is
	// suppressed as a side-effect-only parse.
	line := `[2024.01.01-00.00.00:000][1]LogWorld: Bringing World /Game/Maps/TransitionMap.TransitionMap up for play`
	e.processLine(line, time.Now())

	if len(bus.published) != 0 {
		t.Fatalf("published = %+v, want nothing", bus.published)
	}
	if e.Stats().LinesMatched != 1 {
		t.Fatalf("stats = %+v, want one matched line", e.Stats())
	}
}
