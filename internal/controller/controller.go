// Package controller owns everything scoped to one configured game server:
// the RCON engine, the log-watching pipeline, the event bus, the three
// state-projection services, and the update scheduler. It is grounded on
// the reference pack's cmd/server/main.go (errgroup-driven concurrent
// service startup, graceful shutdown) and core/server.go (one aggregate
// root per managed server).
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/eventbus"
	"go.squadwatch.dev/coreplane/internal/logwatcher"
	"go.squadwatch.dev/coreplane/internal/rcon"
	"go.squadwatch.dev/coreplane/internal/scheduler"
	"go.squadwatch.dev/coreplane/internal/sink"
	"go.squadwatch.dev/coreplane/internal/state"
)

// Phase is one state in a Controller's lifecycle.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
	PhaseStopped
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// pollIntervalDefault is the default cadence for every default polling
// task (playerList, squadList, layerInfo, serverInfo); grounded on the
// reference pack's player_tracker.go refreshInterval.
const pollIntervalDefault = 30 * time.Second

// adminListIntervalDefault is the slower cadence for the admin roster,
// which changes far less often than player/squad/layer state.
const adminListIntervalDefault = 5 * time.Minute

// metricsFlushIntervalDefault is how often running stats are appended to
// the metrics-history sink, when one is configured.
const metricsFlushIntervalDefault = time.Minute

// Config aggregates the values-only configuration for one managed server.
type Config struct {
	Name string

	RCON           rcon.EngineConfig
	LogwatchSource logwatcher.SourceConfig
	Logwatch       logwatcher.ManagerConfig

	EventBus eventbus.Config

	// AdminSources lists local Admins.cfg-style files the adminList task
	// refreshes from; empty disables the task.
	AdminSources []string

	// Metrics, when non-nil, enables the metricsFlush task: rule-engine and
	// scheduler stats are appended to the metrics-history sink once a
	// minute.
	Metrics *sink.MetricsSink
}

// Controller is the per-server aggregate root: one RCON engine, one
// log-watching pipeline, one event bus, the three state-projection services,
// and the task scheduler, all scoped to a single configured server.
type Controller struct {
	ID   uuid.UUID
	Name string

	log zerolog.Logger

	mu    sync.RWMutex
	phase Phase
	err   error

	Bus     *eventbus.Bus
	RCON    *rcon.Engine
	Logwatch *logwatcher.Manager
	Players *state.PlayerService
	Squads  *state.SquadService
	Layers  *state.LayerService
	Tasks   *scheduler.Scheduler
	Admins  *AdminSet

	metrics *sink.MetricsSink

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New constructs a Controller in the Created phase; nothing is connected
// or running until Start is called.
func New(cfg Config, log zerolog.Logger) (*Controller, error) {
	log = log.With().Str("component", "controller").Str("server", cfg.Name).Logger()

	bus := eventbus.New(cfg.EventBus, log)

	c := &Controller{
		ID:      uuid.New(),
		Name:    cfg.Name,
		log:     log,
		phase:   PhaseCreated,
		Bus:     bus,
		RCON:    rcon.NewEngine(cfg.RCON, bus, log),
		Players: state.NewPlayerService(bus),
		Squads:  state.NewSquadService(bus),
		Layers:  state.NewLayerService(bus),
		Tasks:   scheduler.New(log),
		Admins:  NewAdminSet(cfg.AdminSources, log),
		metrics: cfg.Metrics,
	}

	source, err := logwatcher.NewSource(cfg.LogwatchSource, log)
	if err != nil {
		return nil, fmt.Errorf("controller %q: failed to construct log source: %w", cfg.Name, err)
	}
	c.Logwatch = logwatcher.NewManager(source, cfg.Logwatch, bus, log)

	c.registerDefaultTasks()
	return c, nil
}

// phaseEvents maps each phase transition onto its bus-published lifecycle
// kind; PhaseCreated has no event (nothing is running yet to observe it).
var phaseEvents = map[Phase]events.Type{
	PhaseStarting: events.TypeServerStarting,
	PhaseRunning:  events.TypeServerReady,
	PhaseStopping: events.TypeServerStopping,
	PhaseStopped:  events.TypeServerStopped,
	PhaseError:    events.TypeServerError,
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	if kind, ok := phaseEvents[p]; ok {
		c.Bus.Publish(events.NewLifecycleEvent(kind, c.Name))
	}
}

// Phase returns the controller's current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Err returns the error that moved the controller into PhaseError, if any.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.phase = PhaseError
	c.err = err
	c.mu.Unlock()
	c.log.Error().Err(err).Msg("controller entering error phase")
	c.Bus.Publish(events.NewLifecycleEvent(events.TypeServerError, err.Error()))
	return err
}

// registerDefaultTasks wires the scheduler's default polling set:
// player/squad/layer/server-info snapshots every 30s, the admin roster
// every 5 minutes, each skipping rather than queuing an overlapping
// firing.
func (c *Controller) registerDefaultTasks() {
	c.Tasks.Register("playerList", pollIntervalDefault, true, func(ctx context.Context) error {
		players, err := c.RCON.ListPlayers(ctx)
		if err != nil {
			return fmt.Errorf("playerList task: %w", err)
		}
		c.Players.UpdateFromRCON(players)
		return nil
	})

	c.Tasks.Register("squadList", pollIntervalDefault, true, func(ctx context.Context) error {
		squads, err := c.RCON.ListSquads(ctx)
		if err != nil {
			return fmt.Errorf("squadList task: %w", err)
		}
		c.Squads.UpdateFromRCON(squads)
		return nil
	})

	c.Tasks.Register("layerInfo", pollIntervalDefault, true, func(ctx context.Context) error {
		current, err := c.RCON.ShowCurrentMap(ctx)
		if err != nil {
			return fmt.Errorf("layerInfo task (current): %w", err)
		}
		c.Layers.UpdateCurrent(current)

		next, err := c.RCON.ShowNextMap(ctx)
		if err != nil {
			return fmt.Errorf("layerInfo task (next): %w", err)
		}
		c.Layers.UpdateNext(next)
		return nil
	})

	// serverInfo carries no service-owned state the way player/squad/layer
	// do; it's published straight onto the bus for any subscriber (the
	// push bridge, a metrics sink) to pick up.
	c.Tasks.Register("serverInfo", pollIntervalDefault, true, func(ctx context.Context) error {
		info, err := c.RCON.ShowServerInfo(ctx)
		if err != nil {
			return fmt.Errorf("serverInfo task: %w", err)
		}
		c.Bus.Publish(events.ServerInfoData{
			Raw:           events.Raw{Time: time.Now()},
			ServerName:    info.ServerName,
			MaxPlayers:    info.MaxPlayers,
			PlayerCount:   info.PlayerCount,
			PublicQueue:   info.PublicQueue,
			ReservedQueue: info.ReservedQueue,
		})
		return nil
	})

	if len(c.Admins.sources) > 0 {
		c.Tasks.Register("adminList", adminListIntervalDefault, true, func(ctx context.Context) error {
			return c.Admins.Refresh(ctx)
		})
	}

	if c.metrics != nil {
		c.Tasks.Register("metricsFlush", metricsFlushIntervalDefault, true, func(ctx context.Context) error {
			return c.flushMetrics(ctx)
		})
	}
}

// flushMetrics appends one row per rule kind plus one row per polling task
// to the metrics sink. Counters are cumulative; the sink's consumers
// difference adjacent samples.
func (c *Controller) flushMetrics(ctx context.Context) error {
	now := time.Now()
	stats := c.Logwatch.Stats()

	for kind, count := range stats.CountByKind() {
		sample := sink.RuleMatchSample{
			ServerID:   c.ID.String(),
			Kind:       string(kind),
			Count:      count,
			Unmatched:  stats.LinesUnmatched,
			Dropped:    stats.LinesDropped,
			AvgLatency: stats.AverageMatchLatency(),
			ObservedAt: now,
		}
		if err := c.metrics.WriteRuleStats(ctx, sample); err != nil {
			return fmt.Errorf("metricsFlush task: %w", err)
		}
	}

	for _, name := range []string{"playerList", "squadList", "layerInfo", "serverInfo", "adminList"} {
		taskStats, ok := c.Tasks.TaskStats(name)
		if !ok {
			continue
		}
		sample := sink.TaskStatSample{
			ServerID:   c.ID.String(),
			TaskName:   name,
			Runs:       taskStats.Runs,
			Errors:     taskStats.Errors,
			Skipped:    taskStats.Skipped,
			LastRunAt:  taskStats.LastRun,
			ObservedAt: now,
		}
		if err := c.metrics.WriteTaskStats(ctx, sample); err != nil {
			return fmt.Errorf("metricsFlush task: %w", err)
		}
	}
	return nil
}

// Start transitions Created -> Starting -> Running, bringing up the RCON
// connection, the log-watching pipeline, and the scheduler one after
// another. A failure to connect RCON or to start log-watching moves the
// controller to the error phase via fail and is returned. The services run
// under a context derived from ctx, which Stop cancels.
func (c *Controller) Start(ctx context.Context) error {
	if c.Phase() != PhaseCreated {
		return fmt.Errorf("controller %q: Start called in phase %s", c.Name, c.Phase())
	}
	c.setPhase(PhaseStarting)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	group, gctx := errgroup.WithContext(runCtx)
	c.group = group

	if err := c.RCON.Connect(gctx); err != nil {
		cancel()
		return c.fail(fmt.Errorf("controller %q: rcon connect: %w", c.Name, err))
	}

	if err := c.Logwatch.Start(gctx); err != nil {
		cancel()
		return c.fail(fmt.Errorf("controller %q: logwatch start: %w", c.Name, err))
	}

	c.Tasks.StartAll(gctx)

	group.Go(func() error {
		<-gctx.Done()
		return nil
	})

	c.setPhase(PhaseRunning)
	return nil
}

// Stop transitions Running -> Stopping -> Stopped, tearing down the
// scheduler, the log-watching pipeline, and the RCON connection in that
// order, then waits for the startup errgroup to unwind.
func (c *Controller) Stop() error {
	if c.Phase() != PhaseRunning {
		return fmt.Errorf("controller %q: Stop called in phase %s", c.Name, c.Phase())
	}
	c.setPhase(PhaseStopping)

	c.Tasks.Stop()
	c.Logwatch.Stop()
	c.RCON.Disconnect()

	if c.cancel != nil {
		c.cancel()
	}
	err := c.group.Wait()

	c.setPhase(PhaseStopped)
	return err
}
