// Package plugin implements the facade handed to plugin code (event
// subscription, a command executor, a read-only state view, and a scoped
// logger) plus the push bridge that forwards bus events to external
// consumers over HTTP/WebSocket. Grounded on the reference pack's
// internal/plugin_sdk/interfaces.go (PluginSDK/BaseAPI/EventHandlingAPI/
// RconAPI capability split).
package plugin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/eventbus"
	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/logger"
	"go.squadwatch.dev/coreplane/internal/rcon"
	"go.squadwatch.dev/coreplane/internal/state"
)

// Commander is the subset of *rcon.Engine a plugin may call: the action
// commands only, nothing lower-level (no raw Execute, no read queries, no
// connection lifecycle control).
type Commander interface {
	Warn(ctx context.Context, target rcon.Target, message string) (string, error)
	Kick(ctx context.Context, target rcon.Target, reason string) (string, error)
	Ban(ctx context.Context, target rcon.Target, minutes int, reason string) (string, error)
	Broadcast(ctx context.Context, message string) (string, error)
	ChangeMap(ctx context.Context, layer string) (string, error)
	SetNextMap(ctx context.Context, layer string) (string, error)
	ForceTeamChange(ctx context.Context, target rcon.Target) (string, error)
	DisbandSquad(ctx context.Context, teamID, squadID int) (string, error)
	EndMatch(ctx context.Context) (string, error)
	RestartMatch(ctx context.Context) (string, error)
}

var _ Commander = (*rcon.Engine)(nil)

// StateView is the read-only projection a plugin sees over the three state
// services: get-by-id, count, iteration, team filters. It exposes no update
// methods — those belong to the scheduler's tasks alone.
type StateView struct {
	players *state.PlayerService
	squads  *state.SquadService
	layers  *state.LayerService
}

func newStateView(players *state.PlayerService, squads *state.SquadService, layers *state.LayerService) StateView {
	return StateView{players: players, squads: squads, layers: layers}
}

func (v StateView) PlayerByEOS(eosID string) (state.Player, bool) { return v.players.ByEOS(eosID) }
func (v StateView) PlayerByPlatform(platformID string) (state.Player, bool) {
	return v.players.ByPlatform(platformID)
}
func (v StateView) PlayersByName(partial string) []state.Player { return v.players.ByName(partial) }
func (v StateView) PlayerCount() int                             { return v.players.Count() }
func (v StateView) PlayersOnTeam(teamID int) []state.Player      { return v.players.Team(teamID) }
func (v StateView) AllPlayers() []state.Player                   { return v.players.All() }

func (v StateView) Squad(teamID, squadID int) (state.Squad, bool) { return v.squads.Get(teamID, squadID) }
func (v StateView) SquadByCreator(eosID string) (state.Squad, bool) {
	return v.squads.ByCreator(eosID)
}
func (v StateView) SquadsOnTeam(teamID int) []state.Squad { return v.squads.Team(teamID) }
func (v StateView) SquadCount() int                        { return v.squads.Count() }

func (v StateView) CurrentLayer() (state.Layer, bool) { return v.layers.Current() }
func (v StateView) NextLayer() (state.Layer, bool)    { return v.layers.Next() }
func (v StateView) LayerHistory() []state.Layer       { return v.layers.History() }

// Context is the facade handed to one plugin instance: event subscription
// with an explicit lifetime handle, a command executor, a read-only state
// view, and a scoped logger.
type Context struct {
	InstanceID uuid.UUID

	bus   *eventbus.Bus
	rcon  Commander
	state StateView
	log   *logger.Scoped
}

// NewContext constructs a plugin Context bound to one component name.
func NewContext(bus *eventbus.Bus, cmd Commander, players *state.PlayerService, squads *state.SquadService, layers *state.LayerService, base zerolog.Logger, component string, verbosity logger.Verbosity) *Context {
	return &Context{
		InstanceID: uuid.New(),
		bus:        bus,
		rcon:       cmd,
		state:      newStateView(players, squads, layers),
		log:        logger.NewScoped(base, component, verbosity),
	}
}

// Subscribe registers handler for kind, returning a cancellable handle.
func (c *Context) Subscribe(kind events.Type, handler eventbus.Handler) (eventbus.Subscription, error) {
	return c.bus.Subscribe(kind, handler)
}

// Once registers a single-shot handler for kind.
func (c *Context) Once(kind events.Type, handler eventbus.Handler) (eventbus.Subscription, error) {
	return c.bus.Once(kind, handler)
}

// Commands returns the command executor capability.
func (c *Context) Commands() Commander { return c.rcon }

// State returns the read-only state view capability.
func (c *Context) State() StateView { return c.state }

// Log returns the scoped logger capability.
func (c *Context) Log() *logger.Scoped { return c.log }

// waiter is a single-shot wait-for-event helper.
type waiter struct {
	result chan events.Envelope
}

// WaitFor blocks until an event of kind is published or timeout elapses.
func (c *Context) WaitFor(kind events.Type, timeout time.Duration) (events.Envelope, bool) {
	w := &waiter{result: make(chan events.Envelope, 1)}
	sub, err := c.bus.Once(kind, func(e events.Envelope) {
		select {
		case w.result <- e:
		default:
		}
	})
	if err != nil {
		return events.Envelope{}, false
	}
	defer sub.Cancel()

	select {
	case e := <-w.result:
		return e, true
	case <-time.After(timeout):
		return events.Envelope{}, false
	}
}
