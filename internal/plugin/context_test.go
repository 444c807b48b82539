package plugin

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/eventbus"
	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/logger"
	"go.squadwatch.dev/coreplane/internal/rcon"
	"go.squadwatch.dev/coreplane/internal/state"
)

type stubCommander struct{}

func (stubCommander) Warn(ctx context.Context, target rcon.Target, message string) (string, error) {
	return "", nil
}
func (stubCommander) Kick(ctx context.Context, target rcon.Target, reason string) (string, error) {
	return "", nil
}
func (stubCommander) Ban(ctx context.Context, target rcon.Target, minutes int, reason string) (string, error) {
	return "", nil
}
func (stubCommander) Broadcast(ctx context.Context, message string) (string, error) { return "", nil }
func (stubCommander) ChangeMap(ctx context.Context, layer string) (string, error)   { return "", nil }
func (stubCommander) SetNextMap(ctx context.Context, layer string) (string, error)  { return "", nil }
func (stubCommander) ForceTeamChange(ctx context.Context, target rcon.Target) (string, error) {
	return "", nil
}
func (stubCommander) DisbandSquad(ctx context.Context, teamID, squadID int) (string, error) {
	return "", nil
}
func (stubCommander) EndMatch(ctx context.Context) (string, error)     { return "", nil }
func (stubCommander) RestartMatch(ctx context.Context) (string, error) { return "", nil }

func newTestContext() *Context {
	bus := eventbus.New(eventbus.Config{}, zerolog.Nop())
	players := state.NewPlayerService(bus)
	squads := state.NewSquadService(bus)
	layers := state.NewLayerService(bus)
	return NewContext(bus, stubCommander{}, players, squads, layers, zerolog.Nop(), "test-plugin", logger.VerbosityInfo)
}

func TestContextStateViewReflectsUpdates(t *testing.T) {
	c := newTestContext()

	if got := c.State().PlayerCount(); got != 0 {
		t.Fatalf("PlayerCount() = %d, want 0", got)
	}

	c.state.players.UpdateFromRCON([]rcon.PlayerInfo{
		{SessionID: 1, EOSID: "aaaa0000000000000000000000000001", Name: "Alpha"},
	})
	if got := c.State().PlayerCount(); got != 1 {
		t.Fatalf("PlayerCount() after update = %d, want 1", got)
	}
}

func TestContextWaitForTimesOutWithoutPublish(t *testing.T) {
	c := newTestContext()

	_, ok := c.WaitFor(events.TypeRoundEnded, 20*time.Millisecond)
	if ok {
		t.Fatal("expected WaitFor to time out")
	}
}

func TestContextWaitForResolvesOnPublish(t *testing.T) {
	c := newTestContext()

	done := make(chan struct{})
	go func() {
		defer close(done)
		envelope, ok := c.WaitFor(events.TypeRoundEnded, time.Second)
		if !ok {
			t.Error("expected WaitFor to resolve")
			return
		}
		if envelope.Type != events.TypeRoundEnded {
			t.Errorf("envelope.Type = %q, want %q", envelope.Type, events.TypeRoundEnded)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	c.bus.Publish(events.RoundEndedData{Raw: events.Raw{Time: time.Now()}})
	<-done
}
