package state

import (
	"testing"

	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/rcon"
)

func squadRow(team, squad int, name string, size int, creatorEOS string) rcon.SquadInfo {
	return rcon.SquadInfo{
		TeamID:       team,
		SquadID:      squad,
		Name:         name,
		Size:         size,
		CreatorName:  "Creator-" + name,
		CreatorEOSID: creatorEOS,
	}
}

func TestSquadServiceLifecycle(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewSquadService(pub)

	svc.UpdateFromRCON([]rcon.SquadInfo{
		squadRow(1, 1, "Alpha", 4, "aaaa0000000000000000000000000001"),
	})
	if got := pub.kinds(); len(got) != 1 || got[0] != events.TypeSquadAdded {
		t.Fatalf("kinds = %v, want one SQUAD_ADDED", got)
	}

	pub.reset()
	svc.UpdateFromRCON([]rcon.SquadInfo{
		squadRow(1, 1, "Alpha", 6, "aaaa0000000000000000000000000001"),
	})
	if got := pub.kinds(); len(got) != 1 || got[0] != events.TypeSquadUpdated {
		t.Fatalf("kinds = %v, want one SQUAD_UPDATED", got)
	}
	sq, ok := svc.Get(1, 1)
	if !ok || sq.Size != 6 {
		t.Fatalf("squad = %+v, want size 6", sq)
	}

	pub.reset()
	svc.UpdateFromRCON(nil)
	if got := pub.kinds(); len(got) != 1 || got[0] != events.TypeSquadDisbanded {
		t.Fatalf("kinds = %v, want one SQUAD_DISBANDED", got)
	}
	if svc.Count() != 0 {
		t.Fatalf("Count = %d, want 0", svc.Count())
	}
}

func TestSquadIDsAreScopedToTeam(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewSquadService(pub)

	svc.UpdateFromRCON([]rcon.SquadInfo{
		squadRow(1, 1, "Alpha", 4, "aaaa0000000000000000000000000001"),
		squadRow(2, 1, "Bravo", 5, "bbbb0000000000000000000000000002"),
	})

	if svc.Count() != 2 {
		t.Fatalf("Count = %d, want 2 (same squad id, different teams)", svc.Count())
	}
	a, _ := svc.Get(1, 1)
	b, _ := svc.Get(2, 1)
	if a.Name != "Alpha" || b.Name != "Bravo" {
		t.Fatalf("squads = %+v / %+v", a, b)
	}
}

func TestSquadCreatorIndexFollowsUpdates(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewSquadService(pub)

	svc.UpdateFromRCON([]rcon.SquadInfo{
		squadRow(1, 1, "Alpha", 4, "aaaa0000000000000000000000000001"),
	})
	sq, ok := svc.ByCreator("aaaa0000000000000000000000000001")
	if !ok || sq.Name != "Alpha" {
		t.Fatalf("ByCreator = %+v, %v", sq, ok)
	}

	svc.UpdateFromRCON(nil)
	if _, ok := svc.ByCreator("aaaa0000000000000000000000000001"); ok {
		t.Fatal("expected creator index entry removed with disbanded squad")
	}
}
