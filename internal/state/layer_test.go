package state

import (
	"fmt"
	"testing"

	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/rcon"
)

func TestParseLayerName(t *testing.T) {
	cases := []struct {
		name     string
		level    string
		gameMode string
		version  string
		night    bool
	}{
		{"Narva_RAAS_v1", "Narva", "RAAS", "v1", false},
		{"Yehorivka_Night_Skirmish_v2", "Yehorivka", "Skirmish", "v2", true},
		{"Gorodok_Invasion_v3", "Gorodok", "Invasion", "v3", false},
	}
	for _, c := range cases {
		l := parseLayerName(c.name)
		if l.Name != c.name {
			t.Fatalf("%s: Name = %q", c.name, l.Name)
		}
		if l.Level.String != c.level || l.GameMode.String != c.gameMode || l.Version.String != c.version || l.IsNight != c.night {
			t.Fatalf("%s: parsed = %+v", c.name, l)
		}
	}
}

func TestParseLayerNameUnrecognizedKeepsOnlyName(t *testing.T) {
	l := parseLayerName("JensensRange")
	if l.Name != "JensensRange" {
		t.Fatalf("Name = %q", l.Name)
	}
	if l.Level.Valid || l.GameMode.Valid || l.Version.Valid {
		t.Fatalf("expected null fields for unrecognized name, got %+v", l)
	}
}

func TestLayerServiceEmitsChangeAndKeepsHistory(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewLayerService(pub)

	svc.UpdateCurrent(rcon.MapInfo{Level: "Narva", Layer: "Narva_RAAS_v1"})
	if got := pub.kinds(); len(got) != 1 || got[0] != events.TypeLayerChanged {
		t.Fatalf("kinds = %v, want one LAYER_CHANGED", got)
	}
	first := pub.published[0].(events.LayerChangedData)
	if first.Previous != "" || first.Current != "Narva_RAAS_v1" {
		t.Fatalf("first change = %+v", first)
	}

	pub.reset()
	// Same layer again: no change.
	svc.UpdateCurrent(rcon.MapInfo{Level: "Narva", Layer: "Narva_RAAS_v1"})
	if len(pub.published) != 0 {
		t.Fatalf("unchanged layer produced %v", pub.kinds())
	}

	svc.UpdateCurrent(rcon.MapInfo{Level: "Gorodok", Layer: "Gorodok_Invasion_v3"})
	change := pub.published[0].(events.LayerChangedData)
	if change.Previous != "Narva_RAAS_v1" || change.Current != "Gorodok_Invasion_v3" {
		t.Fatalf("change = %+v", change)
	}

	hist := svc.History()
	if len(hist) != 1 || hist[0].Name != "Narva_RAAS_v1" {
		t.Fatalf("history = %+v, want [Narva_RAAS_v1]", hist)
	}
}

func TestLayerHistoryIsBoundedMostRecentFirst(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewLayerService(pub)
	svc.maxHist = 3

	for i := 0; i < 6; i++ {
		svc.UpdateCurrent(rcon.MapInfo{Layer: fmt.Sprintf("Narva_RAAS_v%d", i+1)})
	}

	hist := svc.History()
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	want := []string{"Narva_RAAS_v5", "Narva_RAAS_v4", "Narva_RAAS_v3"}
	for i, name := range want {
		if hist[i].Name != name {
			t.Fatalf("history = %v, want %v first", hist, want)
		}
	}
}

func TestLayerServiceNextClearedWhenVotePending(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewLayerService(pub)

	svc.UpdateNext(rcon.MapInfo{Level: "Narva", Layer: "Narva_AAS_v2"})
	if next, ok := svc.Next(); !ok || next.Name != "Narva_AAS_v2" {
		t.Fatalf("next = %+v, %v", next, ok)
	}

	// parsers.go normalizes "To be voted" to an empty layer; an empty level
	// too means nothing is queued.
	svc.UpdateNext(rcon.MapInfo{})
	if _, ok := svc.Next(); ok {
		t.Fatal("expected next layer cleared")
	}
}
