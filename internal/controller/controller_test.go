package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestAdminSetRefreshParsesAndReplacesRoster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Admins.cfg")
	contents := "// comment\nAdmin=76561198000000001:admin\n\nAdmin=76561198000000002:moderator\nGroup=admin:manageserver\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	set := NewAdminSet([]string{path}, zerolog.Nop())
	if err := set.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if set.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", set.Count())
	}
	entry, ok := set.IsAdmin("76561198000000001")
	if !ok || entry.Role != "admin" {
		t.Fatalf("IsAdmin(76561198000000001) = %+v, %v", entry, ok)
	}
	if _, ok := set.IsAdmin("76561198099999999"); ok {
		t.Fatal("expected unknown platform id to not be an admin")
	}
}

func TestAdminSetRefreshSkipsUnreadableSource(t *testing.T) {
	set := NewAdminSet([]string{"/nonexistent/Admins.cfg"}, zerolog.Nop())
	if err := set.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh should tolerate an unreadable source, got %v", err)
	}
	if set.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", set.Count())
	}
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseCreated:  "created",
		PhaseRunning:  "running",
		PhaseStopped:  "stopped",
		PhaseError:    "error",
		Phase(99):     "unknown",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Fatalf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
