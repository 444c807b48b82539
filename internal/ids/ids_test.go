package ids

import "testing"

func TestNewEOSID(t *testing.T) {
	valid := "deadbeef00000000000000000000beef"
	id, err := NewEOSID(valid)
	if err != nil {
		t.Fatalf("NewEOSID(%q): %v", valid, err)
	}
	if id.String() != valid || id.IsZero() {
		t.Fatalf("id = %q, IsZero = %v", id.String(), id.IsZero())
	}

	for _, bad := range []string{
		"",
		"DEADBEEF00000000000000000000BEEF", // upper case
		"deadbeef",                         // too short
		"deadbeef00000000000000000000beef0", // too long
		"zzzzbeef00000000000000000000beef",  // non-hex
	} {
		if _, err := NewEOSID(bad); err == nil {
			t.Fatalf("NewEOSID(%q) should fail", bad)
		}
	}
}

func TestNewPlatformID(t *testing.T) {
	id, err := NewPlatformID("76561198000000001")
	if err != nil {
		t.Fatalf("NewPlatformID: %v", err)
	}
	if id.String() != "76561198000000001" || id.IsZero() {
		t.Fatalf("id = %q, IsZero = %v", id.String(), id.IsZero())
	}

	for _, bad := range []string{"", "1234", "7656119800000000a"} {
		if _, err := NewPlatformID(bad); err == nil {
			t.Fatalf("NewPlatformID(%q) should fail", bad)
		}
	}
}

func TestNewSessionID(t *testing.T) {
	for _, ok := range []int{0, 50, 100} {
		if _, err := NewSessionID(ok); err != nil {
			t.Fatalf("NewSessionID(%d): %v", ok, err)
		}
	}
	for _, bad := range []int{-1, 101} {
		if _, err := NewSessionID(bad); err == nil {
			t.Fatalf("NewSessionID(%d) should fail", bad)
		}
	}
}

func TestNewTeamAndSquadID(t *testing.T) {
	for _, ok := range []int{1, 2} {
		if _, err := NewTeamID(ok); err != nil {
			t.Fatalf("NewTeamID(%d): %v", ok, err)
		}
	}
	for _, bad := range []int{0, 3, -1} {
		if _, err := NewTeamID(bad); err == nil {
			t.Fatalf("NewTeamID(%d) should fail", bad)
		}
	}

	if _, err := NewSquadID(1); err != nil {
		t.Fatalf("NewSquadID(1): %v", err)
	}
	if _, err := NewSquadID(0); err == nil {
		t.Fatal("NewSquadID(0) should fail")
	}
}

func TestNewControllerID(t *testing.T) {
	id, err := NewControllerID("BP_PlayerController_C_2146085496")
	if err != nil {
		t.Fatalf("NewControllerID: %v", err)
	}
	if id.String() != "BP_PlayerController_C_2146085496" {
		t.Fatalf("id = %q", id.String())
	}

	for _, bad := range []string{"", "BP_PlayerController_C_", "SomethingElse_123"} {
		if _, err := NewControllerID(bad); err == nil {
			t.Fatalf("NewControllerID(%q) should fail", bad)
		}
	}
}

func TestParseControllerSuffix(t *testing.T) {
	suffix, ok := ParseControllerSuffix("BP_PlayerController_C_2146085496")
	if !ok || suffix != "2146085496" {
		t.Fatalf("suffix = %q, %v", suffix, ok)
	}
	if _, ok := ParseControllerSuffix("nodigits"); ok {
		t.Fatal("expected no suffix for id without underscore")
	}
}
