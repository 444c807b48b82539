// Package ids defines the branded identifier types shared across the
// control plane. Every type here is validated once at construction and
// opaque thereafter; callers never format or parse the underlying string
// or int again.
package ids

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/leighmacdonald/steamid/v3/steamid"
)

var (
	eosPattern        = regexp.MustCompile(`^[0-9a-f]{32}$`)
	controllerPattern = regexp.MustCompile(`^BP_PlayerController_C_\d+$`)
)

// EOSID is a player's Epic Online Services id: 32 lower-case hex characters,
// the primary key for a player and never mutated once observed.
type EOSID struct {
	value string
}

// NewEOSID validates and wraps a raw EOS id string.
func NewEOSID(raw string) (EOSID, error) {
	if err := validation.Validate(raw, validation.Required, validation.Match(eosPattern)); err != nil {
		return EOSID{}, fmt.Errorf("eos id %q: %w", raw, err)
	}
	return EOSID{value: raw}, nil
}

func (e EOSID) String() string { return e.value }

// IsZero reports whether this is the unconstructed zero value.
func (e EOSID) IsZero() bool { return e.value == "" }

// PlatformID is a platform (Steam64) identifier. Optional on a Player;
// absent for console players.
type PlatformID struct {
	value steamid.SID64
}

// NewPlatformID validates a 17-digit decimal steam64 id.
func NewPlatformID(raw string) (PlatformID, error) {
	if len(raw) != 17 {
		return PlatformID{}, fmt.Errorf("platform id %q: must be 17 decimal digits", raw)
	}
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return PlatformID{}, fmt.Errorf("platform id %q: not numeric: %w", raw, err)
	}
	sid := steamid.New(raw)
	if !sid.Valid() {
		return PlatformID{}, fmt.Errorf("platform id %q: not a valid steam64 id", raw)
	}
	return PlatformID{value: sid}, nil
}

func (p PlatformID) String() string { return p.value.String() }

// IsZero reports whether this is the unconstructed zero value.
func (p PlatformID) IsZero() bool { return !p.value.Valid() }

// SessionID is the server-assigned per-connection player index, 0-100.
// Not stable across reconnects.
type SessionID struct {
	value int
}

// NewSessionID validates the 0-100 range.
func NewSessionID(raw int) (SessionID, error) {
	if raw < 0 || raw > 100 {
		return SessionID{}, fmt.Errorf("session id %d: out of range 0-100", raw)
	}
	return SessionID{value: raw}, nil
}

func (s SessionID) Int() int { return s.value }

// TeamID is either 1 or 2.
type TeamID struct {
	value int
}

// NewTeamID validates that raw is 1 or 2.
func NewTeamID(raw int) (TeamID, error) {
	if raw != 1 && raw != 2 {
		return TeamID{}, fmt.Errorf("team id %d: must be 1 or 2", raw)
	}
	return TeamID{value: raw}, nil
}

func (t TeamID) Int() int { return t.value }

// SquadID is a positive integer, unique only within a team.
type SquadID struct {
	value int
}

// NewSquadID validates that raw is a positive integer.
func NewSquadID(raw int) (SquadID, error) {
	if raw <= 0 {
		return SquadID{}, fmt.Errorf("squad id %d: must be positive", raw)
	}
	return SquadID{value: raw}, nil
}

func (s SquadID) Int() int { return s.value }

// ChainID ties together damage/wound/death/revive records for one in-game
// action; non-negative.
type ChainID struct {
	value uint64
}

// NewChainID validates a non-negative chain id.
func NewChainID(raw uint64) ChainID { return ChainID{value: raw} }

func (c ChainID) Uint64() uint64 { return c.value }

// ControllerID is the engine's per-pawn controller name,
// "BP_PlayerController_C_<digits>".
type ControllerID struct {
	value string
}

// NewControllerID validates the controller id prefix/shape.
func NewControllerID(raw string) (ControllerID, error) {
	if !controllerPattern.MatchString(raw) {
		return ControllerID{}, fmt.Errorf("controller id %q: unexpected shape", raw)
	}
	return ControllerID{value: raw}, nil
}

func (c ControllerID) String() string { return c.value }

// IsZero reports whether this is the unconstructed zero value.
func (c ControllerID) IsZero() bool { return c.value == "" }

// ParseControllerSuffix extracts the trailing digits of a controller id,
// e.g. for sorting or logging, without re-validating the whole id.
func ParseControllerSuffix(raw string) (string, bool) {
	idx := strings.LastIndex(raw, "_")
	if idx < 0 || idx == len(raw)-1 {
		return "", false
	}
	return raw[idx+1:], true
}
