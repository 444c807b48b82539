// Package state implements the Player, Squad and Layer state services.
// Each owns a private snapshot reconciled from RCON poll results and emits
// ordered semantic deltas to the event bus rather than raw before/after
// snapshots. Grounded on the reference pack's internal/squad-rcon/squad-rcon.go
// (Player/Squad/Team/Map domain shapes) and internal/player_tracker/player_tracker.go
// (the 30s RCON-poll-to-snapshot reconciliation loop this supersedes).
package state

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/cases"

	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/rcon"
)

// Player is the reconciled view of one connected player.
type Player struct {
	EOSID        string
	PlatformID   string
	SessionID    int
	Name         string
	TeamID       int
	HasTeam      bool
	SquadID      int
	HasSquad     bool
	IsLeader     bool
	Role         string
	ControllerID string
	NameSuffix   string
}

// Publisher is the subset of eventbus.Bus the state services depend on.
type Publisher interface {
	Publish(events.Data)
}

// PlayerService reconciles RCON ListPlayers polls into a snapshot keyed by
// EOS id, with secondary indices by platform id, session id, and
// case-insensitive partial name. Only the reconciliation goroutine (the
// scheduler's playerList task) ever calls UpdateFromRCON; other callers are
// read-only.
type PlayerService struct {
	mu   sync.RWMutex
	byEOS map[string]*Player
	bus  Publisher
}

// NewPlayerService constructs an empty PlayerService publishing deltas to bus.
func NewPlayerService(bus Publisher) *PlayerService {
	return &PlayerService{byEOS: make(map[string]*Player), bus: bus}
}

// UpdateFromRCON reconciles a fresh ListPlayers snapshot: per-player field
// deltas first (team→squad→role→leader for each player), then added
// players, then removed players. EOS id is the join key; session id alone never
// implies add/remove, since session ids get reassigned across reconnects
// and are not a stable identity.
func (s *PlayerService) UpdateFromRCON(fresh []rcon.PlayerInfo) {
	s.mu.Lock()

	var added []*Player
	seen := make(map[string]bool, len(fresh))
	var deltaEvents []events.Data

	for _, p := range fresh {
		if p.EOSID == "" {
			continue
		}
		seen[p.EOSID] = true

		existing, ok := s.byEOS[p.EOSID]
		if !ok {
			np := fromRCON(p)
			s.byEOS[p.EOSID] = &np
			added = append(added, &np)
			continue
		}

		deltaEvents = append(deltaEvents, diffPlayer(existing, p)...)
		applyRCON(existing, p)
	}

	var removed []*Player
	for eos, p := range s.byEOS {
		if !seen[eos] {
			removed = append(removed, p)
			delete(s.byEOS, eos)
		}
	}
	s.mu.Unlock()

	now := events.Raw{Time: time.Now()}
	for _, e := range deltaEvents {
		s.bus.Publish(e)
	}
	for _, p := range added {
		s.bus.Publish(events.PlayerAddedData{Raw: now, EOSID: p.EOSID})
	}
	for _, p := range removed {
		s.bus.Publish(events.PlayerRemovedData{Raw: now, EOSID: p.EOSID})
	}
}

func fromRCON(p rcon.PlayerInfo) Player {
	return Player{
		EOSID:      p.EOSID,
		PlatformID: p.PlatformID,
		SessionID:  p.SessionID,
		Name:       p.Name,
		TeamID:     p.TeamID,
		HasTeam:    p.HasTeam,
		SquadID:    p.SquadID,
		HasSquad:   p.HasSquad,
		IsLeader:   p.IsLeader,
		Role:       p.Role,
	}
}

func applyRCON(dst *Player, p rcon.PlayerInfo) {
	dst.PlatformID = p.PlatformID
	dst.SessionID = p.SessionID
	dst.Name = p.Name
	dst.TeamID = p.TeamID
	dst.HasTeam = p.HasTeam
	dst.SquadID = p.SquadID
	dst.HasSquad = p.HasSquad
	dst.IsLeader = p.IsLeader
	dst.Role = p.Role
}

// diffPlayer returns the ordered team/squad/role/leader deltas between the
// stored player and a fresh RCON row. Order is significant: a tick that
// flips both team and squad must emit both, team first.
func diffPlayer(existing *Player, fresh rcon.PlayerInfo) []events.Data {
	var out []events.Data
	now := events.Raw{Time: time.Now()}

	oldTeam, newTeam := teamString(existing.HasTeam, existing.TeamID), teamString(fresh.HasTeam, fresh.TeamID)
	if oldTeam != newTeam {
		out = append(out, events.TeamChangeData{FieldChangeData: events.FieldChangeData{
			Raw: now, EOSID: existing.EOSID, OldValue: oldTeam, NewValue: newTeam,
		}})
	}

	oldSquad, newSquad := squadString(existing.HasSquad, existing.SquadID), squadString(fresh.HasSquad, fresh.SquadID)
	if oldSquad != newSquad {
		out = append(out, events.SquadChangeData{FieldChangeData: events.FieldChangeData{
			Raw: now, EOSID: existing.EOSID, OldValue: oldSquad, NewValue: newSquad,
		}})
	}

	if existing.Role != fresh.Role {
		out = append(out, events.RoleChangeData{FieldChangeData: events.FieldChangeData{
			Raw: now, EOSID: existing.EOSID, OldValue: existing.Role, NewValue: fresh.Role,
		}})
	}

	if existing.IsLeader != fresh.IsLeader {
		out = append(out, events.LeaderChangeData{FieldChangeData: events.FieldChangeData{
			Raw: now, EOSID: existing.EOSID, OldValue: boolString(existing.IsLeader), NewValue: boolString(fresh.IsLeader),
		}})
	}

	return out
}

func teamString(has bool, v int) string {
	if !has {
		return ""
	}
	return strconv.Itoa(v)
}

func squadString(has bool, v int) string {
	if !has {
		return ""
	}
	return strconv.Itoa(v)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ByEOS returns a copy of the player with the given EOS id, if present.
func (s *PlayerService) ByEOS(eosID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byEOS[eosID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// ByPlatform scans for a player with the given platform id. O(n); the
// player count per server is small (≤100).
func (s *PlayerService) ByPlatform(platformID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byEOS {
		if p.PlatformID == platformID {
			return *p, true
		}
	}
	return Player{}, false
}

// BySession scans for a player with the given session id.
func (s *PlayerService) BySession(sessionID int) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byEOS {
		if p.SessionID == sessionID {
			return *p, true
		}
	}
	return Player{}, false
}

// ByName does a case-insensitive partial match against stored names,
// returning every match. Player names are arbitrary Unicode, so matching
// uses case folding rather than ASCII lowering.
func (s *PlayerService) ByName(partial string) []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fold := cases.Fold()
	needle := fold.String(partial)
	var out []Player
	for _, p := range s.byEOS {
		if strings.Contains(fold.String(p.Name), needle) {
			out = append(out, *p)
		}
	}
	return out
}

// Count returns the number of currently tracked players.
func (s *PlayerService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEOS)
}

// Team returns every player on the given team id.
func (s *PlayerService) Team(teamID int) []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Player
	for _, p := range s.byEOS {
		if p.HasTeam && p.TeamID == teamID {
			out = append(out, *p)
		}
	}
	return out
}

// All returns a snapshot copy of every tracked player.
func (s *PlayerService) All() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.MapToSlice(s.byEOS, func(_ string, p *Player) Player { return *p })
}
