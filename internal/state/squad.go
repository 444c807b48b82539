package state

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/rcon"
)

// squadKey identifies a squad uniquely: squad ids are only unique within a
// team.
type squadKey struct {
	TeamID  int
	SquadID int
}

// Squad is the reconciled view of one squad.
type Squad struct {
	TeamID          int
	SquadID         int
	Name            string
	Size            int
	Locked          bool
	CreatorName     string
	CreatorEOSID    string
	CreatorPlatform string
}

// SquadService reconciles RCON ListSquads polls into a snapshot keyed by
// (team id, squad id), with a creator-EOS-id index kept coherent across
// updates.
type SquadService struct {
	mu        sync.RWMutex
	byKey     map[squadKey]*Squad
	byCreator map[string]squadKey
	bus       Publisher
}

// NewSquadService constructs an empty SquadService publishing deltas to bus.
func NewSquadService(bus Publisher) *SquadService {
	return &SquadService{
		byKey:     make(map[squadKey]*Squad),
		byCreator: make(map[string]squadKey),
		bus:       bus,
	}
}

// UpdateFromRCON reconciles a fresh ListSquads snapshot: created squads
// first (in list order), then field-changed squads (updated), then
// disbanded squads absent from the fresh list.
func (s *SquadService) UpdateFromRCON(fresh []rcon.SquadInfo) {
	s.mu.Lock()

	var created, updated []Squad
	seen := make(map[squadKey]bool, len(fresh))

	for _, row := range fresh {
		key := squadKey{TeamID: row.TeamID, SquadID: row.SquadID}
		seen[key] = true

		existing, ok := s.byKey[key]
		if !ok {
			sq := fromRCONSquad(row)
			s.byKey[key] = &sq
			if sq.CreatorEOSID != "" {
				s.byCreator[sq.CreatorEOSID] = key
			}
			created = append(created, sq)
			continue
		}

		if squadChanged(existing, row) {
			if k, ok := s.byCreator[existing.CreatorEOSID]; ok && k == key && existing.CreatorEOSID != row.CreatorEOSID {
				delete(s.byCreator, existing.CreatorEOSID)
			}
			applyRCONSquad(existing, row)
			if existing.CreatorEOSID != "" {
				s.byCreator[existing.CreatorEOSID] = key
			}
			updated = append(updated, *existing)
		}
	}

	var disbanded []Squad
	for key, sq := range s.byKey {
		if !seen[key] {
			disbanded = append(disbanded, *sq)
			delete(s.byKey, key)
			if k, ok := s.byCreator[sq.CreatorEOSID]; ok && k == key {
				delete(s.byCreator, sq.CreatorEOSID)
			}
		}
	}
	s.mu.Unlock()

	now := events.Raw{Time: time.Now()}
	for _, sq := range created {
		s.bus.Publish(events.NewSquadAdded(now, sq.TeamID, sq.SquadID))
	}
	for _, sq := range updated {
		s.bus.Publish(events.NewSquadUpdated(now, sq.TeamID, sq.SquadID))
	}
	for _, sq := range disbanded {
		s.bus.Publish(events.NewSquadDisbanded(now, sq.TeamID, sq.SquadID))
	}
}

func fromRCONSquad(row rcon.SquadInfo) Squad {
	return Squad{
		TeamID:          row.TeamID,
		SquadID:         row.SquadID,
		Name:            row.Name,
		Size:            row.Size,
		Locked:          row.Locked,
		CreatorName:     row.CreatorName,
		CreatorEOSID:    row.CreatorEOSID,
		CreatorPlatform: row.CreatorPlatform,
	}
}

func applyRCONSquad(dst *Squad, row rcon.SquadInfo) {
	dst.Name = row.Name
	dst.Size = row.Size
	dst.Locked = row.Locked
	dst.CreatorName = row.CreatorName
	dst.CreatorEOSID = row.CreatorEOSID
	dst.CreatorPlatform = row.CreatorPlatform
}

func squadChanged(existing *Squad, row rcon.SquadInfo) bool {
	return existing.Name != row.Name ||
		existing.Size != row.Size ||
		existing.Locked != row.Locked ||
		existing.CreatorEOSID != row.CreatorEOSID
}

// Get returns the squad at (teamID, squadID), if present.
func (s *SquadService) Get(teamID, squadID int) (Squad, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sq, ok := s.byKey[squadKey{TeamID: teamID, SquadID: squadID}]
	if !ok {
		return Squad{}, false
	}
	return *sq, true
}

// ByCreator returns the squad created by the given EOS id, if any.
func (s *SquadService) ByCreator(eosID string) (Squad, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byCreator[eosID]
	if !ok {
		return Squad{}, false
	}
	sq := s.byKey[key]
	return *sq, true
}

// Team returns every squad on the given team.
func (s *SquadService) Team(teamID int) []Squad {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Squad
	for k, sq := range s.byKey {
		if k.TeamID == teamID {
			out = append(out, *sq)
		}
	}
	return out
}

// Count returns the number of tracked squads.
func (s *SquadService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// All returns a snapshot copy of every tracked squad.
func (s *SquadService) All() []Squad {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.MapToSlice(s.byKey, func(_ squadKey, sq *Squad) Squad { return *sq })
}
