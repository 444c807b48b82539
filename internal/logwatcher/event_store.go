package logwatcher

import (
	"container/list"
	"time"
)

// DamageRecord is the last-damage entry kept per victim name.
type DamageRecord struct {
	ChainID            uint64
	Time               time.Time
	Damage             float64
	AttackerName       string
	AttackerEOS        string
	AttackerPlatform   string
	AttackerController string
	Weapon             string
}

// victimSession is the session-by-victim-name slot: the last damage and, once
// a wound has been recorded, the last wound too (consulted by the died
// rule).
type victimSession struct {
	lastDamage *DamageRecord
	lastWound  *DamageRecord
}

// RoundResult accumulates winner/loser/layer across a round until the
// round-ended rule consumes it.
type RoundResult struct {
	HasWinner bool
	Winner    RoundSide
	HasLoser  bool
	Loser     RoundSide
	Layer     string
}

// RoundSide is one team's declared outcome.
type RoundSide struct {
	Team       string
	Faction    string
	Subfaction string
	Tickets    string
}

// Identity is the cached mapping the possession/connection rules populate
// and the combat rules read back from.
type Identity struct {
	EOSID      string
	PlatformID string
	Name       string
	Controller string
}

// defaultIdentityCacheSize bounds the LRU; grounded on the reference pack's
// Valkey-backed store using a 1 hour TTL for the equivalent join-request
// entries, adapted here to an in-process LRU since the store is
// single-threaded from the rule loop's perspective and never touched from
// other tasks.
const defaultIdentityCacheSize = 2048

// EventStore holds the three correlation slots the rule engine reads and
// writes. It is intentionally free of its own locking: the single rule loop task
// owns it exclusively.
type EventStore struct {
	sessions map[string]*victimSession
	round    *RoundResult

	identityByEOS  map[string]*list.Element
	identityByName map[string]*list.Element
	identityOrder  *list.List
	identityCap    int
}

// NewEventStore constructs an empty store with the default identity cache
// size.
func NewEventStore() *EventStore {
	return &EventStore{
		sessions:       make(map[string]*victimSession),
		identityByEOS:  make(map[string]*list.Element),
		identityByName: make(map[string]*list.Element),
		identityOrder:  list.New(),
		identityCap:    defaultIdentityCacheSize,
	}
}

// -- session-by-victim-name ------------------------------------------------

func (s *EventStore) StoreDamage(victimName string, rec DamageRecord) {
	sess, ok := s.sessions[victimName]
	if !ok {
		sess = &victimSession{}
		s.sessions[victimName] = sess
	}
	sess.lastDamage = &rec
}

func (s *EventStore) GetDamage(victimName string) (DamageRecord, bool) {
	sess, ok := s.sessions[victimName]
	if !ok || sess.lastDamage == nil {
		return DamageRecord{}, false
	}
	return *sess.lastDamage, true
}

func (s *EventStore) StoreWound(victimName string, rec DamageRecord) {
	sess, ok := s.sessions[victimName]
	if !ok {
		sess = &victimSession{}
		s.sessions[victimName] = sess
	}
	sess.lastWound = &rec
}

func (s *EventStore) GetWound(victimName string) (DamageRecord, bool) {
	sess, ok := s.sessions[victimName]
	if !ok || sess.lastWound == nil {
		return DamageRecord{}, false
	}
	return *sess.lastWound, true
}

// ClearSession removes a victim's correlation entry, called on revive or on
// a death emission for that victim.
func (s *EventStore) ClearSession(victimName string) {
	delete(s.sessions, victimName)
}

// -- round result -----------------------------------------------------------

func (s *EventStore) ensureRound() *RoundResult {
	if s.round == nil {
		s.round = &RoundResult{}
	}
	return s.round
}

// StoreRoundWinner records a winner declaration. A second winner before the
// round ends means a draw: the winner slot is cleared while the layer (and
// any recorded loser) is kept.
func (s *EventStore) StoreRoundWinner(side RoundSide, layer string) {
	r := s.ensureRound()
	if r.HasWinner {
		r.HasWinner = false
		r.Winner = RoundSide{}
		r.Layer = layer
		return
	}
	r.HasWinner = true
	r.Winner = side
	r.Layer = layer
}

func (s *EventStore) StoreRoundLoser(side RoundSide, layer string) {
	r := s.ensureRound()
	r.HasLoser = true
	r.Loser = side
	r.Layer = layer
}

// GetRoundResult returns the current accumulator without consuming it.
func (s *EventStore) GetRoundResult() (RoundResult, bool) {
	if s.round == nil {
		return RoundResult{}, false
	}
	return *s.round, true
}

// ConsumeRoundResult returns and clears the accumulator, called by the
// round-ended rule.
func (s *EventStore) ConsumeRoundResult() (RoundResult, bool) {
	if s.round == nil {
		return RoundResult{}, false
	}
	r := *s.round
	s.round = nil
	return r, true
}

// -- player identity cache --------------------------------------------------

// PutIdentity inserts or refreshes an identity, evicting the least recently
// used entry once the cache is full.
func (s *EventStore) PutIdentity(id Identity) {
	if el, ok := s.identityByEOS[id.EOSID]; ok {
		el.Value = id
		s.identityOrder.MoveToFront(el)
		s.reindex(el, id)
		return
	}

	el := s.identityOrder.PushFront(id)
	if id.EOSID != "" {
		s.identityByEOS[id.EOSID] = el
	}
	if id.Name != "" {
		s.identityByName[id.Name] = el
	}

	if s.identityOrder.Len() > s.identityCap {
		oldest := s.identityOrder.Back()
		if oldest != nil {
			s.evict(oldest)
		}
	}
}

func (s *EventStore) reindex(el *list.Element, id Identity) {
	for k, v := range s.identityByName {
		if v == el && k != id.Name {
			delete(s.identityByName, k)
		}
	}
	if id.Name != "" {
		s.identityByName[id.Name] = el
	}
}

func (s *EventStore) evict(el *list.Element) {
	id := el.Value.(Identity)
	delete(s.identityByEOS, id.EOSID)
	delete(s.identityByName, id.Name)
	s.identityOrder.Remove(el)
}

func (s *EventStore) GetIdentityByEOS(eosID string) (Identity, bool) {
	el, ok := s.identityByEOS[eosID]
	if !ok {
		return Identity{}, false
	}
	s.identityOrder.MoveToFront(el)
	return el.Value.(Identity), true
}

func (s *EventStore) GetIdentityByName(name string) (Identity, bool) {
	el, ok := s.identityByName[name]
	if !ok {
		return Identity{}, false
	}
	s.identityOrder.MoveToFront(el)
	return el.Value.(Identity), true
}

func (s *EventStore) GetIdentityByController(controller string) (Identity, bool) {
	for el := s.identityOrder.Front(); el != nil; el = el.Next() {
		id := el.Value.(Identity)
		if id.Controller == controller {
			return id, true
		}
	}
	return Identity{}, false
}
