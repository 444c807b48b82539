package logwatcher

import "testing"

func TestEventStoreSessionRoundTrip(t *testing.T) {
	s := NewEventStore()
	s.StoreDamage("Alpha", DamageRecord{AttackerEOS: "eos1", Damage: 25})

	rec, ok := s.GetDamage("Alpha")
	if !ok || rec.AttackerEOS != "eos1" {
		t.Fatalf("GetDamage = %+v, %v", rec, ok)
	}

	s.ClearSession("Alpha")
	if _, ok := s.GetDamage("Alpha"); ok {
		t.Fatal("expected session cleared")
	}
}

func TestEventStoreRoundResultAccumulatesAndConsumes(t *testing.T) {
	s := NewEventStore()
	s.StoreRoundWinner(RoundSide{Team: "1", Faction: "USA"}, "Narva_RAAS_v1")
	s.StoreRoundLoser(RoundSide{Team: "2", Faction: "RUS"}, "Narva_RAAS_v1")

	result, ok := s.GetRoundResult()
	if !ok || !result.HasWinner || !result.HasLoser || result.Layer != "Narva_RAAS_v1" {
		t.Fatalf("result = %+v, %v", result, ok)
	}

	consumed, ok := s.ConsumeRoundResult()
	if !ok || consumed.Winner.Team != "1" {
		t.Fatalf("consumed = %+v, %v", consumed, ok)
	}

	if _, ok := s.GetRoundResult(); ok {
		t.Fatal("expected round result cleared after consume")
	}
}

func TestEventStoreIdentityCacheLookupsAndEviction(t *testing.T) {
	s := NewEventStore()
	s.identityCap = 2

	s.PutIdentity(Identity{EOSID: "eos1", Name: "Alpha", Controller: "c1"})
	s.PutIdentity(Identity{EOSID: "eos2", Name: "Bravo", Controller: "c2"})

	if _, ok := s.GetIdentityByEOS("eos1"); !ok {
		t.Fatal("expected eos1 present")
	}
	if _, ok := s.GetIdentityByName("Bravo"); !ok {
		t.Fatal("expected Bravo present")
	}
	if _, ok := s.GetIdentityByController("c1"); !ok {
		t.Fatal("expected controller c1 present")
	}

	// The Bravo lookup above made eos2 the most recently used; eos1 is now
	// the least recently used and is evicted by the third insert.
	s.PutIdentity(Identity{EOSID: "eos3", Name: "Charlie", Controller: "c3"})
	if _, ok := s.GetIdentityByEOS("eos1"); ok {
		t.Fatal("expected eos1 evicted")
	}
	if _, ok := s.GetIdentityByEOS("eos2"); !ok {
		t.Fatal("expected eos2 still present (recently used)")
	}
}
