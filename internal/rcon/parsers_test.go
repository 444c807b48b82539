package rcon

import (
	"testing"
	"time"

	"go.squadwatch.dev/coreplane/internal/events"
)

func TestParseListPlayers(t *testing.T) {
	body := "ID: 1 | Online IDs: EOS: deadbeef00000000000000000000beef steam: 76561198000000001 | Name: Alpha | Team ID: 1 | Squad ID: 2 | Is Leader: True | Role: Squad Leader\n" +
		"ID: 2 | Online IDs: EOS: cafebabe00000000000000000000feed steam: 76561198000000002 | Name: Bravo | Team ID: N/A | Squad ID: N/A | Is Leader: False | Role: Rifleman\n" +
		""

	players, err := ParseListPlayers(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(players) != 2 {
		t.Fatalf("len = %d, want 2", len(players))
	}
	if players[0].Name != "Alpha" || !players[0].HasTeam || players[0].TeamID != 1 || !players[0].HasSquad || players[0].SquadID != 2 || !players[0].IsLeader {
		t.Fatalf("players[0] = %+v", players[0])
	}
	if players[1].HasTeam || players[1].HasSquad {
		t.Fatalf("players[1] should have no team/squad: %+v", players[1])
	}
}

func TestParseListSquadsDiscardsUnknownTeam(t *testing.T) {
	body := "Team ID: 1 (British Army)\n" +
		"ID: 1 | Name: Alpha | Size: 6 | Locked: False | Creator Name: Cmdr | Creator Online IDs: EOS: deadbeef00000000000000000000beef steam: 76561198000000001\n" +
		"Team ID: 3 (Unknown)\n" +
		"ID: 9 | Name: Ghost | Size: 1 | Locked: True | Creator Name: Nobody | Creator Online IDs: EOS: 00000000000000000000000000000000 steam: 00000000000000000\n"

	squads, err := ParseListSquads(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(squads) != 1 {
		t.Fatalf("len = %d, want 1 (team-3 row discarded)", len(squads))
	}
	if squads[0].TeamID != 1 || squads[0].Name != "Alpha" {
		t.Fatalf("squads[0] = %+v", squads[0])
	}
}

func TestParseShowMapVotePendingIsAbsent(t *testing.T) {
	info, err := ParseShowMap("Next level is Narva, layer is To be voted")
	if err != nil {
		t.Fatal(err)
	}
	if info.Level != "Narva" || info.Layer != "" {
		t.Fatalf("info = %+v", info)
	}
}

func TestParseShowMapCurrent(t *testing.T) {
	info, err := ParseShowMap("Current level is Narva, layer is Narva_RAAS_v1")
	if err != nil {
		t.Fatal(err)
	}
	if info.Level != "Narva" || info.Layer != "Narva_RAAS_v1" {
		t.Fatalf("info = %+v", info)
	}
}

func TestParseChatFrameChatMessage(t *testing.T) {
	body := `[ChatAll] [Online IDs:EOS: deadbeef00000000000000000000beef steam: 76561198000000001] Alpha : gg`
	data := ParseChatFrame(body, time.Now())

	msg, ok := data.(events.ChatMessageData)
	if !ok {
		t.Fatalf("data = %#v, want ChatMessageData", data)
	}
	if msg.ChatType != "ChatAll" || msg.PlayerName != "Alpha" || msg.Message != "gg" || msg.EOSID != "deadbeef00000000000000000000beef" {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestParseChatFrameUnrecognizedReturnsNil(t *testing.T) {
	if data := ParseChatFrame("completely unrecognized body", time.Now()); data != nil {
		t.Fatalf("data = %#v, want nil", data)
	}
}
