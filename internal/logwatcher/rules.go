package logwatcher

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.squadwatch.dev/coreplane/internal/events"
)

// tailPattern compiles a rule pattern anchored behind the common
// [<timestamp>][<chain-id>] line prefix every recognized log line carries;
// groups 1 and 2 are always the timestamp and chain id, so each rule
// supplies only the event-specific tail.
func tailPattern(tail string) *regexp.Regexp {
	return regexp.MustCompile(`^\[([0-9.:-]+)]\[([ 0-9]*)]` + tail)
}

func parseChainID(raw string) uint64 {
	v, _ := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	return v
}

func parseFloat(raw string) float64 {
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}

func stripWeaponSuffix(weapon string) string {
	return strings.TrimSuffix(weapon, "_C")
}

func containsInvalid(onlineIDs string) bool {
	return strings.Contains(onlineIDs, "INVALID")
}

// Rule is one (name, kind, pattern, parse) entry. Parse may mutate store
// and returns the event to publish, or nil for a side-effect-only match.
type Rule struct {
	Name    string
	Kind    events.Type
	Pattern *regexp.Regexp
	Parse   func(m []string, observed time.Time, store *EventStore) events.Data
}

// Rules returns the fixed, ordered rule table. Evaluation is
// first-match-wins in this exact order: connection, possession, combat
// (damage, wound, died, revived), deployable damaged, game (winner,
// tickets, ended, new-game), server tick-rate, admin broadcast.
func Rules() []Rule {
	return []Rule{
		playerConnectedRule(),
		playerDisconnectedRule(),
		joinSucceededRule(),
		possessRule(),
		unpossessRule(),
		damageRule(),
		woundRule(),
		diedRule(),
		revivedRule(),
		deployableDamagedRule(),
		roundWinnerRule(),
		roundTicketsRule(),
		roundEndedRule(),
		newGameRule(),
		tickRateRule(),
		adminBroadcastRule(),
	}
}

func playerConnectedRule() Rule {
	re := tailPattern(`LogSquad: PostLogin: NewPlayer: BP_PlayerController_C .+PersistentLevel\.([^\s]+) \(IP: ([\d.]+) \| Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\)`)
	return Rule{
		Name: "player_connected", Kind: events.TypePlayerConnected, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			chainID := parseChainID(m[2])
			eos, platform := m[5], m[6]
			store.PutIdentity(Identity{EOSID: eos, PlatformID: platform, Controller: m[3]})
			return events.PlayerConnectedData{
				Raw:              events.Raw{Time: observed, Raw: m[0]},
				ChainID:          chainID,
				PlayerController: m[3],
				IPAddress:        m[4],
				EOSID:            eos,
				PlatformID:       platform,
			}
		},
	}
}

func playerDisconnectedRule() Rule {
	re := tailPattern(`LogNet: UChannel::Close:.*RemoteAddr: ([\d.]+):\d+.*UniqueId: (?:EOS:)?([0-9a-f]{32})?`)
	return Rule{
		Name: "player_disconnected", Kind: events.TypePlayerDisconnected, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			chainID := parseChainID(m[2])
			return events.PlayerDisconnectedData{
				Raw:       events.Raw{Time: observed, Raw: m[0]},
				ChainID:   chainID,
				IPAddress: m[3],
				EOSID:     m[4],
			}
		},
	}
}

func joinSucceededRule() Rule {
	re := tailPattern(`LogNet: Join succeeded: (.+)`)
	return Rule{
		Name: "join_succeeded", Kind: events.TypeJoinSucceeded, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			chainID := parseChainID(m[2])
			suffix := m[3]
			id, _ := store.GetIdentityByController(suffix)
			return events.JoinSucceededData{
				Raw:          events.Raw{Time: observed, Raw: m[0]},
				ChainID:      chainID,
				PlayerSuffix: suffix,
				EOSID:        id.EOSID,
				PlatformID:   id.PlatformID,
			}
		},
	}
}

func possessRule() Rule {
	re := tailPattern(`LogSquadTrace: \[DedicatedServer](?:ASQPlayerController::)?OnPossess\(\): PC=(.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\) Pawn=([A-Za-z0-9_]+)_C`)
	return Rule{
		Name: "possess", Kind: events.TypePossess, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			chainID := parseChainID(m[2])
			eos, platform := m[4], m[5]
			store.PutIdentity(Identity{EOSID: eos, PlatformID: platform, Name: m[3], Controller: m[3]})
			return events.PlayerPossessData{
				Raw:              events.Raw{Time: observed, Raw: m[0]},
				ChainID:          chainID,
				PlayerSuffix:     m[3],
				PossessClassname: m[6],
				PlayerEOS:        eos,
				PlayerSteam:      platform,
			}
		},
	}
}

func unpossessRule() Rule {
	re := tailPattern(`LogSquadTrace: \[DedicatedServer](?:ASQPlayerController::)?OnUnPossess\(\): PC=(.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\)`)
	return Rule{
		Name: "unpossess", Kind: events.TypeUnpossess, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			chainID := parseChainID(m[2])
			return events.PlayerPossessData{
				Raw:          events.Raw{Time: observed, Raw: m[0]},
				ChainID:      chainID,
				PlayerSuffix: m[3],
				PlayerEOS:    m[4],
				PlayerSteam:  m[5],
				Unpossess:    true,
			}
		},
	}
}

func damageRule() Rule {
	re := tailPattern(`LogSquad: Player:(.+) ActualDamage=([0-9.]+) from (.+) \(Online IDs:(?: EOS: ([^ )|]+))?(?: steam: ([^ )|]+))?\s*\|\s*Player Controller ID: ([^ )]+)\)caused by ([A-Za-z0-9_-]+)_C`)
	return Rule{
		Name: "damage", Kind: events.TypeDamaged, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			if containsInvalid(m[6]) {
				return nil
			}
			chainID := parseChainID(m[2])
			victim, damage, attacker := m[3], parseFloat(m[4]), m[5]
			eos, platform, controller, weapon := m[6], m[7], m[8], stripWeaponSuffix(m[9])

			store.StoreDamage(victim, DamageRecord{
				ChainID: chainID, Damage: damage, AttackerName: attacker,
				AttackerEOS: eos, AttackerPlatform: platform, AttackerController: controller, Weapon: weapon,
			})
			store.PutIdentity(Identity{EOSID: eos, PlatformID: platform, Controller: controller})

			return events.PlayerDamagedData{
				Raw: events.Raw{Time: observed, Raw: m[0]}, ChainID: chainID,
				VictimName: victim, Damage: damage, AttackerName: attacker,
				AttackerController: controller, Weapon: weapon,
				AttackerEOS: eos, AttackerPlatform: platform,
			}
		},
	}
}

func woundRule() Rule {
	re := tailPattern(`LogSquadTrace: \[DedicatedServer](?:ASQSoldier::)?Wound\(\): Player:(.+) KillingDamage=(?:-)*([0-9.]+) from ([A-Za-z0-9_]+) \(Online IDs:(?: EOS: ([^ )|]+))?(?: steam: ([^ )|]+))?\s*\| Controller ID: ([\w\d]+)\) caused by ([A-Za-z0-9_-]+)_C`)
	return Rule{
		Name: "wound", Kind: events.TypeWounded, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			if containsInvalid(m[6]) {
				return nil
			}
			chainID := parseChainID(m[2])
			victim, damage, controller := m[3], parseFloat(m[4]), m[5]
			eos, platform, weapon := m[6], m[7], stripWeaponSuffix(m[9])

			// Console attackers can leave the line's own id fields empty;
			// fall back to the preceding damage record for this victim.
			if eos == "" {
				if prior, ok := store.GetDamage(victim); ok {
					eos, platform = prior.AttackerEOS, prior.AttackerPlatform
				}
			}

			// Team membership isn't known to the rule loop, so the payload's
			// Teamkill field is left unset; nothing downstream sets it either.
			store.StoreWound(victim, DamageRecord{
				ChainID: chainID, Time: observed, Damage: damage, AttackerEOS: eos,
				AttackerPlatform: platform, AttackerController: controller, Weapon: weapon,
			})

			return events.PlayerWoundedData{
				Raw: events.Raw{Time: observed, Raw: m[0]}, ChainID: chainID,
				VictimName: victim, Damage: damage, AttackerPlayerController: controller,
				Weapon: weapon, AttackerEOS: eos, AttackerPlatform: platform,
			}
		},
	}
}

func diedRule() Rule {
	re := tailPattern(`LogSquadTrace: \[DedicatedServer](?:ASQSoldier::)?Die\(\): Player:(.+) KillingDamage=(?:-)*([0-9.]+) from ([A-Za-z0-9_]+) \(Online IDs:(?: EOS: ([^ )|]+))?(?: steam: ([^ )|]+))?\s*\| Contoller ID: ([\w\d]+)\) caused by ([A-Za-z0-9_-]+)_C`)
	return Rule{
		Name: "died", Kind: events.TypeDied, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			if containsInvalid(m[6]) {
				return nil
			}
			chainID := parseChainID(m[2])
			victim, damage, controller := m[3], parseFloat(m[4]), m[5]
			eos, platform, weapon := m[6], m[7], stripWeaponSuffix(m[9])

			woundTime := observed
			if prior, ok := store.GetWound(victim); ok {
				if !prior.Time.IsZero() {
					woundTime = prior.Time
				}
				if eos == "" {
					eos, platform = prior.AttackerEOS, prior.AttackerPlatform
				}
			}
			if eos == "" {
				if prior, ok := store.GetDamage(victim); ok {
					eos, platform = prior.AttackerEOS, prior.AttackerPlatform
				}
			}
			store.ClearSession(victim)

			return events.PlayerDiedData{
				Raw: events.Raw{Time: observed, Raw: m[0]}, WoundTime: woundTime, ChainID: chainID,
				VictimName: victim, Damage: damage, AttackerPlayerController: controller,
				Weapon: weapon, AttackerEOS: eos, AttackerPlatform: platform,
			}
		},
	}
}

func revivedRule() Rule {
	re := tailPattern(`LogSquad: (.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\) has revived (.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\)\.`)
	return Rule{
		Name: "revived", Kind: events.TypeRevived, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			chainID := parseChainID(m[2])
			victimName := m[6]
			store.ClearSession(victimName)
			return events.PlayerRevivedData{
				Raw: events.Raw{Time: observed, Raw: m[0]}, ChainID: chainID,
				ReviverName: m[3], VictimName: victimName,
				ReviverEOS: m[4], ReviverSteam: m[5], VictimEOS: m[7], VictimSteam: m[8],
			}
		},
	}
}

func deployableDamagedRule() Rule {
	re := tailPattern(`LogSquadTrace: \[DedicatedServer](?:ASQDeployable::)?TakeDamage\(\): ([A-Za-z0-9_]+)_C_[0-9]+: ([0-9.]+) damage attempt by causer ([A-Za-z0-9_]+)_C_[0-9]+ instigator (.+) with damage type ([A-Za-z0-9_]+)_C health remaining ([0-9.]+)`)
	return Rule{
		Name: "deployable_damaged", Kind: events.TypeDeployableDamaged, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			chainID := parseChainID(m[2])
			return events.DeployableDamagedData{
				Raw: events.Raw{Time: observed, Raw: m[0]}, ChainID: chainID,
				Deployable: m[3], Damage: parseFloat(m[4]), Weapon: m[5],
				PlayerSuffix: m[6], DamageType: m[7], HealthRemaining: parseFloat(m[8]),
			}
		},
	}
}

func roundWinnerRule() Rule {
	re := tailPattern(`LogSquadGameEvents: Display: Team ([0-9]), (.*) \( ?(.*?) ?\) has won the match with ([0-9]+) Tickets on layer (.*) \(level (.*)\)!`)
	return Rule{
		Name: "round_winner", Kind: events.TypeRoundWinner, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			side := RoundSide{Team: m[3], Subfaction: m[4], Faction: m[5], Tickets: m[6]}
			store.StoreRoundWinner(side, m[7])
			return events.RoundWinnerData{
				Raw: events.Raw{Time: observed, Raw: m[0]},
				Team: m[3], Subfaction: m[4], Faction: m[5], Tickets: m[6], Layer: m[7],
			}
		},
	}
}

// roundTicketsRule sits after the winner rule, so in practice it sees the
// losing side's line; the pattern still admits both spellings so the pair
// stays aligned with the server's single line shape.
func roundTicketsRule() Rule {
	re := tailPattern(`LogSquadGameEvents: Display: Team ([0-9]), (.*) \( ?(.*?) ?\) has (won|lost) the match with ([0-9]+) Tickets on layer (.*) \(level (.*)\)!`)
	return Rule{
		Name: "round_tickets", Kind: events.TypeRoundTicket, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			side := RoundSide{Team: m[3], Subfaction: m[4], Faction: m[5], Tickets: m[7]}
			if m[6] == "lost" {
				store.StoreRoundLoser(side, m[8])
			}
			return events.RoundTicketData{
				Raw:  events.Raw{Time: observed, Raw: m[0]},
				Team: m[3], Tickets: m[7],
			}
		},
	}
}

func roundEndedRule() Rule {
	re := tailPattern(`LogGameState: Match State Changed from InProgress to WaitingPostMatch`)
	return Rule{
		Name: "round_ended", Kind: events.TypeRoundEnded, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			result, ok := store.ConsumeRoundResult()
			out := events.RoundEndedData{Raw: events.Raw{Time: observed, Raw: m[0]}}
			if !ok {
				return out
			}
			out.Layer = result.Layer
			if result.HasWinner {
				out.Winner = result.Winner.Team
				out.WinnerData = map[string]any{
					"team": result.Winner.Team, "faction": result.Winner.Faction,
					"subfaction": result.Winner.Subfaction, "tickets": result.Winner.Tickets,
				}
			}
			if result.HasLoser {
				out.LoserData = map[string]any{
					"team": result.Loser.Team, "faction": result.Loser.Faction,
					"subfaction": result.Loser.Subfaction, "tickets": result.Loser.Tickets,
				}
			}
			return out
		},
	}
}

func newGameRule() Rule {
	re := tailPattern(`LogWorld: Bringing World \/([A-Za-z]+)\/(?:Maps\/)?([A-Za-z0-9_-]+)\/(?:.+\/)?([A-Za-z0-9_-]+)(?:\.[A-Za-z0-9_-]+)`)
	return Rule{
		Name: "new_game", Kind: events.TypeNewGame, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			if m[5] == "TransitionMap" {
				return nil
			}
			return events.NewGameData{
				Raw: events.Raw{Time: observed, Raw: m[0]},
				DLC: m[3], MapClassname: m[4], LayerClassname: m[5],
			}
		},
	}
}

func tickRateRule() Rule {
	re := tailPattern(`LogSquad: USQGameState: Server Tick Rate: ([0-9.]+)`)
	return Rule{
		Name: "tick_rate", Kind: events.TypeTickRate, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			return events.TickRateData{
				Raw: events.Raw{Time: observed, Raw: m[0]}, ChainID: parseChainID(m[2]), TickRate: parseFloat(m[3]),
			}
		},
	}
}

func adminBroadcastRule() Rule {
	re := tailPattern(`LogSquad: ADMIN COMMAND: Message broadcasted <(.+)> from (.+)`)
	return Rule{
		Name: "admin_broadcast", Kind: events.TypeAdminBroadcast, Pattern: re,
		Parse: func(m []string, observed time.Time, store *EventStore) events.Data {
			from := m[4]
			if from != "RCON" {
				if idx := strings.Index(from, "steam: "); idx != -1 {
					rest := from[idx+len("steam: "):]
					if end := strings.Index(rest, "]"); end != -1 {
						from = rest[:end]
					}
				}
			}
			return events.AdminBroadcastData{
				Raw: events.Raw{Time: observed, Raw: m[0]}, ChainID: parseChainID(m[2]),
				Message: m[3], From: from,
			}
		},
	}
}
