package events

import "time"

// Raw carries the minimal diagnostic fields every event has: when it was
// observed and the raw source line/body it was derived from.
type Raw struct {
	Time time.Time
	Raw  string
}

// ChatMessageData is an unsolicited in-game chat message.
type ChatMessageData struct {
	Raw
	ChatType   string
	EOSID      string
	PlatformID string
	PlayerName string
	Message    string
}

func (d ChatMessageData) GetType() Type { return TypeChatMessage }

// PlayerWarnedData is an admin warn action observed on a chat frame.
type PlayerWarnedData struct {
	Raw
	PlayerName string
	Message    string
}

func (d PlayerWarnedData) GetType() Type { return TypePlayerWarned }

// PlayerKickedData is an admin kick action.
type PlayerKickedData struct {
	Raw
	EOSID      string
	PlatformID string
	PlayerName string
}

func (d PlayerKickedData) GetType() Type { return TypePlayerKicked }

// PlayerBannedData is an admin ban action.
type PlayerBannedData struct {
	Raw
	PlatformID string
	PlayerName string
	IntervalS  int
}

func (d PlayerBannedData) GetType() Type { return TypePlayerBanned }

// AdminCameraData marks an admin entering or exiting the free camera.
type AdminCameraData struct {
	Raw
	EOSID      string
	PlatformID string
	AdminName  string
	Entered    bool
}

func (d AdminCameraData) GetType() Type {
	if d.Entered {
		return TypeAdminCameraEnter
	}
	return TypeAdminCameraExit
}

// SquadCreatedData is a SQUAD_CREATED chat frame.
type SquadCreatedData struct {
	Raw
	PlayerName string
	EOSID      string
	PlatformID string
	SquadID    int
	SquadName  string
	TeamName   string
}

func (d SquadCreatedData) GetType() Type { return TypeSquadCreated }

// AdminBroadcastData is a broadcast message, with the resolved source
// (RCON-issued vs. player-issued, by trailing identity token).
type AdminBroadcastData struct {
	Raw
	ChainID uint64
	Message string
	From    string
}

func (d AdminBroadcastData) GetType() Type { return TypeAdminBroadcast }

// DeployableDamagedData is a deployable (FOB/HAB) damage record.
type DeployableDamagedData struct {
	Raw
	ChainID         uint64
	Deployable      string
	Damage          float64
	Weapon          string
	PlayerSuffix    string
	DamageType      string
	HealthRemaining float64
}

func (d DeployableDamagedData) GetType() Type { return TypeDeployableDamaged }

// PlayerConnectedData is the socket-level connect record.
type PlayerConnectedData struct {
	Raw
	ChainID          uint64
	PlayerController string
	IPAddress        string
	PlatformID       string
	EOSID            string
}

func (d PlayerConnectedData) GetType() Type { return TypePlayerConnected }

// PlayerDisconnectedData is the socket-level close record. The player entity
// itself is only removed once the RCON list also stops reporting it.
type PlayerDisconnectedData struct {
	Raw
	ChainID    uint64
	IPAddress  string
	EOSID      string
}

func (d PlayerDisconnectedData) GetType() Type { return TypePlayerDisconnected }

// JoinSucceededData marks the player finishing the join handshake.
type JoinSucceededData struct {
	Raw
	ChainID      uint64
	PlayerSuffix string
	IPAddress    string
	PlatformID   string
	EOSID        string
}

func (d JoinSucceededData) GetType() Type { return TypeJoinSucceeded }

// PlayerDamagedData is one damage record in a damage→wound→death chain.
type PlayerDamagedData struct {
	Raw
	ChainID            uint64
	VictimName         string
	Damage             float64
	AttackerName       string
	AttackerController string
	Weapon             string
	AttackerEOS        string
	AttackerPlatform   string
}

func (d PlayerDamagedData) GetType() Type { return TypeDamaged }

// PlayerWoundedData is the wound record enriched from the preceding damage
// record.
type PlayerWoundedData struct {
	Raw
	ChainID                  uint64
	VictimName               string
	Damage                   float64
	AttackerPlayerController string
	Weapon                   string
	AttackerEOS              string
	AttackerPlatform         string
	Teamkill                 bool
}

func (d PlayerWoundedData) GetType() Type { return TypeWounded }

// PlayerDiedData is the death record enriched from the preceding wound
// record.
type PlayerDiedData struct {
	Raw
	WoundTime                time.Time
	ChainID                  uint64
	VictimName               string
	Damage                   float64
	AttackerPlayerController string
	Weapon                   string
	AttackerEOS              string
	AttackerPlatform         string
	Teamkill                 bool
}

func (d PlayerDiedData) GetType() Type { return TypeDied }

// PlayerRevivedData clears the victim's correlation entry.
type PlayerRevivedData struct {
	Raw
	ChainID      uint64
	ReviverName  string
	VictimName   string
	ReviverEOS   string
	ReviverSteam string
	VictimEOS    string
	VictimSteam  string
}

func (d PlayerRevivedData) GetType() Type { return TypeRevived }

// PlayerPossessData is a possess/unpossess record.
type PlayerPossessData struct {
	Raw
	ChainID          uint64
	PlayerSuffix     string
	PossessClassname string
	PlayerEOS        string
	PlayerSteam      string
	Unpossess        bool
}

func (d PlayerPossessData) GetType() Type {
	if d.Unpossess {
		return TypeUnpossess
	}
	return TypePossess
}

// NewGameData marks a new round/map starting.
type NewGameData struct {
	Raw
	Layer          string
	Level          string
	MapClassname   string
	LayerClassname string
	DLC            string
}

func (d NewGameData) GetType() Type { return TypeNewGame }

// RoundTicketData is one tickets-remaining update, accumulated into the
// round-result slot until RoundEnded.
type RoundTicketData struct {
	Raw
	Team    string
	Tickets string
}

func (d RoundTicketData) GetType() Type { return TypeRoundTicket }

// RoundWinnerData is a winner/loser declaration, accumulated into the
// round-result slot. A second RoundWinner before RoundEnded (a draw) clears
// Winner but preserves Layer — see DESIGN.md Open Question 3.
type RoundWinnerData struct {
	Raw
	Team       string
	Subfaction string
	Faction    string
	Tickets    string
	Layer      string
}

func (d RoundWinnerData) GetType() Type { return TypeRoundWinner }

// RoundEndedData is emitted once the round-result accumulator is consumed;
// it is then cleared.
type RoundEndedData struct {
	Raw
	Winner     string
	Layer      string
	WinnerData map[string]any
	LoserData  map[string]any
}

func (d RoundEndedData) GetType() Type { return TypeRoundEnded }

// TickRateData is a periodic server performance sample.
type TickRateData struct {
	Raw
	ChainID  uint64
	TickRate float64
}

func (d TickRateData) GetType() Type { return TypeTickRate }

// ServerInfoData is a periodic ShowServerInfo snapshot published by the
// serverInfo scheduled task: name, max players, current count, queues.
type ServerInfoData struct {
	Raw
	ServerName    string
	MaxPlayers    int
	PlayerCount   int
	PublicQueue   int
	ReservedQueue int
}

func (d ServerInfoData) GetType() Type { return TypeServerInfo }

// PlayerAddedData/PlayerRemovedData are Player-service lifecycle deltas.
type PlayerAddedData struct {
	Raw
	EOSID string
}

func (d PlayerAddedData) GetType() Type { return TypePlayerAdded }

type PlayerRemovedData struct {
	Raw
	EOSID string
}

func (d PlayerRemovedData) GetType() Type { return TypePlayerRemoved }

// FieldChangeData is a generic old/new delta used for team/squad/role/
// leader changes. It carries no Type of its own; each of the four wrapper
// types below embeds it and reports a distinct tag.
type FieldChangeData struct {
	Raw
	EOSID    string
	OldValue string
	NewValue string
}

type TeamChangeData struct{ FieldChangeData }

func (d TeamChangeData) GetType() Type { return TypeTeamChange }

type SquadChangeData struct{ FieldChangeData }

func (d SquadChangeData) GetType() Type { return TypeSquadChange }

type RoleChangeData struct{ FieldChangeData }

func (d RoleChangeData) GetType() Type { return TypeRoleChange }

type LeaderChangeData struct{ FieldChangeData }

func (d LeaderChangeData) GetType() Type { return TypeLeaderChange }

// SquadLifecycleData covers created/disbanded/updated squad deltas.
type SquadLifecycleData struct {
	Raw
	TeamID  int
	SquadID int
	created bool
	disbanded bool
}

func (d SquadLifecycleData) GetType() Type {
	switch {
	case d.created:
		return TypeSquadAdded
	case d.disbanded:
		return TypeSquadDisbanded
	default:
		return TypeSquadUpdated
	}
}

// NewSquadAdded/NewSquadDisbanded/NewSquadUpdated construct the three
// SquadLifecycleData variants explicitly, since the zero value would
// otherwise default to "updated".
func NewSquadAdded(raw Raw, teamID, squadID int) SquadLifecycleData {
	return SquadLifecycleData{Raw: raw, TeamID: teamID, SquadID: squadID, created: true}
}

func NewSquadDisbanded(raw Raw, teamID, squadID int) SquadLifecycleData {
	return SquadLifecycleData{Raw: raw, TeamID: teamID, SquadID: squadID, disbanded: true}
}

func NewSquadUpdated(raw Raw, teamID, squadID int) SquadLifecycleData {
	return SquadLifecycleData{Raw: raw, TeamID: teamID, SquadID: squadID}
}

// LayerChangedData is emitted by the layer service on any field change.
type LayerChangedData struct {
	Raw
	Previous string
	Current  string
}

func (d LayerChangedData) GetType() Type { return TypeLayerChanged }

// LifecycleData covers server-wide and RCON-connection lifecycle events.
type LifecycleData struct {
	Raw
	Reason string
	kind   Type
}

func (d LifecycleData) GetType() Type { return d.kind }

func NewLifecycleEvent(kind Type, reason string) LifecycleData {
	return LifecycleData{Raw: Raw{Time: time.Now()}, Reason: reason, kind: kind}
}
