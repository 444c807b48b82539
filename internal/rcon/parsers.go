package rcon

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.squadwatch.dev/coreplane/internal/events"
)

// PlayerInfo is one row of a parsed ListPlayers response.
type PlayerInfo struct {
	SessionID  int
	EOSID      string
	PlatformID string
	Name       string
	TeamID     int    // 0 if absent
	HasTeam    bool
	SquadID    int    // 0 if absent
	HasSquad   bool
	IsLeader   bool
	Role       string
}

// SquadInfo is one row of a parsed ListSquads response.
type SquadInfo struct {
	TeamID         int
	TeamName       string
	SquadID        int
	Name           string
	Size           int
	Locked         bool
	CreatorName    string
	CreatorEOSID   string
	CreatorPlatform string
}

// MapInfo is the result of ShowCurrentMap/ShowNextMap.
type MapInfo struct {
	Level    string
	Layer    string // empty means absent (e.g. "To be voted")
	Factions []string
}

var (
	// listPlayersLine tolerates either ordering of EOS:/steam: sub-ids, by
	// matching the whole online-ids blob loosely and extracting each id
	// with its own helper regex below.
	listPlayersLine = regexp.MustCompile(
		`^ID: (\d+) \| Online IDs:(.*?) \| Name: (.+) \| Team ID: (\d+|N/A) \| Squad ID: (\d+|N/A) \| Is Leader: (True|False) \| Role: (.*?)\s*$`)

	listSquadsTeamHeader = regexp.MustCompile(`^Team ID: (\d+) \((.+)\)$`)
	listSquadsRow        = regexp.MustCompile(
		`^ID: (\d+) \| Name: (.+) \| Size: (\d+) \| Locked: (True|False) \| Creator Name: (.+) \| Creator Online IDs:(.*)$`)

	showMapLine = regexp.MustCompile(`^(?:Current|Next) level is (.*?), layer is (.*?)(?:, factions (.*))?$`)

	eosIDPattern    = regexp.MustCompile(`EOS:\s*([0-9a-f]{32})`)
	platformIDPattern = regexp.MustCompile(`steam:\s*(\d{17})`)
)

func extractOnlineIDs(blob string) (eos, platform string) {
	if m := eosIDPattern.FindStringSubmatch(blob); m != nil {
		eos = m[1]
	}
	if m := platformIDPattern.FindStringSubmatch(blob); m != nil {
		platform = m[1]
	}
	return
}

// ParseListPlayers parses a ListPlayers response body, preserving server
// order.
func ParseListPlayers(body string) ([]PlayerInfo, error) {
	var out []PlayerInfo
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := listPlayersLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		sessionID, _ := strconv.Atoi(m[1])
		eos, platform := extractOnlineIDs(m[2])

		p := PlayerInfo{
			SessionID:  sessionID,
			EOSID:      eos,
			PlatformID: platform,
			Name:       strings.TrimSpace(m[3]),
			IsLeader:   m[6] == "True",
			Role:       m[7],
		}
		if m[4] != "N/A" {
			if teamID, err := strconv.Atoi(m[4]); err == nil {
				p.TeamID = teamID
				p.HasTeam = true
			}
		}
		if m[5] != "N/A" {
			if squadID, err := strconv.Atoi(m[5]); err == nil {
				p.SquadID = squadID
				p.HasSquad = true
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseListSquads parses a ListSquads response body. Squad rows inherit the
// most recently seen team header; rows under a team id outside {1,2} are
// silently discarded (DESIGN.md Open Question 2).
func ParseListSquads(body string) ([]SquadInfo, error) {
	var out []SquadInfo
	teamID := 0
	teamName := ""

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := listSquadsTeamHeader.FindStringSubmatch(line); m != nil {
			teamID, _ = strconv.Atoi(m[1])
			teamName = m[2]
			continue
		}
		m := listSquadsRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if teamID != 1 && teamID != 2 {
			continue
		}

		squadID, _ := strconv.Atoi(m[1])
		size, _ := strconv.Atoi(m[3])
		eos, platform := extractOnlineIDs(m[6])

		out = append(out, SquadInfo{
			TeamID:          teamID,
			TeamName:        teamName,
			SquadID:         squadID,
			Name:            m[2],
			Size:            size,
			Locked:          m[4] == "True",
			CreatorName:     strings.TrimSpace(m[5]),
			CreatorEOSID:    eos,
			CreatorPlatform: platform,
		})
	}
	return out, nil
}

// ParseShowMap parses a ShowCurrentMap/ShowNextMap response body. A layer
// value of empty or the literal "To be voted" is normalized to absent.
func ParseShowMap(body string) (MapInfo, error) {
	line := strings.TrimSpace(body)
	m := showMapLine.FindStringSubmatch(line)
	if m == nil {
		return MapInfo{}, nil
	}
	info := MapInfo{Level: m[1], Layer: m[2]}
	if info.Layer == "" || info.Layer == "To be voted" {
		info.Layer = ""
	}
	if len(m) > 3 && m[3] != "" {
		info.Factions = strings.Fields(m[3])
	}
	return info, nil
}

var (
	chatMessagePattern = regexp.MustCompile(
		`^\[(ChatAll|ChatTeam|ChatSquad|ChatAdmin)\] \[Online IDs:(.*?)\] (.+?) : (.*)$`)
	playerWarnedPattern = regexp.MustCompile(
		`^Remote admin has warned player (.+)\. Message was "([\s\S]*)"$`)
	playerKickedPattern = regexp.MustCompile(
		`^Kicked player (\d+)\. \[Online IDs= (.*?)\] (.+)$`)
	playerBannedPattern = regexp.MustCompile(
		`^Banned player (\d+)\. \[steamid=(.*?)\] (.+) for interval (\d+)$`)
	cameraEnterPattern = regexp.MustCompile(
		`^\[Online [Ii]ds?:(.*?)\] (.+) has possessed admin camera\.$`)
	cameraExitPattern = regexp.MustCompile(
		`^\[Online [Ii]ds?:(.*?)\] (.+) has unpossessed admin camera\.$`)
	squadCreatedPattern = regexp.MustCompile(
		`^(.+) \(Online IDs: (.*?)\) has created Squad (\d+) \(Squad Name: (.+)\) on (.+)$`)
)

// ParseChatFrame recognizes the chat/admin body shapes unsolicited
// CHAT_VALUE frames carry. Unrecognized bodies return nil (logged at
// trace by the caller).
func ParseChatFrame(body string, observed time.Time) events.Data {
	raw := events.Raw{Time: observed, Raw: body}

	if m := chatMessagePattern.FindStringSubmatch(body); m != nil {
		eos, platform := extractOnlineIDs(m[2])
		return events.ChatMessageData{
			Raw:        raw,
			ChatType:   m[1],
			EOSID:      eos,
			PlatformID: platform,
			PlayerName: strings.TrimSpace(m[3]),
			Message:    m[4],
		}
	}
	if m := playerWarnedPattern.FindStringSubmatch(body); m != nil {
		return events.PlayerWarnedData{Raw: raw, PlayerName: strings.TrimSpace(m[1]), Message: m[2]}
	}
	if m := playerKickedPattern.FindStringSubmatch(body); m != nil {
		eos, platform := extractOnlineIDs(m[2])
		return events.PlayerKickedData{Raw: raw, EOSID: eos, PlatformID: platform, PlayerName: strings.TrimSpace(m[3])}
	}
	if m := playerBannedPattern.FindStringSubmatch(body); m != nil {
		interval, err := strconv.Atoi(m[4])
		if err != nil {
			return nil
		}
		return events.PlayerBannedData{Raw: raw, PlatformID: m[2], PlayerName: strings.TrimSpace(m[3]), IntervalS: interval}
	}
	if m := cameraEnterPattern.FindStringSubmatch(body); m != nil {
		eos, platform := extractOnlineIDs(m[1])
		return events.AdminCameraData{Raw: raw, EOSID: eos, PlatformID: platform, AdminName: strings.TrimSpace(m[2]), Entered: true}
	}
	if m := cameraExitPattern.FindStringSubmatch(body); m != nil {
		eos, platform := extractOnlineIDs(m[1])
		return events.AdminCameraData{Raw: raw, EOSID: eos, PlatformID: platform, AdminName: strings.TrimSpace(m[2]), Entered: false}
	}
	if m := squadCreatedPattern.FindStringSubmatch(body); m != nil {
		eos, platform := extractOnlineIDs(m[2])
		squadID, _ := strconv.Atoi(m[3])
		return events.SquadCreatedData{
			Raw:        raw,
			PlayerName: strings.TrimSpace(m[1]),
			EOSID:      eos,
			PlatformID: platform,
			SquadID:    squadID,
			SquadName:  m[4],
			TeamName:   m[5],
		}
	}

	return nil
}
