package state

import (
	"regexp"
	"sync"
	"time"

	"github.com/guregu/null/v5"

	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/rcon"
)

const defaultLayerHistory = 20

// Layer is the parsed view of one map+mode+version combination. Only Name
// is guaranteed; the remaining fields are best-effort and null when the
// layer name doesn't match the recognized shape.
type Layer struct {
	Name      string
	Level     null.String
	GameMode  null.String
	Version   null.String
	Faction1  null.String
	Faction2  null.String
	IsNight   bool
	SizeClass null.String
}

// layerNamePattern recognizes the common Squad layer naming convention,
// e.g. "Narva_RAAS_v1" or "Yehorivka_Night_Skirmish_v2". Anything else
// yields an empty match and Layer carries only Name.
var layerNamePattern = regexp.MustCompile(`^([A-Za-z0-9]+)_(?:(Night)_)?([A-Za-z]+)_v(\d+)$`)

func parseLayerName(name string) Layer {
	l := Layer{Name: name}
	m := layerNamePattern.FindStringSubmatch(name)
	if m == nil {
		return l
	}
	l.Level = null.StringFrom(m[1])
	l.GameMode = null.StringFrom(m[3])
	l.Version = null.StringFrom("v" + m[4])
	l.IsNight = m[2] == "Night"
	return l
}

// LayerService tracks the current and next layer, plus bounded history of
// past "current" layers, most recent first.
type LayerService struct {
	mu      sync.RWMutex
	current Layer
	next    Layer
	haveCur bool
	history []Layer
	maxHist int
	bus     Publisher
}

// NewLayerService constructs a LayerService with the default history cap
// (20); publishing deltas to bus.
func NewLayerService(bus Publisher) *LayerService {
	return &LayerService{maxHist: defaultLayerHistory, bus: bus}
}

// UpdateCurrent reconciles a ShowCurrentMap result. On a change, the
// previous current layer is pushed onto history and LAYER_CHANGED is
// published.
func (s *LayerService) UpdateCurrent(info rcon.MapInfo) {
	name := layerDisplayName(info)
	if name == "" {
		return
	}

	s.mu.Lock()
	if s.haveCur && s.current.Name == name {
		s.mu.Unlock()
		return
	}

	previous := s.current
	hadPrevious := s.haveCur
	s.current = parseLayerName(name)
	applyFactions(&s.current, info.Factions)
	s.haveCur = true

	if hadPrevious {
		s.history = append([]Layer{previous}, s.history...)
		if len(s.history) > s.maxHist {
			s.history = s.history[:s.maxHist]
		}
	}
	s.mu.Unlock()

	prevName := ""
	if hadPrevious {
		prevName = previous.Name
	}
	s.bus.Publish(events.LayerChangedData{
		Raw:      events.Raw{Time: time.Now()},
		Previous: prevName,
		Current:  name,
	})
}

// UpdateNext reconciles a ShowNextMap result; an empty/"To be voted" layer
// clears Next (parsers.go already normalizes that to "").
func (s *LayerService) UpdateNext(info rcon.MapInfo) {
	name := layerDisplayName(info)
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		s.next = Layer{}
		return
	}
	s.next = parseLayerName(name)
	applyFactions(&s.next, info.Factions)
}

func layerDisplayName(info rcon.MapInfo) string {
	if info.Layer != "" {
		return info.Layer
	}
	return info.Level
}

func applyFactions(l *Layer, factions []string) {
	if len(factions) > 0 {
		l.Faction1 = null.StringFrom(factions[0])
	}
	if len(factions) > 1 {
		l.Faction2 = null.StringFrom(factions[1])
	}
}

// Current returns the current layer and whether one has been observed yet.
func (s *LayerService) Current() (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.haveCur
}

// Next returns the queued next layer, if any.
func (s *LayerService) Next() (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next, s.next.Name != ""
}

// History returns the bounded layer history, most recent first.
func (s *LayerService) History() []Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Layer, len(s.history))
	copy(out, s.history)
	return out
}
