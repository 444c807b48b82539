package plugin

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/eventbus"
	"go.squadwatch.dev/coreplane/internal/events"
)

// bridgeKinds is the fixed set of event kinds the push bridge forwards:
// player and squad roster changes, chat, kill/damage events, round and
// game-state transitions, admin actions, rcon health, and server info.
var bridgeKinds = []events.Type{
	events.TypePlayerAdded, events.TypePlayerRemoved,
	events.TypeTeamChange, events.TypeSquadChange,
	events.TypeRoleChange, events.TypeLeaderChange,
	events.TypeSquadCreated, events.TypeSquadAdded, events.TypeSquadDisbanded, events.TypeSquadUpdated,
	events.TypeChatMessage,
	events.TypeDied, events.TypeWounded, events.TypeDamaged, events.TypeRevived,
	events.TypeRoundWinner, events.TypeRoundEnded, events.TypeNewGame,
	events.TypeAdminBroadcast, events.TypeAdminCameraEnter, events.TypeAdminCameraExit,
	events.TypePlayerWarned, events.TypePlayerKicked, events.TypePlayerBanned,
	events.TypeRconDisconnected, events.TypeRconError,
	events.TypeServerInfo,
	events.TypeLayerChanged,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Plugin consumers are trusted operator tooling behind the same
	// reverse proxy as the rest of the dashboard, not arbitrary browser
	// origins; the dashboard's own HTTP layer is responsible for auth.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one connected push-bridge subscriber, keyed by an
// operator-supplied filter over bridgeKinds.
type client struct {
	conn   *websocket.Conn
	filter map[events.Type]bool
	writeMu sync.Mutex
}

func (c *client) accepts(kind events.Type) bool {
	if len(c.filter) == 0 {
		return true
	}
	return c.filter[kind]
}

func (c *client) send(envelope events.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(envelope)
}

// Bridge forwards a fixed set of bus events to connected WebSocket clients.
// A client's transport failure drops that message and disconnects the
// client; it never propagates back into the bus.
type Bridge struct {
	bus *eventbus.Bus
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	subs    []eventbus.Subscription
}

// NewBridge constructs a Bridge over bus; call Subscribe once to begin
// forwarding.
func NewBridge(bus *eventbus.Bus, log zerolog.Logger) *Bridge {
	return &Bridge{
		bus:     bus,
		log:     log.With().Str("component", "plugin.bridge").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Subscribe registers the bridge against every kind in bridgeKinds.
func (b *Bridge) Subscribe() error {
	for _, kind := range bridgeKinds {
		sub, err := b.bus.Subscribe(kind, b.fanOut)
		if err != nil {
			return err
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

// Close cancels the bridge's bus subscriptions and disconnects every
// client.
func (b *Bridge) Close() {
	for _, sub := range b.subs {
		sub.Cancel()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		c.conn.Close()
		delete(b.clients, c)
	}
}

func (b *Bridge) fanOut(envelope events.Envelope) {
	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		if c.accepts(envelope.Type) {
			targets = append(targets, c)
		}
	}
	b.mu.Unlock()

	for _, c := range targets {
		if err := c.send(envelope); err != nil {
			b.log.Warn().Err(err).Msg("dropping push client after write failure")
			b.disconnect(c)
		}
	}
}

func (b *Bridge) disconnect(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	c.conn.Close()
}

// ServeWS upgrades an HTTP connection to a WebSocket push subscriber. The
// optional "kind" query parameter(s) narrow the subscription filter;
// absent, the client receives every bridged kind.
func (b *Bridge) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	filter := make(map[events.Type]bool)
	for _, k := range c.QueryArray("kind") {
		filter[events.Type(k)] = true
	}

	cl := &client{conn: conn, filter: filter}
	b.mu.Lock()
	b.clients[cl] = struct{}{}
	b.mu.Unlock()

	go b.readLoop(cl)
}

// readLoop drains and discards client frames purely to detect disconnects;
// the protocol is push-only from the server's side.
func (b *Bridge) readLoop(c *client) {
	defer b.disconnect(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// RegisterRoutes mounts the push bridge's WebSocket endpoint on r.
func (b *Bridge) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/events", b.ServeWS)
}
