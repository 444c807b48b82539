package rcon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnState is one state of the connection lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateReconnecting
	StateDestroying
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDestroying:
		return "destroying"
	default:
		return "unknown"
	}
}

// ReconnectConfig configures the exponential backoff schedule.
type ReconnectConfig struct {
	Enabled      bool
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // in [0,1]
	MaxAttempts  int     // 0 = unlimited
}

// ConnectionConfig configures one Connection.
type ConnectionConfig struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	Reconnect      ReconnectConfig
}

var (
	// ErrNotConnected is returned by write/read operations issued outside
	// the Connected state.
	ErrNotConnected = errors.New("rcon: not connected")
	// ErrDestroyed is returned by any operation attempted after destroy().
	ErrDestroyed = errors.New("rcon: connection destroyed")
)

// Connection owns the TCP socket lifecycle, a read-side buffer, and the
// reconnect state machine. Frame boundary discovery belongs to the RCON
// engine, which calls Consume explicitly after a successful Decode.
type Connection struct {
	cfg ConnectionConfig
	log zerolog.Logger

	mu           sync.Mutex
	state        ConnState
	conn         net.Conn
	buf          []byte
	attempts     int
	lastGood     bool // true once the socket has reached Connected at least once
	reconnecting bool // true while a reconnectLoop goroutine is running

	onStateChange func(ConnState)
	onData        func([]byte)
	onReconnected func()

	destroyed bool
}

// NewConnection constructs a Connection in the Disconnected state.
func NewConnection(cfg ConnectionConfig, log zerolog.Logger) *Connection {
	return &Connection{
		cfg:   cfg,
		log:   log.With().Str("component", "rcon.connection").Logger(),
		state: StateDisconnected,
	}
}

// OnStateChange registers a callback invoked on every state transition.
func (c *Connection) OnStateChange(fn func(ConnState)) { c.onStateChange = fn }

// OnData registers a callback invoked after each read with the whole
// unconsumed buffer, the newly-read bytes already appended to it.
func (c *Connection) OnData(fn func([]byte)) { c.onData = fn }

// OnReconnected registers a callback invoked after the reconnect loop
// re-establishes the socket; the owner (the engine) re-runs the auth
// handshake there.
func (c *Connection) OnReconnected(fn func()) { c.onReconnected = fn }

func (c *Connection) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

// State returns the current connection state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server. On success the state stays Connecting (the
// engine then drives Authenticating and Connected); on failure the state
// returns to Disconnected and the error propagates directly to the caller. Connect never schedules a reconnect
// itself — only a transport drop observed by handleSocketError does, so a
// running reconnectLoop's own retries cannot spawn a second loop.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	c.mu.Unlock()

	c.setState(StateConnecting)

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port))
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.buf = c.buf[:0]
	c.mu.Unlock()

	go c.readLoop()

	return nil
}

// MarkAuthenticating records that the socket is up and the auth handshake
// is in flight.
func (c *Connection) MarkAuthenticating() {
	c.setState(StateAuthenticating)
}

// MarkConnected records that authentication succeeded; resets the backoff
// schedule.
func (c *Connection) MarkConnected() {
	c.mu.Lock()
	c.lastGood = true
	c.attempts = 0
	c.mu.Unlock()
	c.setState(StateConnected)
}

// Write sends raw bytes on the socket. Only valid once a socket exists.
func (c *Connection) Write(b []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.Write(b)
}

// Consume discards n bytes from the head of the read buffer, as determined
// by the caller (the RCON engine) after a successful Decode.
func (c *Connection) Consume(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > len(c.buf) {
		n = len(c.buf)
	}
	c.buf = c.buf[n:]
}

// Buffer returns the current unconsumed read buffer. The returned slice
// must not be mutated by the caller.
func (c *Connection) Buffer() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

func (c *Connection) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			c.mu.Lock()
			c.buf = append(c.buf, chunk[:n]...)
			data := c.buf
			c.mu.Unlock()
			if c.onData != nil {
				c.onData(data)
			}
		}
		if err != nil {
			c.handleSocketError(err)
			return
		}
	}
}

func (c *Connection) handleSocketError(err error) {
	c.log.Warn().Err(err).Msg("rcon socket error")

	c.mu.Lock()
	start := c.lastGood && c.cfg.Reconnect.Enabled && !c.destroyed && !c.reconnecting
	destroyed := c.destroyed
	if start {
		c.reconnecting = true
	}
	c.conn = nil
	c.mu.Unlock()

	if destroyed {
		return
	}

	if start {
		c.setState(StateReconnecting)
		go c.reconnectLoop(context.Background())
		return
	}
	c.setState(StateDisconnected)
}

// Disconnect closes the socket and disables auto-reconnect.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.cfg.Reconnect.Enabled = false
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.setState(StateDisconnected)
}

// Destroy forcibly tears the connection down; idempotent.
func (c *Connection) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.setState(StateDestroying)
	if conn != nil {
		_ = conn.Close()
	}
}

// reconnectLoop runs the exponential-backoff-with-jitter schedule until a
// connection succeeds, max attempts is reached, or the connection is
// destroyed. At most one instance runs at a time (the reconnecting flag);
// a failed attempt continues this loop's own iteration rather than
// scheduling anything new.
func (c *Connection) reconnectLoop(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	rc := c.cfg.Reconnect
	delay := rc.InitialDelay

	for {
		c.mu.Lock()
		if c.destroyed {
			c.mu.Unlock()
			return
		}
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if rc.MaxAttempts > 0 && attempt > rc.MaxAttempts {
			c.log.Error().Int("attempts", attempt-1).Msg("rcon reconnect attempts exhausted")
			c.setState(StateDisconnected)
			return
		}

		wait := applyJitter(delay, rc.Jitter)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}

		if err := c.Connect(ctx); err == nil {
			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()
			if c.onReconnected != nil {
				c.onReconnected()
			}
			return
		}

		delay = nextDelay(delay, rc)
	}
}

// nextDelay computes the next backoff delay given the current one,
// ignoring jitter, so the schedule is non-decreasing and capped at
// MaxDelay.
func nextDelay(current time.Duration, rc ReconnectConfig) time.Duration {
	next := time.Duration(float64(current) * rc.Multiplier)
	if next > rc.MaxDelay {
		next = rc.MaxDelay
	}
	if next < current {
		next = current
	}
	return next
}

func applyJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	span := float64(d) * jitter
	offset := (rand.Float64()*2 - 1) * span
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		result = 0
	}
	return result
}
