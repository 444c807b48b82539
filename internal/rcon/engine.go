// Package rcon implements the control plane's RCON protocol engine: the
// frame codec, the TCP connection lifecycle, the engine itself (auth,
// dispatch, response assembly, chat demultiplexing, retries, heartbeat)
// and the response parsers. It is grounded on the reference pack's
// internal/squad-rcon-go/rcon.go (byte-level decode loop, broken-packet
// probe, auth/reconnect shape) and internal/rcon/rcon.go (constant naming
// closer to the wire vocabulary used here).
package rcon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"go.squadwatch.dev/coreplane/internal/events"
	"go.squadwatch.dev/coreplane/internal/ids"
)

// Sentinel errors surfaced to callers of Execute and Connect.
var (
	ErrAuthFailed    = errors.New("rcon: authentication failed")
	ErrTimeout       = errors.New("rcon: command timed out")
	ErrAborted       = errors.New("rcon: command aborted")
	ErrWriteRejected = errors.New("rcon: transport rejected command write")
	ErrEngineClosed  = errors.New("rcon: engine closed")
)

// HeartbeatConfig configures the keepalive command.
type HeartbeatConfig struct {
	Enabled  bool
	Interval time.Duration
	Command  string
}

// CommandConfig configures per-command behavior.
type CommandConfig struct {
	Timeout time.Duration
	Retries int
}

// EngineConfig aggregates connection and command configuration into a
// single values-only surface.
type EngineConfig struct {
	Connection ConnectionConfig
	Command    CommandConfig
	Heartbeat  HeartbeatConfig
	Password   string
}

type pendingCommand struct {
	seq         uint16
	trace       string
	accumulator strings.Builder
	deadline    time.Time
	done        chan commandResult
	aborted     bool
}

type commandResult struct {
	body string
	err  error
}

type pendingAuth struct {
	seq  uint16
	done chan error
}

// Engine is the RCON engine, owning one Connection and dispatching
// through the frame codec.
type Engine struct {
	cfg  EngineConfig
	conn *Connection
	bus  Publisher
	log  zerolog.Logger

	mu       sync.Mutex
	seq      uint16
	pending  map[uint16]*pendingCommand
	auth     *pendingAuth
	stopHB   chan struct{}
	hbActive bool
	closed   bool
}

// Publisher is the subset of the event bus the engine needs: publishing
// chat-derived and lifecycle events. Satisfied by *eventbus.Bus.
type Publisher interface {
	Publish(events.Data)
}

// NewEngine constructs an Engine over a fresh Connection.
func NewEngine(cfg EngineConfig, bus Publisher, log zerolog.Logger) *Engine {
	log = log.With().Str("component", "rcon.engine").Logger()
	e := &Engine{
		cfg:     cfg,
		conn:    NewConnection(cfg.Connection, log),
		bus:     bus,
		log:     log,
		seq:     0,
		pending: make(map[uint16]*pendingCommand),
	}
	e.conn.OnData(e.onData)
	e.conn.OnStateChange(e.onStateChange)
	e.conn.OnReconnected(e.reauthenticate)
	return e
}

// reauthenticate re-runs the auth handshake after the transport's reconnect
// loop has re-established the socket. A failure here is surfaced as a
// lifecycle event rather than an error return, since no caller is waiting.
func (e *Engine) reauthenticate() {
	timeout := e.cfg.Connection.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := e.authenticate(ctx); err != nil {
		e.log.Error().Err(err).Msg("re-authentication after reconnect failed")
		e.bus.Publish(events.NewLifecycleEvent(events.TypeRconError, err.Error()))
	}
}

// nextSeq allocates the next 16-bit sequence, wrapping 65535 back to 1
// (0 is never allocated).
func (e *Engine) nextSeq() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq >= 65535 {
		e.seq = 1
	} else {
		e.seq++
	}
	return e.seq
}

// Connect dials the server and runs the authentication handshake,
// blocking until Connected or a terminal failure.
func (e *Engine) Connect(ctx context.Context) error {
	if err := e.conn.Connect(ctx); err != nil {
		return oops.Wrapf(err, "rcon connect")
	}
	return e.authenticate(ctx)
}

func (e *Engine) authenticate(ctx context.Context) error {
	e.conn.MarkAuthenticating()

	seq := e.nextSeq()
	done := make(chan error, 1)

	e.mu.Lock()
	e.auth = &pendingAuth{seq: seq, done: done}
	e.mu.Unlock()

	if _, err := e.conn.Write(EncodeAuth(seq, e.cfg.Password)); err != nil {
		e.mu.Lock()
		e.auth = nil
		e.mu.Unlock()
		return oops.Wrapf(err, "rcon send auth frame")
	}

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		e.conn.MarkConnected()
		e.startHeartbeat()
		return nil
	case <-ctx.Done():
		e.mu.Lock()
		e.auth = nil
		e.mu.Unlock()
		return ctx.Err()
	}
}

func (e *Engine) onStateChange(s ConnState) {
	if s == StateDisconnected || s == StateReconnecting || s == StateDestroying {
		e.abortAll(ErrAborted)
		e.stopHeartbeat()
		if s != StateDestroying {
			e.bus.Publish(events.NewLifecycleEvent(events.TypeRconDisconnected, s.String()))
		}
	}
}

func (e *Engine) abortAll(cause error) {
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[uint16]*pendingCommand)
	auth := e.auth
	e.auth = nil
	e.mu.Unlock()

	for _, p := range pending {
		p.aborted = true
		p.done <- commandResult{err: cause}
	}
	if auth != nil {
		auth.done <- cause
	}
}

// onData is invoked by the Connection with the full unconsumed buffer
// after each read; it decodes as many frames as are available.
func (e *Engine) onData(_ []byte) {
	for {
		buf := e.conn.Buffer()
		result := Decode(buf)
		switch result.Kind {
		case DecodeIncomplete:
			return
		case DecodeBrokenStub:
			e.conn.Consume(result.BytesConsumed)
		case DecodeMalformed:
			e.log.Debug().Str("code", string(result.Code)).Msg("malformed frame head, skipping one byte")
			e.conn.Consume(1)
		case DecodeOK:
			e.conn.Consume(result.BytesConsumed)
			e.handleFrame(result.Frame)
		}
	}
}

func (e *Engine) handleFrame(f Frame) {
	switch f.Type {
	case FrameTypeAuthResponse:
		e.handleAuthResponse(f)
	case FrameTypeChatValue:
		e.handleChatFrame(f)
	case FrameTypeResponseValue:
		e.handleResponseValue(f)
	default:
		e.log.Debug().Int32("type", f.Type).Msg("unhandled frame type")
	}
}

func (e *Engine) handleAuthResponse(f Frame) {
	e.mu.Lock()
	auth := e.auth
	if auth == nil {
		e.mu.Unlock()
		return
	}
	e.auth = nil
	e.mu.Unlock()

	if f.ID == IDAuthFailed {
		auth.done <- ErrAuthFailed
		return
	}
	auth.done <- nil
}

func (e *Engine) handleResponseValue(f Frame) {
	e.mu.Lock()
	p, ok := e.pending[f.Count]
	e.mu.Unlock()
	if !ok {
		// Discardable ack (e.g. the MID frame sent during auth) or a
		// response that has already timed out; drop it.
		return
	}

	if f.ID == IDMid {
		p.accumulator.WriteString(f.Body)
		return
	}
	if f.ID == IDEnd {
		e.mu.Lock()
		delete(e.pending, f.Count)
		e.mu.Unlock()
		if !p.aborted {
			p.done <- commandResult{body: p.accumulator.String()}
		}
	}
}

func (e *Engine) handleChatFrame(f Frame) {
	data := ParseChatFrame(f.Body, time.Now())
	if data == nil {
		e.log.Trace().Str("body", f.Body).Msg("unrecognized chat frame")
		return
	}
	e.bus.Publish(data)
}

// Execute issues a raw command and returns its assembled response body.
// Only this outermost wrapper retries, and only for recoverable failures
// (Timeout, or a transport write rejection observed after a reconnect has
// already completed).
func (e *Engine) Execute(ctx context.Context, command string) (string, error) {
	var lastErr error
	attempts := e.cfg.Command.Retries + 1
	for i := 0; i < attempts; i++ {
		body, err := e.executeOnce(ctx, command)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !e.isRecoverable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (e *Engine) isRecoverable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	// A rejected write is worth retrying only once the transport's
	// reconnect has completed; while still down, retrying would just
	// burn the attempts against the same dead socket.
	return errors.Is(err, ErrWriteRejected) && e.conn.State() == StateConnected
}

func (e *Engine) executeOnce(ctx context.Context, command string) (string, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrEngineClosed
	}
	e.mu.Unlock()

	seq := e.nextSeq()
	timeout := e.cfg.Command.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &pendingCommand{
		seq:      seq,
		trace:    ulid.Make().String(),
		deadline: time.Now().Add(timeout),
		done:     make(chan commandResult, 1),
	}

	e.mu.Lock()
	e.pending[seq] = p
	e.mu.Unlock()

	e.log.Trace().Uint16("seq", seq).Str("trace", p.trace).Str("command", command).Msg("dispatching command")

	if _, err := e.conn.Write(EncodeCommand(seq, command)); err != nil {
		e.mu.Lock()
		delete(e.pending, seq)
		e.mu.Unlock()
		return "", oops.With("cause", err.Error()).Wrapf(ErrWriteRejected, "rcon write command")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-p.done:
		if res.err != nil {
			return "", res.err
		}
		return res.body, nil
	case <-timer.C:
		e.mu.Lock()
		delete(e.pending, seq)
		e.mu.Unlock()
		return "", ErrTimeout
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.pending, seq)
		e.mu.Unlock()
		return "", ctx.Err()
	}
}

func (e *Engine) startHeartbeat() {
	if !e.cfg.Heartbeat.Enabled || e.cfg.Heartbeat.Interval <= 0 {
		return
	}
	e.mu.Lock()
	if e.hbActive {
		e.mu.Unlock()
		return
	}
	e.hbActive = true
	e.stopHB = make(chan struct{})
	stop := e.stopHB
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cfg.Heartbeat.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Command.Timeout)
				if _, err := e.Execute(ctx, e.cfg.Heartbeat.Command); err != nil {
					e.log.Warn().Err(err).Msg("heartbeat command failed")
				}
				cancel()
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) stopHeartbeat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hbActive {
		close(e.stopHB)
		e.hbActive = false
	}
}

// Disconnect tears down the connection, aborting pending commands.
func (e *Engine) Disconnect() {
	e.conn.Disconnect()
}

// Destroy forcibly tears everything down; idempotent.
func (e *Engine) Destroy() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.conn.Destroy()
}

// State returns the underlying connection state.
func (e *Engine) State() ConnState { return e.conn.State() }

func stripControlChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ReplaceAll(b.String(), `"`, "'")
}

// formatMessage sanitizes a free-text command argument: control characters
// stripped, double quotes replaced with single quotes.
func formatMessage(s string) string { return stripControlChars(s) }

// Target is a player argument for the Admin* commands. Session ids are
// serialized as bare decimals; every other identifier is passed verbatim,
// quoted.
type Target struct {
	arg string
}

func (t Target) String() string { return t.arg }

// SessionTarget addresses a player by their per-connection session id.
func SessionTarget(id ids.SessionID) Target {
	return Target{arg: strconv.Itoa(id.Int())}
}

// EOSTarget addresses a player by EOS id.
func EOSTarget(id ids.EOSID) Target {
	return Target{arg: `"` + id.String() + `"`}
}

// PlatformTarget addresses a player by Steam64 id.
func PlatformTarget(id ids.PlatformID) Target {
	return Target{arg: `"` + id.String() + `"`}
}

// NameTarget addresses a player by display name, sanitized like a message
// body.
func NameTarget(name string) Target {
	return Target{arg: `"` + formatMessage(name) + `"`}
}

// Warn issues an admin warn command.
func (e *Engine) Warn(ctx context.Context, target Target, message string) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminWarn %s %s", target, formatMessage(message)))
}

// Kick issues an admin kick command.
func (e *Engine) Kick(ctx context.Context, target Target, reason string) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminKick %s %s", target, formatMessage(reason)))
}

// Ban issues an admin ban command for the given duration in minutes
// (0 = permanent).
func (e *Engine) Ban(ctx context.Context, target Target, minutes int, reason string) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminBan %s %d %s", target, minutes, formatMessage(reason)))
}

// Broadcast issues an admin broadcast.
func (e *Engine) Broadcast(ctx context.Context, message string) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminBroadcast %s", formatMessage(message)))
}

// ChangeMap sets and switches to the given layer immediately.
func (e *Engine) ChangeMap(ctx context.Context, layer string) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminChangeLayer %s", layer))
}

// SetNextMap queues the next layer.
func (e *Engine) SetNextMap(ctx context.Context, layer string) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminSetNextLayer %s", layer))
}

// ForceTeamChange forces the given player to switch teams.
func (e *Engine) ForceTeamChange(ctx context.Context, target Target) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminForceTeamChange %s", target))
}

// DisbandSquad disbands the given squad.
func (e *Engine) DisbandSquad(ctx context.Context, teamID, squadID int) (string, error) {
	return e.Execute(ctx, fmt.Sprintf("AdminDisbandSquad %d %d", teamID, squadID))
}

// EndMatch ends the current match immediately.
func (e *Engine) EndMatch(ctx context.Context) (string, error) {
	return e.Execute(ctx, "AdminEndMatch")
}

// RestartMatch restarts the current match.
func (e *Engine) RestartMatch(ctx context.Context) (string, error) {
	return e.Execute(ctx, "AdminRestartMatch")
}

// ListPlayers issues the ListPlayers query, returning the parsed result.
func (e *Engine) ListPlayers(ctx context.Context) ([]PlayerInfo, error) {
	body, err := e.Execute(ctx, "ListPlayers")
	if err != nil {
		return nil, err
	}
	return ParseListPlayers(body)
}

// ListSquads issues the ListSquads query, returning the parsed result.
func (e *Engine) ListSquads(ctx context.Context) ([]SquadInfo, error) {
	body, err := e.Execute(ctx, "ListSquads")
	if err != nil {
		return nil, err
	}
	return ParseListSquads(body)
}

// ShowCurrentMap issues the ShowCurrentMap query.
func (e *Engine) ShowCurrentMap(ctx context.Context) (MapInfo, error) {
	body, err := e.Execute(ctx, "ShowCurrentMap")
	if err != nil {
		return MapInfo{}, err
	}
	return ParseShowMap(body)
}

// ShowNextMap issues the ShowNextMap query.
func (e *Engine) ShowNextMap(ctx context.Context) (MapInfo, error) {
	body, err := e.Execute(ctx, "ShowNextMap")
	if err != nil {
		return MapInfo{}, err
	}
	return ParseShowMap(body)
}

// ShowServerInfo issues the ShowServerInfo query.
func (e *Engine) ShowServerInfo(ctx context.Context) (ServerInfo, error) {
	body, err := e.Execute(ctx, "ShowServerInfo")
	if err != nil {
		return ServerInfo{}, err
	}
	return ParseServerInfo(body)
}
