// Package eventbus implements a typed, synchronous, in-order,
// panic-isolated publish/subscribe bus. Structurally it follows the
// reference pack's internal/eventEmitter map[string][]Listener + mutex
// shape, but unlike that implementation's goroutine-per-listener Emit,
// delivery here is synchronous and in registration order, since
// subscribers may depend on delivery ordering for correlation.
package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/events"
)

// Handler receives one event envelope. A panic inside Handler is
// recovered, logged, and does not stop fan-out to the remaining
// subscribers.
type Handler func(events.Envelope)

// Subscription is a handle returned by Subscribe; Cancel removes the
// handler. Safe to call more than once.
type Subscription struct {
	bus   *Bus
	kind  events.Type
	token uint64
}

// Cancel removes the subscription. No-op if already cancelled.
func (s Subscription) Cancel() {
	s.bus.unsubscribe(s.kind, s.token)
}

type entry struct {
	token   uint64
	once    bool
	handler Handler
}

// Bus is the event bus. The zero value is not usable; construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[events.Type][]entry
	maxPerKind  int
	nextToken   uint64
	entropy     *ulid.MonotonicEntropy
	log         zerolog.Logger
}

// Config configures a Bus.
type Config struct {
	// MaxSubscribersPerKind catches subscription leaks; default 100.
	MaxSubscribersPerKind int
}

// New constructs an empty Bus.
func New(cfg Config, log zerolog.Logger) *Bus {
	max := cfg.MaxSubscribersPerKind
	if max <= 0 {
		max = 100
	}
	return &Bus{
		subscribers: make(map[events.Type][]entry),
		maxPerKind:  max,
		log:         log.With().Str("component", "eventbus").Logger(),
	}
}

// Subscribe registers handler for kind; it is invoked synchronously, in
// registration order relative to other subscribers of the same kind, on
// every Publish of that kind until the returned Subscription is
// cancelled.
func (b *Bus) Subscribe(kind events.Type, handler Handler) (Subscription, error) {
	return b.register(kind, handler, false)
}

// Once registers a single-shot handler removed after its first
// invocation.
func (b *Bus) Once(kind events.Type, handler Handler) (Subscription, error) {
	return b.register(kind, handler, true)
}

func (b *Bus) register(kind events.Type, handler Handler, once bool) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscribers[kind]) >= b.maxPerKind {
		return Subscription{}, fmt.Errorf("eventbus: kind %q already has the maximum of %d subscribers", kind, b.maxPerKind)
	}

	b.nextToken++
	token := b.nextToken
	b.subscribers[kind] = append(b.subscribers[kind], entry{token: token, once: once, handler: handler})

	return Subscription{bus: b, kind: kind, token: token}, nil
}

func (b *Bus) unsubscribe(kind events.Type, token uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subscribers[kind]
	for i, e := range list {
		if e.token == token {
			b.subscribers[kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers data synchronously, in subscriber registration order.
// A panic inside any one handler is recovered and logged; it does not
// prevent delivery to the remaining handlers.
func (b *Bus) Publish(data events.Data) {
	kind := data.GetType()
	envelope := events.Envelope{
		ID:       b.newID(),
		Type:     kind,
		Observed: time.Now(),
		Data:     data,
	}

	b.mu.Lock()
	list := append([]entry(nil), b.subscribers[kind]...)
	b.mu.Unlock()

	var completedOnce []uint64
	for _, e := range list {
		b.deliver(e.handler, envelope)
		if e.once {
			completedOnce = append(completedOnce, e.token)
		}
	}

	if len(completedOnce) > 0 {
		b.mu.Lock()
		for _, token := range completedOnce {
			b.unsubscribeLocked(kind, token)
		}
		b.mu.Unlock()
	}
}

func (b *Bus) unsubscribeLocked(kind events.Type, token uint64) {
	list := b.subscribers[kind]
	for i, e := range list {
		if e.token == token {
			b.subscribers[kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (b *Bus) deliver(handler Handler, envelope events.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event_kind", string(envelope.Type)).
				Interface("panic", r).
				Msg("eventbus subscriber panicked; isolated from siblings")
		}
	}()
	handler(envelope)
}

// newID generates one ULID under the bus lock; MonotonicEntropy is not safe
// for concurrent readers.
func (b *Bus) newID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entropy == nil {
		b.entropy = ulid.Monotonic(newEntropySource(), 0)
	}
	return ulid.MustNew(ulid.Now(), b.entropy).String()
}
