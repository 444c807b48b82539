package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/events"
)

func newTestBus() *Bus {
	return New(Config{}, zerolog.Nop())
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := newTestBus()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		if _, err := b.Subscribe(events.TypeChatMessage, func(events.Envelope) {
			order = append(order, i)
		}); err != nil {
			t.Fatal(err)
		}
	}

	b.Publish(events.ChatMessageData{Message: "hi"})

	for i, v := range order {
		if v != i {
			t.Fatalf("delivery order = %v, want ascending from 0", order)
		}
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	b := newTestBus()
	secondCalled := false

	if _, err := b.Subscribe(events.TypeChatMessage, func(events.Envelope) {
		panic("boom")
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe(events.TypeChatMessage, func(events.Envelope) {
		secondCalled = true
	}); err != nil {
		t.Fatal(err)
	}

	b.Publish(events.ChatMessageData{Message: "hi"})

	if !secondCalled {
		t.Fatal("second subscriber was not invoked after the first panicked")
	}
}

func TestMaxSubscribersPerKind(t *testing.T) {
	b := New(Config{MaxSubscribersPerKind: 1}, zerolog.Nop())

	if _, err := b.Subscribe(events.TypeChatMessage, func(events.Envelope) {}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe(events.TypeChatMessage, func(events.Envelope) {}); err == nil {
		t.Fatal("expected an error registering beyond the configured max")
	}
}

func TestCancelSubscriptionStopsDelivery(t *testing.T) {
	b := newTestBus()
	calls := 0

	sub, err := b.Subscribe(events.TypeChatMessage, func(events.Envelope) { calls++ })
	if err != nil {
		t.Fatal(err)
	}
	b.Publish(events.ChatMessageData{})
	sub.Cancel()
	b.Publish(events.ChatMessageData{})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWaitForReturnsOnMatch(t *testing.T) {
	b := newTestBus()

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Publish(events.ChatMessageData{Message: "hello"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := b.WaitFor(ctx, events.TypeChatMessage)
	if err != nil {
		t.Fatal(err)
	}
	msg, ok := env.Data.(events.ChatMessageData)
	if !ok || msg.Message != "hello" {
		t.Fatalf("got %+v", env)
	}
}

func TestWaitForTimesOut(t *testing.T) {
	b := newTestBus()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.WaitFor(ctx, events.TypeChatMessage); err != ErrWaitTimeout {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
}
