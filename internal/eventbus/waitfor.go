package eventbus

import (
	"context"
	"errors"

	"go.squadwatch.dev/coreplane/internal/events"
)

// ErrWaitTimeout is returned by WaitFor when ctx is done before a matching
// event arrives.
var ErrWaitTimeout = errors.New("eventbus: wait timed out")

// WaitFor blocks until one event of kind is published or ctx is done,
// whichever comes first. It registers a single-shot subscriber for the
// duration of the wait.
func (b *Bus) WaitFor(ctx context.Context, kind events.Type) (events.Envelope, error) {
	result := make(chan events.Envelope, 1)

	sub, err := b.Once(kind, func(env events.Envelope) {
		select {
		case result <- env:
		default:
		}
	})
	if err != nil {
		return events.Envelope{}, err
	}
	defer sub.Cancel()

	select {
	case env := <-result:
		return env, nil
	case <-ctx.Done():
		return events.Envelope{}, ErrWaitTimeout
	}
}
