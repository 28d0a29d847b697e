// Package eventloop runs closures one at a time on a single goroutine.
// The viewer controller lives on a Loop; HTTP handlers and async workers
// talk to it only by posting closures.
package eventloop

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrStopped is returned when the loop no longer accepts work.
var ErrStopped = errors.New("event loop stopped")

type Loop struct {
	events   chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop with the given queue depth. Call Run to start it.
func New(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		events: make(chan func(), buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run processes posted closures in order until ctx is done or Stop is
// called. It blocks.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.Stop()
	log.Debug().Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("event loop stopped: context done")
			return
		case <-l.stop:
			log.Debug().Msg("event loop stopped")
			return
		case fn := <-l.events:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			log.Error().Interface("panic", v).Msg("event handler panicked")
		}
	}()
	fn()
}

// Stop makes the loop exit after the closure it is running, if any.
// Queued closures are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues fn, waiting for room if the queue is full. It returns false
// if the loop is stopped. Post must not be called from the loop goroutine
// while the queue may be full.
func (l *Loop) Post(fn func()) bool {
	return l.post(context.Background(), fn) == nil
}

// post queues fn unless the loop stops or ctx ends first.
func (l *Loop) post(ctx context.Context, fn func()) error {
	select {
	case <-l.stop:
		return ErrStopped
	default:
	}
	select {
	case l.events <- fn:
		return nil
	case <-l.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop and waits for it to finish. ctx bounds both the
// wait for queue space and the wait for fn. When ctx ends after fn was
// queued, fn may still run later.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	err := l.post(ctx, func() {
		defer close(finished)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Call runs fn on the loop and returns its result.
func Call[T any](ctx context.Context, l *Loop, fn func() T) (T, error) {
	var out T
	if err := l.Do(ctx, func() { out = fn() }); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
