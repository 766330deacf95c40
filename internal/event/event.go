package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultQueueSize = 1024
	defaultTimeout   = 30 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

type envelope struct {
	ctx context.Context
	e   Event
}

// subscription delivers its events one at a time, in publish order.
type subscription struct {
	id    uint64
	h     Handler
	queue chan envelope
}

// Bus is an in-memory, fire-and-forget event bus. Publish never waits for handlers: when a
// subscriber's queue is full the event is dropped for that subscriber.
type Bus struct {
	queueSize int
	timeout   time.Duration
	wg        sync.WaitGroup

	mu       sync.RWMutex
	stopped  bool
	nextID   uint64
	handlers map[string][]*subscription
}

type Option func(b *Bus)

// WithQueueSize bounds the number of events waiting for each subscriber.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithTimeout sets the deadline given to each handler.
func WithTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// NewBus create a new event bus. Caller should call Stop for graceful shutdown the bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		queueSize: defaultQueueSize,
		timeout:   defaultTimeout,
		handlers:  make(map[string][]*subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe to an event. The returned func removes the subscription; events already queued
// for it are still handled.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return func() {}
	}

	b.nextID++
	s := &subscription{
		id:    b.nextID,
		h:     h,
		queue: make(chan envelope, b.queueSize),
	}
	b.handlers[name] = append(b.handlers[name], s)

	b.wg.Add(1)
	go b.run(s)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.handlers[name]
		for i, x := range subs {
			if x.id == s.id {
				b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
				close(s.queue)
				return
			}
		}
	}
}

// Publish an event
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		slog.DebugContext(ctx, "event: bus stopped, dropping event", "event", e.Name())
		return
	}

	for _, s := range b.handlers[e.Name()] {
		select {
		case s.queue <- envelope{ctx: context.WithoutCancel(ctx), e: e}:
		default:
			slog.WarnContext(ctx, "event: queue full, dropping event", "event", e.Name())
		}
	}
}

func (b *Bus) run(s *subscription) {
	defer b.wg.Done()

	for env := range s.queue {
		b.handle(s.h, env)
	}
}

func (b *Bus) handle(h Handler, env envelope) {
	ctx, cancel := context.WithTimeout(env.ctx, b.timeout)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"event", env.e.Name(),
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
		cancel()
	}()

	if err := h(ctx, env.e); err != nil {
		slog.ErrorContext(ctx, "event: handle event failed",
			"event", env.e.Name(),
			"error", err,
		)
	}
}

// Stop rejects further events and waits until every queued event is handled.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.stopped {
		b.stopped = true
		for name, subs := range b.handlers {
			for _, s := range subs {
				close(s.queue)
			}
			delete(b.handlers, name)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
}
