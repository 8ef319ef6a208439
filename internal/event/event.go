package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const defaultTimeout = 30 * time.Second

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

type task struct {
	ctx context.Context
	run func(ctx context.Context) error
}

// Bus is an in-memory event bus. Handlers and posted actions run one at a time, in
// submission order, on a single goroutine owned by the bus, so no two of them ever
// interleave.
type Bus struct {
	wg sync.WaitGroup

	mu       sync.RWMutex
	handlers map[string][]Handler

	qmu     sync.Mutex
	queue   []task
	stopped bool
	notify  chan struct{}
	quit    chan struct{}
	exited  chan struct{}
}

// NewBus create a new event bus and starts its loop. Caller should call Stop for graceful
// shutdown the bus.
func NewBus() *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
		notify:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go b.loop()
	return b
}

// Subscribe to an event
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
}

// Publish an event. Each subscribed handler is queued on the loop; Publish never blocks,
// so it is safe to call from inside a handler.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[e.Name()] {
		h := h
		b.enqueue(task{ctx: ctx, run: func(ctx context.Context) error {
			return h(ctx, e)
		}})
	}
}

// Post queues an arbitrary action on the loop, serialized with event delivery.
func (b *Bus) Post(ctx context.Context, fn func(ctx context.Context) error) {
	b.enqueue(task{ctx: ctx, run: fn})
}

func (b *Bus) enqueue(t task) {
	b.qmu.Lock()
	if b.stopped {
		b.qmu.Unlock()
		slog.WarnContext(t.ctx, "event: bus stopped, dropping task")
		return
	}
	b.wg.Add(1)
	b.queue = append(b.queue, t)
	b.qmu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bus) next() (task, bool) {
	b.qmu.Lock()
	defer b.qmu.Unlock()

	if len(b.queue) == 0 {
		return task{}, false
	}
	t := b.queue[0]
	b.queue[0] = task{}
	b.queue = b.queue[1:]
	return t, true
}

func (b *Bus) loop() {
	defer close(b.exited)

	for {
		select {
		case <-b.notify:
		case <-b.quit:
			return
		}

		for {
			t, ok := b.next()
			if !ok {
				break
			}
			b.dispatch(t)
		}
	}
}

func (b *Bus) dispatch(t task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), defaultTimeout)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}

		cancel()
		b.wg.Done()
	}()

	if err := t.run(ctx); err != nil {
		slog.ErrorContext(ctx, "event: handle event failed",
			"error", err,
		)
	}
}

// Wait blocks until every queued task, including tasks queued while waiting, has run.
// It must not be called from inside a handler.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Stop waits for all queued tasks to finish, then stops the loop. Tasks queued after Stop
// are dropped.
func (b *Bus) Stop() {
	b.wg.Wait()

	b.qmu.Lock()
	if b.stopped {
		b.qmu.Unlock()
		<-b.exited
		return
	}
	b.stopped = true
	b.qmu.Unlock()

	close(b.quit)
	<-b.exited
}
