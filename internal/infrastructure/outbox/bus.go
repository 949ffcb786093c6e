package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/ardenlake/bookshop/internal/domain/outbox"
	"github.com/ardenlake/bookshop/internal/observability"
	"github.com/ardenlake/bookshop/internal/observability/logctx"
)

const componentBus = "event_bus"

// ErrStopped is returned by Publish after the bus has been stopped.
var ErrStopped = errors.New("outbox: bus stopped")

// Bus is an in-memory post-commit event bus. It is not durable; a
// production deployment would persist events (true outbox) and dispatch
// from a worker. Handlers run asynchronously and can never affect the
// commit that produced the event.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	stopped     bool
	queue       chan domoutbox.Event
	startOnce   sync.Once
	stopOnce    sync.Once
	cancel      context.CancelFunc
	concurrency int
	handlerTTL  time.Duration
	log         observability.Logger
}

func NewBus(tel observability.Observability) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		queue:       make(chan domoutbox.Event, 1024),
		concurrency: 8,
		handlerTTL:  30 * time.Second,
		log:         tel.Logger().With(observability.F("component", componentBus)),
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		b.cancel = cancel
		go b.dispatchLoop(bg)
		b.log.Info("event_bus_started")
	})
}

// Stop shuts the dispatch loop down. The queue channel is never
// closed: an in-flight Publish racing with Stop must not panic on a
// send to a closed channel.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
		if b.cancel != nil {
			b.cancel()
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.mu.RLock()
	stopped := b.stopped
	b.mu.RUnlock()
	if stopped {
		b.log.Warn("event_dropped_bus_stopped", observability.F("event", e.EventName()))
		return ErrStopped
	}
	select {
	case b.queue <- e:
		return nil
	case <-ctx.Done():
		logctx.FromOr(ctx, b.log).Warn("event_enqueue_aborted",
			observability.F("event", e.EventName()),
			observability.F("error", ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-b.queue:
			if !ok {
				return
			}
			b.fanout(ctx, e)
		}
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", observability.F("event", name))
		return
	}

	ctx = context.WithoutCancel(ctx)

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event_handler_panic",
						observability.F("event", name),
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.handlerTTL)
			hctx = logctx.With(hctx, b.log.With(observability.F("event", name)))
			err := h(hctx, e)
			cancel()
			if err != nil {
				b.log.Warn("event_handler_error",
					observability.F("event", name),
					observability.F("error", err),
				)
			}
		}()
	}

	wg.Wait()
}
