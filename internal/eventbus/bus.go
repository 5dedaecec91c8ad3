// Package eventbus delivers status and packet events from the capture loop
// to subscribers without ever blocking the publisher.
package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/tevino/abool"

	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/log"
)

// Bus is an in-memory event bus with a bounded queue drained by a single
// dispatcher goroutine, so subscribers observe events in publish order.
type Bus struct {
	queue    chan Event
	mu       sync.RWMutex
	handlers []Handler
	closed   *abool.AtomicBool
	done     chan struct{}

	publishedCount int64
	processedCount int64
	droppedCount   int64
	failedCount    int64
}

var _ Sink = (*Bus)(nil)

// New creates a bus holding at most queueSize undelivered events.
func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 1
	}
	b := &Bus{
		queue:  make(chan Event, queueSize),
		closed: abool.New(),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish enqueues an event. When the queue is full or the bus is closed the
// event is dropped.
func (b *Bus) Publish(name string, payload interface{}) {
	_ = b.TryPublish(name, payload)
}

// TryPublish is Publish reporting the drop reason: core.ErrBusClosed or
// core.ErrBusFull. It never blocks.
func (b *Bus) TryPublish(name string, payload interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed.IsSet() {
		atomic.AddInt64(&b.droppedCount, 1)
		return core.ErrBusClosed
	}

	select {
	case b.queue <- Event{Name: name, Payload: payload}:
		atomic.AddInt64(&b.publishedCount, 1)
		return nil
	default:
		if n := atomic.AddInt64(&b.droppedCount, 1); n&(n-1) == 0 {
			log.Component("bus").Warnf("%v, dropped %d events so far", core.ErrBusFull, n)
		}
		return core.ErrBusFull
	}
}

// Subscribe registers a handler for every subsequent event.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Close stops accepting events, delivers what is queued and waits for the
// dispatcher to exit.
func (b *Bus) Close() error {
	b.mu.Lock()
	if !b.closed.SetToIf(false, true) {
		b.mu.Unlock()
		<-b.done
		return nil
	}
	close(b.queue)
	b.mu.Unlock()

	<-b.done
	log.Component("bus").Debug("event bus closed")
	return nil
}

// Stats returns the current counters.
func (b *Bus) Stats() Stats {
	return Stats{
		PublishedCount: atomic.LoadInt64(&b.publishedCount),
		ProcessedCount: atomic.LoadInt64(&b.processedCount),
		DroppedCount:   atomic.LoadInt64(&b.droppedCount),
		FailedCount:    atomic.LoadInt64(&b.failedCount),
		Queued:         len(b.queue),
	}
}

func (b *Bus) dispatch() {
	defer close(b.done)
	logger := log.Component("bus")

	for event := range b.queue {
		b.mu.RLock()
		handlers := b.handlers
		b.mu.RUnlock()

		for _, h := range handlers {
			if err := h(event); err != nil {
				atomic.AddInt64(&b.failedCount, 1)
				logger.Errorf("handler failed for %s: %v", event.Name, err)
			}
		}
		atomic.AddInt64(&b.processedCount, 1)
	}
}
