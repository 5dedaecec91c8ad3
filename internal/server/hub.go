package server

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/tevino/abool"

	"firestige.xyz/pktlive/internal/eventbus"
	"firestige.xyz/pktlive/internal/log"
	"firestige.xyz/pktlive/internal/metrics"
)

// Hub fans bus events out to websocket clients. Each client has its own
// bounded send buffer; a full buffer drops the event for that client only.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  *abool.AtomicBool
	bufSize int

	dropped int64
}

// NewHub creates a hub giving every client bufSize buffered frames.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		closed:  abool.New(),
		bufSize: bufSize,
	}
}

// Broadcast encodes event once and queues it for every client. It is
// subscribed to the event bus and runs on the bus dispatcher.
func (h *Hub) Broadcast(event eventbus.Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			atomic.AddInt64(&h.dropped, 1)
			metrics.ClientDropsTotal.Inc()
			log.Component("hub").WithField("client", c.id).Debugf("client buffer full, dropped %s", event.Name)
		}
	}
	return nil
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of frames dropped for slow clients.
func (h *Hub) Dropped() int64 {
	return atomic.LoadInt64(&h.dropped)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.IsSet() {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.ClientsConnected.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.ClientsConnected.Set(float64(len(h.clients)))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed.SetToIf(false, true) {
		return
	}
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.ClientsConnected.Set(0)
}
