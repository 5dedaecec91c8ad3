// Package capture owns the capture lifecycle: a single background loop
// started and stopped by any number of concurrent control requests.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/pktlive/internal/capture/decoder"
	"firestige.xyz/pktlive/internal/capture/source"
	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/eventbus"
	"firestige.xyz/pktlive/internal/log"
)

// State of the controller.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Options configures a Controller.
type Options struct {
	Opener  source.Opener
	Decoder *decoder.Decoder
	Sink    eventbus.Sink
	Clock   *core.Clock
	// Interface is reported in status snapshots only; Opener decides what is opened.
	Interface string
	// MaxPacketsPerSecond caps published packets per generation. Zero disables the cap.
	MaxPacketsPerSecond int
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State            State  `json:"state"`
	Interface        string `json:"interface,omitempty"`
	Generation       string `json:"generation,omitempty"`
	StartedAt        string `json:"started_at,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	PacketsPublished int64  `json:"packets_published"`
	PacketsSkipped   int64  `json:"packets_skipped"`
	PacketsDropped   int64  `json:"packets_dropped"`
}

// Controller is the capture state machine. State and the current stop
// signal are only touched under mu.
type Controller struct {
	mu        sync.Mutex
	state     State
	current   *stopSignal
	startedAt time.Time
	lastError string

	opener  source.Opener
	decoder *decoder.Decoder
	sink    eventbus.Sink
	clock   *core.Clock
	iface   string
	maxPPS  int

	published int64
	skipped   int64
	dropped   int64
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = core.NewClock(nil)
	}
	dec := opts.Decoder
	if dec == nil {
		dec = decoder.New(clock)
	}
	sink := opts.Sink
	if sink == nil {
		sink = eventbus.SinkFunc(func(string, interface{}) {})
	}
	return &Controller{
		state:   StateIdle,
		opener:  opts.Opener,
		decoder: dec,
		sink:    sink,
		clock:   clock,
		iface:   opts.Interface,
		maxPPS:  opts.MaxPacketsPerSecond,
	}
}

// Start spawns a capture loop unless one is already running. The returned
// status is the one published.
func (c *Controller) Start() core.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning && c.current != nil && c.current.alive() {
		c.publishStatus(core.StatusAlreadyRunning, "")
		return core.StatusAlreadyRunning
	}

	prev := c.current
	sig := newStopSignal()
	c.current = sig
	c.state = StateRunning
	c.startedAt = c.clock.Now()
	c.lastError = ""

	// started goes out before the loop exists so it precedes every packet
	// of this generation.
	c.publishStatus(core.StatusStarted, "")
	log.Component("controller").WithField("generation", sig.id).Info("capture started")

	go c.run(sig, prev)
	return core.StatusStarted
}

// Stop signals the running loop and returns without waiting for it.
func (c *Controller) Stop() core.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		c.publishStatus(core.StatusAlreadyStopped, "")
		return core.StatusAlreadyStopped
	}
	c.stopLocked()
	return core.StatusStopped
}

func (c *Controller) stopLocked() {
	c.current.Set()
	c.state = StateIdle
	c.publishStatus(core.StatusStopped, "")
	log.Component("controller").WithField("generation", c.current.id).Info("capture stopped")
}

// OnClientConnect announces a new client. It never starts capture.
func (c *Controller) OnClientConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishStatus(core.StatusConnected, "")
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:            c.state,
		Interface:        c.iface,
		LastError:        c.lastError,
		PacketsPublished: atomic.LoadInt64(&c.published),
		PacketsSkipped:   atomic.LoadInt64(&c.skipped),
		PacketsDropped:   atomic.LoadInt64(&c.dropped),
	}
	if c.state == StateRunning {
		snap.Generation = c.current.id
		snap.StartedAt = c.startedAt.Format(core.TimestampLayout)
	}
	return snap
}

// Shutdown stops capture if it is running and waits for the loop to exit or
// ctx to expire.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	sig := c.current
	if c.state == StateRunning {
		c.stopLocked()
	}
	c.mu.Unlock()

	if sig == nil {
		return nil
	}
	select {
	case <-sig.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail rolls the controller back to idle if sig is still the current
// generation. A stale generation's failure is only logged.
func (c *Controller) fail(sig *stopSignal, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := log.Component("controller").WithField("generation", sig.id)
	if c.current != sig || c.state != StateRunning {
		logger.Warnf("stale capture loop failed: %v", err)
		return
	}

	sig.Set()
	c.state = StateIdle
	c.lastError = err.Error()
	c.publishStatus(core.StatusError, err.Error())
	logger.Errorf("capture failed: %v", err)
}

// publishStatus must be called with mu held so status events keep the
// order of the transitions that produced them.
func (c *Controller) publishStatus(status core.Status, errText string) {
	c.sink.Publish(core.EventSnifferStatus, core.StatusEvent{
		Status:    status,
		Timestamp: c.clock.Timestamp(),
		Error:     errText,
	})
}
