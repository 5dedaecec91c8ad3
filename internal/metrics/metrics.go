// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/eventbus"
)

var (
	// EventsTotal counts events delivered by the bus, by event and status
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktlive_events_total",
			Help: "Total number of events dispatched to subscribers",
		},
		[]string{"event", "status"},
	)

	// CaptureRunning is 1 while a capture loop is running
	CaptureRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pktlive_capture_running",
			Help: "Whether capture is running (0=idle, 1=running)",
		},
	)

	// PacketBytesTotal sums the wire length of published packets
	PacketBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktlive_packet_bytes_total",
			Help: "Total wire bytes of published packets",
		},
	)

	// ClientsConnected tracks websocket clients
	ClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pktlive_clients_connected",
			Help: "Number of connected websocket clients",
		},
	)

	// ClientDropsTotal counts events dropped for slow websocket clients
	ClientDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pktlive_client_drops_total",
			Help: "Total number of events dropped because a client buffer was full",
		},
	)

	// CommandsTotal counts control commands by channel and command
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktlive_commands_total",
			Help: "Total number of control commands received",
		},
		[]string{"channel", "command"},
	)
)

// Observe records an event. It is subscribed to the event bus.
func Observe(event eventbus.Event) error {
	switch payload := event.Payload.(type) {
	case core.StatusEvent:
		EventsTotal.WithLabelValues(event.Name, string(payload.Status)).Inc()
		switch payload.Status {
		case core.StatusStarted:
			CaptureRunning.Set(1)
		case core.StatusStopped, core.StatusError:
			CaptureRunning.Set(0)
		}
	case core.PacketRecord:
		EventsTotal.WithLabelValues(event.Name, "").Inc()
		PacketBytesTotal.Add(float64(payload.Length))
	default:
		EventsTotal.WithLabelValues(event.Name, "").Inc()
	}
	return nil
}

// CaptureCounters reports cumulative capture loop counters.
type CaptureCounters func() (published, skipped, dropped int64)

// RegisterRuntime exposes bus and capture counters read at scrape time.
func RegisterRuntime(reg prometheus.Registerer, bus func() eventbus.Stats, capture CaptureCounters) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pktlive_bus_dropped_total",
			Help: "Total number of events dropped because the bus queue was full",
		}, func() float64 { return float64(bus().DroppedCount) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pktlive_bus_queued",
			Help: "Number of events waiting in the bus queue",
		}, func() float64 { return float64(bus().Queued) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pktlive_capture_packets_published_total",
			Help: "Total number of packets published by capture loops",
		}, func() float64 { p, _, _ := capture(); return float64(p) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pktlive_capture_packets_skipped_total",
			Help: "Total number of captured packets without an IP layer",
		}, func() float64 { _, s, _ := capture(); return float64(s) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "pktlive_capture_packets_dropped_total",
			Help: "Total number of packets dropped by the publish rate limit",
		}, func() float64 { _, _, d := capture(); return float64(d) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
