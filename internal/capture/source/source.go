// Package source opens live packet sources with bounded-wait reads.
package source

import (
	"time"

	"github.com/google/gopacket"
	"github.com/pkg/errors"

	"firestige.xyz/pktlive/internal/core"
)

// Backend names accepted by Open.
const (
	BackendPcap     = "pcap"
	BackendAFPacket = "afpacket"
)

// Source yields captured packets. ReadPacket waits at most the configured
// read timeout and returns core.ErrReadTimeout when nothing arrived, so the
// caller can observe cancellation between reads.
type Source interface {
	ReadPacket() (gopacket.Packet, error)
	Close() error
}

// Config describes the live source to open.
type Config struct {
	Interface    string
	Backend      string
	SnapLen      int
	Promiscuous  bool
	ReadTimeout  time.Duration
	BufferSizeMB int
}

// Open opens a live source according to cfg. Failures wrap
// core.ErrSourceUnavailable.
func Open(cfg Config) (Source, error) {
	if cfg.Interface == "" {
		iface, err := DefaultInterface()
		if err != nil {
			return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: selecting interface: %v", err)
		}
		cfg.Interface = iface
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 250 * time.Millisecond
	}

	switch cfg.Backend {
	case "", BackendPcap:
		return openPcap(cfg)
	case BackendAFPacket:
		return openAFPacket(cfg)
	default:
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: unknown backend %q", cfg.Backend)
	}
}

// Opener opens a fresh source for each capture generation.
type Opener func() (Source, error)

// NewOpener binds cfg into an Opener.
func NewOpener(cfg Config) Opener {
	return func() (Source, error) {
		return Open(cfg)
	}
}
