// Package decoder turns captured frames into the packet summaries sent to clients.
package decoder

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/pktlive/internal/core"
)

// Decoder extracts the network-layer summary of a packet.
type Decoder struct {
	clock *core.Clock
}

// New creates a decoder stamping records with clock. A nil clock renders UTC.
func New(clock *core.Clock) *Decoder {
	if clock == nil {
		clock = core.NewClock(nil)
	}
	return &Decoder{clock: clock}
}

// Decode returns the packet summary. ok is false when the packet carries
// neither an IPv4 nor an IPv6 layer; such packets are skipped.
func (d *Decoder) Decode(packet gopacket.Packet) (rec core.PacketRecord, ok bool) {
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip4 := l.(*layers.IPv4)
		rec.SourceIP = ip4.SrcIP.String()
		rec.DestIP = ip4.DstIP.String()
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip6 := l.(*layers.IPv6)
		rec.SourceIP = ip6.SrcIP.String()
		rec.DestIP = ip6.DstIP.String()
	} else {
		return core.PacketRecord{}, false
	}

	rec.Length = wireLength(packet)
	rec.Timestamp = d.clock.Timestamp()
	return rec, true
}

// wireLength prefers the original length reported by the capture, which is
// unaffected by snap length truncation.
func wireLength(packet gopacket.Packet) int {
	if md := packet.Metadata(); md != nil && md.CaptureInfo.Length > 0 {
		return md.CaptureInfo.Length
	}
	return len(packet.Data())
}
