package decoder

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktlive/internal/core"
)

func fixedClock(t *testing.T) *core.Clock {
	t.Helper()
	loc, err := core.ParseZoneOffset(core.DefaultZoneOffset)
	require.NoError(t, err)
	at := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)
	return core.NewClock(loc).WithNow(func() time.Time { return at })
}

// ipv4Packet serializes an IPv4 datagram whose total size is size bytes.
func ipv4Packet(t *testing.T, src, dst string, size int) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	payload := gopacket.Payload(make([]byte, size-20))
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, payload))
	return buf.Bytes()
}

func TestDecodeIPv4RoundTrip(t *testing.T) {
	d := New(fixedClock(t))
	data := ipv4Packet(t, "10.0.0.1", "10.0.0.2", 64)
	require.Len(t, data, 64)

	packet := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Default)
	rec, ok := d.Decode(packet)

	require.True(t, ok)
	assert.Equal(t, core.PacketRecord{
		SourceIP:  "10.0.0.1",
		DestIP:    "10.0.0.2",
		Length:    64,
		Timestamp: "2024-03-01T15:30:00.123456+05:30",
	}, rec)
}

func TestDecodeUsesCaptureLength(t *testing.T) {
	d := New(fixedClock(t))
	data := ipv4Packet(t, "192.168.1.1", "192.168.1.2", 40)

	packet := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Default)
	packet.Metadata().CaptureInfo = gopacket.CaptureInfo{CaptureLength: 40, Length: 1500}

	rec, ok := d.Decode(packet)
	require.True(t, ok)
	assert.Equal(t, 1500, rec.Length)
}

func TestDecodeIPv6(t *testing.T) {
	d := New(fixedClock(t))
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolNoNextHeader,
		SrcIP:      net.ParseIP("fe80::1"),
		DstIP:      net.ParseIP("fe80::2"),
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, ip))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeIPv6, gopacket.Default)
	rec, ok := d.Decode(packet)

	require.True(t, ok)
	assert.Equal(t, "fe80::1", rec.SourceIP)
	assert.Equal(t, "fe80::2", rec.DestIP)
	assert.Equal(t, 40, rec.Length)
}

func TestDecodePrefersOuterIPv4ForTunnels(t *testing.T) {
	d := New(fixedClock(t))
	outer := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolIPv6,
		SrcIP:    net.ParseIP("192.0.2.1").To4(),
		DstIP:    net.ParseIP("192.0.2.2").To4(),
	}
	inner := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolNoNextHeader,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, outer, inner))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeIPv4, gopacket.Default)
	require.NotNil(t, packet.Layer(layers.LayerTypeIPv6))

	rec, ok := d.Decode(packet)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.1", rec.SourceIP)
	assert.Equal(t, "192.0.2.2", rec.DestIP)
	assert.Equal(t, 60, rec.Length)
}

func TestDecodeSkipsNonIP(t *testing.T) {
	d := New(fixedClock(t))
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0, 1, 2, 3, 4, 5},
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{10, 0, 0, 2},
	}
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, arp))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	_, ok := d.Decode(packet)
	assert.False(t, ok)
}

func TestDecodeDefaultClockIsUTC(t *testing.T) {
	d := New(nil)
	packet := gopacket.NewPacket(ipv4Packet(t, "10.0.0.1", "10.0.0.2", 20), layers.LayerTypeIPv4, gopacket.Default)

	rec, ok := d.Decode(packet)
	require.True(t, ok)
	assert.Contains(t, rec.Timestamp, "+00:00")
}
