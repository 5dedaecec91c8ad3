package source

import (
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"

	"firestige.xyz/pktlive/internal/core"
)

type pcapSource struct {
	handle *pcap.Handle
	ps     *gopacket.PacketSource
}

func openPcap(cfg Config) (Source, error) {
	inactive, err := pcap.NewInactiveHandle(cfg.Interface)
	if err != nil {
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: creating handle on %s: %v", cfg.Interface, err)
	}
	defer inactive.CleanUp()

	if err = inactive.SetSnapLen(cfg.SnapLen); err != nil {
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: setting snap length: %v", err)
	} else if err = inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: setting promisc mode: %v", err)
	} else if err = inactive.SetTimeout(cfg.ReadTimeout); err != nil {
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: setting timeout: %v", err)
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: activating handle on %s: %v", cfg.Interface, err)
	}

	ps := gopacket.NewPacketSource(handle, handle.LinkType())
	ps.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	return &pcapSource{handle: handle, ps: ps}, nil
}

func (s *pcapSource) ReadPacket() (gopacket.Packet, error) {
	packet, err := s.ps.NextPacket()
	switch err {
	case nil:
		return packet, nil
	case pcap.NextErrorTimeoutExpired:
		return nil, core.ErrReadTimeout
	case io.EOF, pcap.NextErrorNoMorePackets:
		return nil, core.ErrSourceClosed
	default:
		return nil, errors.Wrap(err, "source: reading packet")
	}
}

func (s *pcapSource) Close() error {
	s.handle.Close()
	return nil
}
