//go:build linux

package source

import (
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"firestige.xyz/pktlive/internal/core"
)

type afpacketSource struct {
	handle *afpacket.TPacket
}

func openAFPacket(cfg Config) (Source, error) {
	bufferMB := cfg.BufferSizeMB
	if bufferMB <= 0 {
		bufferMB = 8
	}
	frameSize, blockSize, numBlocks, err := recomputeSize(bufferMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: sizing ring: %v", err)
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.ReadTimeout),
		afpacket.OptBlockTimeout(cfg.ReadTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, errors.Wrapf(core.ErrSourceUnavailable, "source: opening ring on %s: %v", cfg.Interface, err)
	}
	return &afpacketSource{handle: tp}, nil
}

func (s *afpacketSource) ReadPacket() (gopacket.Packet, error) {
	data, ci, err := s.handle.ReadPacketData()
	switch err {
	case nil:
	case afpacket.ErrTimeout:
		return nil, core.ErrReadTimeout
	default:
		return nil, errors.Wrap(err, "source: reading ring")
	}

	packet := gopacket.NewPacket(data, layers.LinkTypeEthernet, gopacket.DecodeOptions{Lazy: true})
	packet.Metadata().CaptureInfo = ci
	return packet, nil
}

func (s *afpacketSource) Close() error {
	s.handle.Close()
	return nil
}
