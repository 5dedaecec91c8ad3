//go:build !linux

package source

import (
	"github.com/pkg/errors"

	"firestige.xyz/pktlive/internal/core"
)

func openAFPacket(cfg Config) (Source, error) {
	return nil, errors.Wrap(core.ErrSourceUnavailable, "source: afpacket backend requires linux")
}
