package capture

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/log"
)

// run is the body of one loop generation. It owns the source it opens.
func (c *Controller) run(sig *stopSignal, prev *stopSignal) {
	defer close(sig.done)

	logger := log.Component("loop").WithField("generation", sig.id)

	// At most one source handle is open at a time.
	if prev != nil {
		<-prev.done
	}
	if sig.IsSet() {
		logger.Debug("stopped before the source was opened")
		return
	}

	if c.opener == nil {
		c.fail(sig, errors.Wrap(core.ErrSourceUnavailable, "no packet source configured"))
		return
	}
	src, err := c.opener()
	if err != nil {
		c.fail(sig, err)
		return
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warnf("closing source: %v", err)
		}
	}()

	var limiter *rate.Limiter
	if c.maxPPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(c.maxPPS), c.maxPPS)
	}

	var published, skipped, dropped int64
	defer func() {
		logger.Infof("capture loop exited: published=%d skipped=%d dropped=%d", published, skipped, dropped)
	}()

	for !sig.IsSet() {
		packet, err := src.ReadPacket()
		if err == core.ErrReadTimeout {
			continue
		}
		if err != nil {
			c.fail(sig, err)
			return
		}

		rec, ok := c.decoder.Decode(packet)
		if !ok {
			skipped++
			atomic.AddInt64(&c.skipped, 1)
			continue
		}
		if limiter != nil && !limiter.Allow() {
			dropped++
			atomic.AddInt64(&c.dropped, 1)
			continue
		}

		if !sig.do(func() { c.sink.Publish(core.EventNewPacket, rec) }) {
			return
		}
		published++
		atomic.AddInt64(&c.published, 1)
	}
}
