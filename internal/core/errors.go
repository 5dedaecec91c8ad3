// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Source errors are wrapped with context by the source
// package; use errors.Is to match them.
var (
	// Capture source errors
	ErrSourceUnavailable = errors.New("pktlive: capture source unavailable")
	ErrSourceClosed      = errors.New("pktlive: capture source closed")
	ErrReadTimeout       = errors.New("pktlive: capture read timeout")

	// Event bus errors
	ErrBusClosed = errors.New("pktlive: event bus closed")
	ErrBusFull   = errors.New("pktlive: event queue is full")

	// Configuration errors
	ErrConfigInvalid = errors.New("pktlive: invalid configuration")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("pktlive: daemon not running")
)
