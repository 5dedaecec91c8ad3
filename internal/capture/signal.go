package capture

import (
	"sync"

	"github.com/google/uuid"
)

// stopSignal belongs to exactly one loop generation. The loop publishes
// packets while holding the read lock and only if the signal is unset; Set
// takes the write lock, so once Set returns the generation publishes nothing.
type stopSignal struct {
	id   string
	mu   sync.RWMutex
	set  bool
	done chan struct{} // closed when the loop bound to this signal exits
}

func newStopSignal() *stopSignal {
	return &stopSignal{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

func (s *stopSignal) Set() {
	s.mu.Lock()
	s.set = true
	s.mu.Unlock()
}

func (s *stopSignal) IsSet() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// do runs fn unless the signal is set and reports whether it ran.
func (s *stopSignal) do(fn func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.set {
		return false
	}
	fn()
	return true
}

func (s *stopSignal) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
