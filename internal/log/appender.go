package log

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// MultiWriter fans log output out to stdout and the configured file
// appenders. A failing appender does not stop the others.
type MultiWriter struct {
	mu       sync.Mutex
	writers  []io.Writer
	failures int64
}

// NewMultiWriter creates a writer fanning out to ws.
func NewMultiWriter(ws ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: append([]io.Writer(nil), ws...)}
}

// Write reports the first appender error but always claims the full length,
// so logrus keeps logging when a file appender breaks.
func (m *MultiWriter) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, w := range m.writers {
		if _, err := w.Write(p); err != nil {
			atomic.AddInt64(&m.failures, 1)
			if first == nil {
				first = err
			}
		}
	}
	return len(p), first
}

func (m *MultiWriter) Add(w io.Writer) *MultiWriter {
	m.mu.Lock()
	m.writers = append(m.writers, w)
	m.mu.Unlock()
	return m
}

func (m *MultiWriter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writers)
}

// Failures counts failed appender writes.
func (m *MultiWriter) Failures() int64 {
	return atomic.LoadInt64(&m.failures)
}

// Close closes every appender that owns a resource. stdout and stderr are
// left open. Lumberjack reopens its file on the next write, so loggers still
// holding this writer keep working.
func (m *MultiWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, w := range m.writers {
		if w == os.Stdout || w == os.Stderr {
			continue
		}
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
