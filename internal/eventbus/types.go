package eventbus

// Event is a named payload fanned out to every subscriber.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Handler consumes events on the dispatcher goroutine. Returned errors are
// logged and otherwise ignored.
type Handler func(event Event) error

// Sink accepts events from publishers. Publish never blocks and never fails
// the caller; undeliverable events are dropped and counted.
type Sink interface {
	Publish(name string, payload interface{})
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, payload interface{})

func (f SinkFunc) Publish(name string, payload interface{}) { f(name, payload) }

// Stats is a snapshot of bus counters.
type Stats struct {
	PublishedCount int64
	ProcessedCount int64
	DroppedCount   int64
	FailedCount    int64
	Queued         int
}
