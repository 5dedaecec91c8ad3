package core

// Event names broadcast to clients.
const (
	EventNewPacket     = "new_packet"
	EventSnifferStatus = "sniffer_status"
)

// Inbound client commands.
const (
	CommandStartSniff = "start_sniff"
	CommandStopSniff  = "stop_sniff"
)

// Status is the value of the status field of a sniffer_status event.
type Status string

const (
	StatusConnected      Status = "connected"
	StatusStarted        Status = "started"
	StatusStopped        Status = "stopped"
	StatusAlreadyRunning Status = "already_running"
	StatusAlreadyStopped Status = "already_stopped"
	// StatusError reports that the capture loop failed and capture is idle again.
	StatusError Status = "error"
)

// StatusEvent is the payload of a sniffer_status event.
type StatusEvent struct {
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}
