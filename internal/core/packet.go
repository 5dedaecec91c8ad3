// Package core defines the records published to clients. It has no
// external dependencies.
package core

// PacketRecord is the per-packet summary published as a new_packet event.
// It is built once per decoded packet and never retained after publish.
type PacketRecord struct {
	SourceIP  string `json:"source_ip"`
	DestIP    string `json:"dest_ip"`
	Length    int    `json:"length"`
	Timestamp string `json:"timestamp"`
}
