// Package command implements control plane command handling.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firestige.xyz/pktlive/internal/capture"
	"firestige.xyz/pktlive/internal/core"
	"firestige.xyz/pktlive/internal/log"
	"firestige.xyz/pktlive/internal/metrics"
)

// Version is reported by daemon_status.
var Version = "0.1.0"

// Method names accepted by Handle.
const (
	MethodCaptureStart   = "capture_start"
	MethodCaptureStop    = "capture_stop"
	MethodCaptureStatus  = "capture_status"
	MethodDaemonStatus   = "daemon_status"
	MethodDaemonShutdown = "daemon_shutdown"
)

// aliases maps the client event names onto handler methods so remote
// channels can use either vocabulary.
var aliases = map[string]string{
	core.CommandStartSniff: MethodCaptureStart,
	core.CommandStopSniff:  MethodCaptureStop,
}

// CaptureController is the part of the capture controller commands drive.
type CaptureController interface {
	Start() core.Status
	Stop() core.Status
	Status() capture.Snapshot
}

// CommandHandler handles control plane commands.
type CommandHandler struct {
	ctrl         CaptureController
	shutdownFunc func() // Called by daemon_shutdown to trigger graceful stop
	clients      func() int
	startTime    int64 // Unix timestamp of daemon start for uptime calc
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(ctrl CaptureController) *CommandHandler {
	return &CommandHandler{
		ctrl:      ctrl,
		startTime: time.Now().Unix(),
	}
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// SetClientCounter sets the source of the connected client count reported
// by daemon_status.
func (h *CommandHandler) SetClientCounter(fn func() int) {
	h.clients = fn
}

// Command represents a control plane command.
type Command struct {
	Method  string          `json:"method"` // e.g., "capture_start"
	Params  json.RawMessage `json:"params"` // command-specific parameters
	ID      string          `json:"id"`     // request ID for tracking
	Channel string          `json:"-"`      // "uds" or "kafka", for metrics
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`               // matches request ID
	Result interface{} `json:"result,omitempty"` // success result
	Error  *ErrorInfo  `json:"error,omitempty"`  // error info if failed
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInternalError  = -32603 // Internal error
)

// CaptureResult is the result of capture_start and capture_stop.
type CaptureResult struct {
	Status core.Status      `json:"status"`
	State  capture.Snapshot `json:"capture"`
}

// DaemonStatus is the result of daemon_status.
type DaemonStatus struct {
	Version   string        `json:"version"`
	UptimeSec int64         `json:"uptime_sec"`
	Clients   int           `json:"clients"`
	Capture   capture.State `json:"capture_state"`
}

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	method := cmd.Method
	if m, ok := aliases[method]; ok {
		method = m
	}

	logger := log.Component("command")
	logger.Infof("handling command %s (id=%s)", method, cmd.ID)
	if cmd.Channel != "" {
		metrics.CommandsTotal.WithLabelValues(cmd.Channel, method).Inc()
	}

	switch method {
	case MethodCaptureStart:
		status := h.ctrl.Start()
		return Response{ID: cmd.ID, Result: CaptureResult{Status: status, State: h.ctrl.Status()}}
	case MethodCaptureStop:
		status := h.ctrl.Stop()
		return Response{ID: cmd.ID, Result: CaptureResult{Status: status, State: h.ctrl.Status()}}
	case MethodCaptureStatus:
		return Response{ID: cmd.ID, Result: h.ctrl.Status()}
	case MethodDaemonStatus:
		return h.handleDaemonStatus(cmd)
	case MethodDaemonShutdown:
		return h.handleDaemonShutdown(cmd)
	default:
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("method %q not found", cmd.Method),
			},
		}
	}
}

// handleDaemonShutdown triggers graceful daemon shutdown via the registered callback.
func (h *CommandHandler) handleDaemonShutdown(cmd Command) Response {
	if h.shutdownFunc == nil {
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeInternalError,
				Message: "shutdown handler not registered",
			},
		}
	}

	log.Component("command").Info("daemon_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // Non-blocking: let the response be sent first

	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"status": "shutting_down",
		},
	}
}

func (h *CommandHandler) handleDaemonStatus(cmd Command) Response {
	clients := 0
	if h.clients != nil {
		clients = h.clients()
	}
	return Response{
		ID: cmd.ID,
		Result: DaemonStatus{
			Version:   Version,
			UptimeSec: time.Now().Unix() - h.startTime,
			Clients:   clients,
			Capture:   h.ctrl.Status().State,
		},
	}
}
