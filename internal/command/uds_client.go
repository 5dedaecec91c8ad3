package command

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/pktlive/internal/capture"
	"firestige.xyz/pktlive/internal/core"
)

// UDSClient is a JSON-RPC client over Unix Domain Socket.
type UDSClient struct {
	socketPath string
	timeout    time.Duration
}

// NewUDSClient creates a new UDS client.
func NewUDSClient(socketPath string, timeout time.Duration) *UDSClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &UDSClient{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// clientResponse keeps the result undecoded until the caller picks a type.
type clientResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// Call sends a command and decodes the result into out, which may be nil.
func (c *UDSClient) Call(ctx context.Context, method string, params, out interface{}) error {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", core.ErrDaemonNotRunning, c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	var paramsJSON json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		paramsJSON = data
	}

	reqID := uuid.NewString()
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsJSON,
		ID:      reqID,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return fmt.Errorf("connection closed without response")
	}

	var resp clientResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if got := fmt.Sprintf("%v", resp.ID); got != reqID {
		return fmt.Errorf("response ID mismatch: expected %v, got %v", reqID, got)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

// CaptureStart asks the daemon to start capture.
func (c *UDSClient) CaptureStart(ctx context.Context) (*CaptureResult, error) {
	var res CaptureResult
	if err := c.Call(ctx, MethodCaptureStart, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CaptureStop asks the daemon to stop capture.
func (c *UDSClient) CaptureStop(ctx context.Context) (*CaptureResult, error) {
	var res CaptureResult
	if err := c.Call(ctx, MethodCaptureStop, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CaptureStatus returns the controller snapshot.
func (c *UDSClient) CaptureStatus(ctx context.Context) (*capture.Snapshot, error) {
	var snap capture.Snapshot
	if err := c.Call(ctx, MethodCaptureStatus, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DaemonStatus returns daemon information.
func (c *UDSClient) DaemonStatus(ctx context.Context) (*DaemonStatus, error) {
	var st DaemonStatus
	if err := c.Call(ctx, MethodDaemonStatus, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// DaemonShutdown asks the daemon to exit.
func (c *UDSClient) DaemonShutdown(ctx context.Context) error {
	return c.Call(ctx, MethodDaemonShutdown, nil, nil)
}

// Ping checks that the daemon answers.
func (c *UDSClient) Ping(ctx context.Context) error {
	_, err := c.DaemonStatus(ctx)
	return err
}
