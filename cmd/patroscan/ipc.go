package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// patroctl and scripts drive the menu remotely through a Unix domain socket.
//
// Protocol: Line-delimited JSON, one reply per line
//   - Client sends: {"type": "move_cursor", "data": {"delta": 1}}
//   - Server responds: {"status": "ok", "event": "move_cursor"}
//     or {"status": "error", "event": "tick", "error": "msg"}
//
// Accepted types: move_cursor, confirm, rescan. "event" echoes the type the
// server saw, when it could read one.
// ============================================================================

const (
	ipcMaxLine     = 4 << 10
	ipcIdleTimeout = 5 * time.Minute
)

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string `json:"status"`          // "ok" or "error"
	Event  string `json:"event,omitempty"` // type of the action this replies to
	Error  string `json:"error,omitempty"` // error message if status == "error"
}

type ipcServer struct {
	events  chan<- Event
	metrics *Metrics // optional
	logger  *slog.Logger
}

// runIPCServer serves the socket until ctx is canceled. metrics may be nil.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, metrics *Metrics, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Owner and group only.
	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger = logger.With("socket", socketPath)
	logger.Info("IPC listening")

	// Closing the listener unblocks Accept.
	stopClose := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stopClose()

	srv := &ipcServer{events: events, metrics: metrics, logger: logger}
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}
		go srv.serve(ctx, conn)
	}
}

// serve answers one client until it disconnects, goes idle or the server
// stops. Events are forwarded without blocking.
func (s *ipcServer) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	logger := s.logger.With("remote_addr", conn.RemoteAddr().String())
	logger.Debug("IPC connection")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), ipcMaxLine)
	encoder := json.NewEncoder(conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(ipcIdleTimeout))
		if !scanner.Scan() {
			break
		}
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))

		resp := s.handleLine(line)
		if err := encoder.Encode(resp); err != nil {
			logger.Warn("IPC failed to send response", "event", resp.Event, "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logger.Debug("IPC connection ended", "error", err)
		return
	}
	logger.Debug("IPC connection closed")
}

// handleLine decodes one request line and offers it to the daemon.
func (s *ipcServer) handleLine(line []byte) IPCResponse {
	ev, err := UnmarshalEvent(line)
	if err != nil {
		// Best effort: name what the client tried to send.
		var env EventEnvelope
		_ = json.Unmarshal(line, &env)
		return IPCResponse{Status: "error", Event: env.Type, Error: fmt.Sprintf("parse event: %v", err)}
	}

	name := eventName(ev)
	select {
	case s.events <- ev:
		return IPCResponse{Status: "ok", Event: name}
	default:
		if s.metrics != nil {
			s.metrics.Dropped("ipc")
		}
		s.logger.Warn("event queue full, dropping IPC event", "event", name)
		return IPCResponse{Status: "error", Event: name, Error: fmt.Sprintf("event queue full, %s dropped", name)}
	}
}

// SendIPCEvent sends one action to the daemon and waits for its reply.
func SendIPCEvent(socketPath string, ev Event) error {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return fmt.Errorf("ipc error (%s): %s", resp.Event, resp.Error)
	}

	return nil
}
