package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// patroctl - Command-line IPC Client
// ============================================================================
// Drives the patroscan menu over its Unix domain socket.
//
// Usage:
//   patroctl up
//   patroctl down 3
//   patroctl confirm
//   patroctl rescan
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/patroscan.sock)
// ============================================================================

// Action types (duplicated from the daemon for a standalone binary)
type Action interface{}

type MoveCursor struct {
	Delta int `json:"delta"`
}

type Confirm struct{}

type Rescan struct{}

// ActionEnvelope wraps actions for JSON
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := "/tmp/patroscan.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	action, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}
	if action == nil {
		printUsage()
		return
	}

	if err := sendAction(socketPath, action); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// parseCommand maps CLI arguments to an action. It returns nil for help.
func parseCommand(args []string) (Action, error) {
	steps := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step count %q", args[1])
		}
		steps = n
	}

	switch args[0] {
	case "up":
		return MoveCursor{Delta: -steps}, nil
	case "down":
		return MoveCursor{Delta: steps}, nil
	case "confirm", "select":
		return Confirm{}, nil
	case "rescan", "scan":
		return Rescan{}, nil
	case "help", "-h", "--help":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func sendAction(socketPath string, action Action) error {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalAction(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send action: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if response.Status != "ok" {
		return fmt.Errorf("daemon rejected %s: %s", response.Event, response.Error)
	}
	return nil
}

func marshalAction(action Action) ([]byte, error) {
	var env ActionEnvelope

	switch a := action.(type) {
	case MoveCursor:
		env.Type = "move_cursor"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal MoveCursor: %w", err)
		}
		env.Data = data

	case Confirm:
		env.Type = "confirm"

	case Rescan:
		env.Type = "rescan"

	default:
		return nil, fmt.Errorf("unknown action type: %T", action)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `patroctl - Control the patroscan menu via IPC

Usage:
  patroctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/patroscan.sock)

Commands:
  up [N]                  Move the cursor up N rows (default 1)
  down [N]                Move the cursor down N rows (default 1)
  confirm, select         Connect to the selected network
  rescan, scan            Start the next scan round now (ignored while scanning)
  help, -h, --help        Show this help message

Examples:
  patroctl down 2
  patroctl confirm
  patroctl -socket /run/patroscan.sock rescan
`)
}
