package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's websocket frame.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type network struct {
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid"`
	SignalDBM int    `json:"signal_dbm"`
	Bars      int    `json:"bars"`
	AuthLabel string `json:"auth_label"`
}

type menu struct {
	Networks     []network `json:"networks"`
	Cursor       int       `json:"cursor"`
	HasSelection bool      `json:"has_selection"`
	Scanning     bool      `json:"scanning"`
	Round        uint64    `json:"round"`
}

type roundCompleted struct {
	Round      uint64 `json:"round"`
	Networks   int    `json:"networks"`
	DurationMS int64  `json:"duration_ms"`
}

type connectResult struct {
	SSID  string `json:"ssid"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/ws", "patroscan state websocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of the menu")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	// The daemon pings every 20s.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var last string
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Printf("%s\n", message)
				continue
			}
			last = handleFrame(os.Stdout, message, last)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleFrame prints one frame. Menu frames are printed only when the rendered
// text differs from last (scroll animation alone is not shown); it returns the
// text printed for the latest menu.
func handleFrame(w io.Writer, message []byte, last string) string {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Fprintf(w, "[TEXT] %s\n", message)
		return last
	}

	switch env.Type {
	case "state_init", "menu_changed":
		var m menu
		if err := json.Unmarshal(env.Data, &m); err != nil {
			fmt.Fprintf(w, "[%s] bad payload: %v\n", env.Type, err)
			return last
		}
		text := renderMenu(m)
		if text != last {
			fmt.Fprint(w, text)
		}
		return text

	case "round_completed":
		var rc roundCompleted
		if err := json.Unmarshal(env.Data, &rc); err == nil {
			fmt.Fprintf(w, "[ROUND] #%d: %d networks in %dms\n", rc.Round, rc.Networks, rc.DurationMS)
		}

	case "connect_result":
		var cr connectResult
		if err := json.Unmarshal(env.Data, &cr); err == nil {
			if cr.OK {
				fmt.Fprintf(w, "[CONNECT] %s: ok\n", cr.SSID)
			} else {
				fmt.Fprintf(w, "[CONNECT] %s: %s\n", cr.SSID, cr.Error)
			}
		}

	default:
		fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(env.Type), env.Data)
	}
	return last
}

func renderMenu(m menu) string {
	var b strings.Builder
	status := "idle"
	if m.Scanning {
		status = "scanning"
	}
	fmt.Fprintf(&b, "---- Networks found (%d), round %d, %s ----\n", len(m.Networks), m.Round, status)
	for i, n := range m.Networks {
		mark := " "
		if m.HasSelection && i == m.Cursor {
			mark = ">"
		}
		fmt.Fprintf(&b, "%s %-32s %4ddBm %-5s %s\n", mark, n.SSID, n.SignalDBM, strings.Repeat("|", n.Bars), n.AuthLabel)
	}
	return b.String()
}
