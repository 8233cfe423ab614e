// Package server is the live bridge: a thin browser extension mirrors the
// foreign page over a localhost WebSocket, and the organizer's mutations are
// sent back as patch operations the extension replays on the real page.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/lotas/listenordnung/internal/applog"
	"nhooyr.io/websocket"
)

// IncomingMsg is a message from the extension.
//
// Types: "document" (full page HTML + location, sent on connect and after a
// hard reload), "mutation" (nodes added/removed under a mirrored parent),
// "navigated" (SPA location change without a reload), "selected" (the user
// clicked a group card on the real page).
type IncomingMsg struct {
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
	HTML     string `json:"html,omitempty"`

	// Mutation fields. Parent is the data-lo-id of the mutated node;
	// Added holds HTML fragments of appended children; Removed holds
	// data-lo-ids of detached children.
	Parent    string   `json:"parent,omitempty"`
	ParentTag string   `json:"parentTag,omitempty"`
	Added     []string `json:"added,omitempty"`
	Removed   []string `json:"removed,omitempty"`

	// Selection fields.
	Container string `json:"container,omitempty"`
	Group     string `json:"group,omitempty"`

	// Command response fields.
	ID    string `json:"id,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// PatchOp is one operation for the extension to replay on the real page.
type PatchOp struct {
	// Op is "replace" (swap the subtree under Target), "style" (install
	// the stylesheet) or "scroll" (scroll Target into view).
	Op     string `json:"op"`
	Target string `json:"target,omitempty"` // data-lo-id
	HTML   string `json:"html,omitempty"`
}

// OutgoingMsg is a command to the extension.
type OutgoingMsg struct {
	ID     string    `json:"id"`
	Action string    `json:"action"`
	Ops    []PatchOp `json:"ops,omitempty"`
}

// Server manages the WebSocket connection to the extension. Exactly one
// extension connection is active at a time; a new connection replaces the
// old one.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
}

// New creates a new Server.
func New(port int) *Server {
	return &Server{
		port: port,
		msgs: make(chan IncomingMsg, 64),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of incoming messages from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send sends a command to the connected extension. A send without a
// connection is a silent no-op; the extension resyncs with a fresh
// "document" message when it reconnects.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	applog.Info("ws.send", "action", msg.Action, "ops", len(msg.Ops))
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // full-page mirrors can be large

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type)
			select {
			case s.msgs <- msg:
			default:
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
