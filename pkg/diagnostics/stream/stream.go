// Package stream pushes diagnostics to connected websocket clients for
// `bpcompile compile --watch`, which pushes each recompile's diagnostics
// once that recompile finishes. It mirrors the
// channel-and-goroutine shape of the teacher's Loki log tailer, just on
// the serving side instead of the dialing side.
package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/architect-io/bpcompile/pkg/diagnostics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The CLI serves localhost-only by default; any origin is accepted
	// since there is no cookie-based auth to protect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans a diagnostic out to every currently connected watcher.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan diagnostics.Diagnostic
}

// NewHub creates an empty hub with no connected clients.
func NewHub() *Hub {
	return &Hub{clients: map[*client]bool{}}
}

// Broadcast fans d out to every connected client's send queue. A client
// whose queue is full is dropped rather than blocking the compiler.
func (h *Hub) Broadcast(d diagnostics.Diagnostic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- d:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the connection to a websocket and streams every
// diagnostic broadcast from here on until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("diagnostics stream: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan diagnostics.Diagnostic, 64)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop does nothing with incoming messages but must drain them so
// the client's pong/close control frames are processed; it exits (and
// unregisters the client) once the connection closes.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for d := range c.send {
		if err := c.conn.WriteJSON(wireDiagnostic(d)); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// wireLabel and wireDiagnostic are the JSON shape pushed to watchers;
// kept distinct from diagnostics.Diagnostic so the wire format can
// change independently of the in-process type.
type wireLabel struct {
	File      string `json:"file"`
	ByteStart int    `json:"byte_start"`
	ByteEnd   int    `json:"byte_end"`
	Message   string `json:"message"`
}

type wireDiag struct {
	ID       string      `json:"id"`
	Severity string      `json:"severity"`
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Labels   []wireLabel `json:"labels"`
	Help     string      `json:"help,omitempty"`
}

func wireDiagnostic(d diagnostics.Diagnostic) wireDiag {
	labels := make([]wireLabel, len(d.Labels))
	for i, l := range d.Labels {
		labels[i] = wireLabel{
			File:      l.Span.File,
			ByteStart: l.Span.ByteStart,
			ByteEnd:   l.Span.ByteEnd,
			Message:   l.Message,
		}
	}
	return wireDiag{
		ID:       d.ID,
		Severity: d.Severity.String(),
		Code:     d.Code,
		Message:  d.Message,
		Labels:   labels,
		Help:     d.Help,
	}
}

// Sink wraps a diagnostics.Sink so every Push is also broadcast to
// connected watchers, without changing how the compiler pipeline uses
// the sink as a stage gate.
type Sink struct {
	*diagnostics.Sink
	hub *Hub
}

// NewSink wraps sink so pushes are mirrored to hub.
func NewSink(sink *diagnostics.Sink, hub *Hub) *Sink {
	return &Sink{Sink: sink, hub: hub}
}

// Push records d in the underlying sink and broadcasts it to every
// connected watcher.
func (s *Sink) Push(d diagnostics.Diagnostic) {
	s.Sink.Push(d)
	s.hub.Broadcast(d)
}

// marshalForTest exposes wireDiagnostic's JSON shape for tests without
// requiring a live websocket connection.
func marshalForTest(d diagnostics.Diagnostic) ([]byte, error) {
	return json.Marshal(wireDiagnostic(d))
}
