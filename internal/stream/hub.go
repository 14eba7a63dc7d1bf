// Package stream pushes analysis and connectivity events to browser views
// over WebSocket.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/decisions/internal/analysis"
	"github.com/ashureev/decisions/internal/connectivity"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	EventAnalysis     = "analysis"
	EventConnectivity = "connectivity"

	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Event is one message on the stream.
type Event struct {
	Type         string               `json:"type"`
	Analysis     *analysis.State      `json:"analysis,omitempty"`
	Connectivity *connectivity.Status `json:"connectivity,omitempty"`
}

// AnalysisEvent wraps a run state.
func AnalysisEvent(st analysis.State) Event {
	return Event{Type: EventAnalysis, Analysis: &st}
}

// ConnectivityEvent wraps a gate status.
func ConnectivityEvent(st connectivity.Status) Event {
	return Event{Type: EventConnectivity, Connectivity: &st}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected views and fans events out to them.
type Hub struct {
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
	// Snapshot, when set, returns the events queued for a view as it
	// registers, ahead of any later broadcast. It must not call Broadcast.
	Snapshot func() []Event

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a hub accepting the given origins ("*" for any).
func NewHub(allowedOrigins []string, isDev bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
		clients:        make(map[string]*client),
	}
}

// Count returns the number of connected views.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues ev for every connected view. A view whose queue is full
// misses the event rather than stalling the others.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode stream event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Stream client lagging, event dropped", "conn_id", id, "type", ev.Type)
		}
	}
}

// CloseAll disconnects every view.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for id, c := range h.clients {
		conns = append(conns, c.conn)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// register adds c and queues the snapshot under the same lock, so no event
// published after the snapshot was taken can be missed or overtaken.
func (h *Hub) register(id string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = c
	if h.Snapshot != nil {
		for _, ev := range h.Snapshot() {
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to encode snapshot event", "type", ev.Type, "error", err)
				continue
			}
			select {
			case c.send <- data:
			default:
				h.logger.Warn("Snapshot exceeds stream buffer, event dropped", "conn_id", id, "type", ev.Type)
			}
		}
	}
	h.logger.Info("Stream client registered", "conn_id", id)
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		h.logger.Info("Stream client unregistered", "conn_id", id)
	}
}

// ServeHTTP upgrades the request and streams events until either side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	id := uuid.NewString()
	c := &client{conn: ws, send: make(chan []byte, sendBuffer)}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.register(id, c)
	defer h.unregister(id)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, ws, c.send)
	}()

	h.readLoop(ctx, ws, id)
	cancel()
	wg.Wait()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

// readLoop answers pings and returns when the view goes away.
func (h *Hub) readLoop(ctx context.Context, ws *websocket.Conn, id string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed", "conn_id", id)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "conn_id", id)
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := h.writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				h.logger.Debug("Failed to send pong", "error", err)
			}
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, ws *websocket.Conn, send <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Debug("WebSocket write error", "error", err)
				return
			}
		}
	}
}

func (h *Hub) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
