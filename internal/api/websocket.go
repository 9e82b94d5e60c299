package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scandeck/scandeck/internal/metrics"
	"github.com/scandeck/scandeck/internal/store"
)

const (
	// Time allowed to write a message to a peer.
	writeWait = 10 * time.Second
	// Time to read the next pong message from a peer.
	pongWait = 60 * time.Second
	// Ping interval; must be shorter than pongWait.
	pingPeriod = 54 * time.Second
	// Maximum message size allowed from a peer.
	maxMessageSize = 512
)

// WebSocketMessage is the frame pushed to connected clients whenever a
// store record changes. Clients re-fetch the referenced record.
type WebSocketMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocketHandler relays store change events to connected clients.
type WebSocketHandler struct {
	store    *store.Store
	logger   *slog.Logger
	prom     *metrics.PrometheusMetrics
	metrics  metrics.MetricsRegistry
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	shutdown chan struct{}
	once     sync.Once
}

// NewWebSocketHandler creates a WebSocket relay bound to the store's
// event feed and starts its pump goroutine.
func NewWebSocketHandler(st *store.Store, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		store:   st,
		logger:  logger.With("handler", "websocket"),
		prom:    metrics.GetGlobalMetrics(),
		metrics: metrics.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The console UI is served from arbitrary dev origins.
				return true
			},
		},
		clients:  make(map[*websocket.Conn]bool),
		shutdown: make(chan struct{}),
	}

	go h.run()
	return h
}

// run pumps store events and periodic pings to all connected clients.
func (h *WebSocketHandler) run() {
	events, cancel := h.store.Subscribe()
	defer cancel()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-h.shutdown:
			h.closeAll()
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			msg := WebSocketMessage{
				Type:      string(event.Kind),
				ID:        event.ID,
				Timestamp: time.Now().UTC(),
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("Failed to marshal event", "error", err)
				continue
			}
			h.broadcast(websocket.TextMessage, data)
		case <-pingTicker.C:
			h.broadcast(websocket.PingMessage, nil)
		}
	}
}

// broadcast writes a frame to every client, dropping clients whose
// writes fail.
func (h *WebSocketHandler) broadcast(messageType int, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(messageType, data); err != nil {
			h.logger.Debug("Dropping WebSocket client", "error", err)
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
	h.prom.SetWebSocketClients(len(h.clients))
}

func (h *WebSocketHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		delete(h.clients, conn)
	}
	h.prom.SetWebSocketClients(0)
}

// Serve upgrades an HTTP request to a WebSocket connection and streams
// store change events until the client disconnects.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	h.logger.Info("WebSocket client connected", "remote_addr", r.RemoteAddr)

	h.mu.Lock()
	h.clients[conn] = true
	h.prom.SetWebSocketClients(len(h.clients))
	h.mu.Unlock()
	h.metrics.Counter("websocket_connections_total", nil)

	// Reader loop: clients only send pongs and close frames.
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.prom.SetWebSocketClients(len(h.clients))
			h.mu.Unlock()
			_ = conn.Close()
			h.metrics.Counter("websocket_disconnects_total", nil)
			h.logger.Info("WebSocket client disconnected", "remote_addr", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Shutdown closes all client connections and stops the pump.
func (h *WebSocketHandler) Shutdown() {
	h.once.Do(func() { close(h.shutdown) })
}
