package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dewansh/dewhome-core/internal/infrastructure/config"
	"github.com/dewansh/dewhome-core/internal/infrastructure/logging"
)

// Client message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256

	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30 * time.Second
	defaultWSPongTimeout    = 10 * time.Second
)

// WSMessage is the envelope for every frame in either direction. For
// server events Type is the event name, e.g. "device.state_changed".
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe messages.
type WSSubscribePayload struct {
	Events []string `json:"events"`
}

// wsLimits are the per-connection limits resolved from the websocket config.
type wsLimits struct {
	maxMessageSize int64
	pingEvery      time.Duration
	pongWait       time.Duration
}

func newWSLimits(cfg config.WebSocketConfig) wsLimits {
	l := wsLimits{
		maxMessageSize: defaultWSMaxMessageSize,
		pingEvery:      defaultWSPingInterval,
		pongWait:       defaultWSPongTimeout,
	}
	if cfg.MaxMessageSize > 0 {
		l.maxMessageSize = int64(cfg.MaxMessageSize)
	}
	if cfg.PingInterval > 0 {
		l.pingEvery = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		l.pongWait = time.Duration(cfg.PongTimeout) * time.Second
	}
	return l
}

// readDeadline is how long a client may stay silent, pongs included.
func (l wsLimits) readDeadline() time.Duration {
	return l.pingEvery + l.pongWait
}

// encodeWS builds one outbound frame stamped with the current time.
func encodeWS(msgType, id string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Hub tracks WebSocket clients and fans device and action events out to them.
type Hub struct {
	limits  wsLimits
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one connected WebSocket client. A new client receives every
// event; a subscribe message narrows it to the listed event types.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	filter map[string]struct{}
	mu     sync.RWMutex
}

// upgrader refuses handshakes from browser origins the API does not allow.
func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(r, origin)
		},
	}
}

// NewHub creates a WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		limits:  newWSLimits(cfg),
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client. Only the caller that removes it from the
// map closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast sends an event to every client interested in eventType.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := encodeWS(eventType, "", payload)
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.wants(eventType) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
// Authentication, when enabled, has already happened in authMiddleware.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := c.hub.limits.readDeadline()
	c.conn.SetReadLimit(c.hub.limits.maxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Any client frame counts as liveness
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.hub.limits.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := c.hub.limits.pongWait
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type    string             `json:"type"`
		ID      string             `json:"id"`
		Payload WSSubscribePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.subscribe(msg.Payload.Events)
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"subscribed": msg.Payload.Events})
	case WSTypeUnsubscribe:
		c.unsubscribe(msg.Payload.Events)
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": msg.Payload.Events})
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) subscribe(events []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter == nil {
		c.filter = make(map[string]struct{}, len(events))
	}
	for _, e := range events {
		c.filter[e] = struct{}{}
	}
}

// unsubscribe removes event types. Unsubscribing everything restores the
// receive-all default.
func (c *WSClient) unsubscribe(events []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		delete(c.filter, e)
	}
	if len(c.filter) == 0 {
		c.filter = nil
	}
}

func (c *WSClient) wants(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.filter == nil {
		return true
	}
	_, ok := c.filter[eventType]
	return ok
}

// trySend queues data for the client, dropping it when the buffer is full
// or the client has already gone.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	if data, err := encodeWS(msgType, id, payload); err == nil {
		c.trySend(data)
	}
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
