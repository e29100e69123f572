package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verdantlabs/pestguard-core/internal/infrastructure/config"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBufferSize is the per-client outbound buffer. Clients that
// cannot drain this fast enough are disconnected.
const wsSendBufferSize = 256

// WSMessage is the envelope for all WebSocket traffic in both
// directions.
type WSMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload carries the channel list for subscribe and
// unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsEvent is the outbound event envelope pushed to subscribers.
type wsEvent struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// Hub manages connected WebSocket clients and fans events out to
// them by channel subscription.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	closed  bool
}

// NewHub creates a WebSocket hub with the given configuration.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
}

// Unregister removes a client from the hub. Only the goroutine that
// successfully removes the client closes its send channel, so
// concurrent unregister calls are safe.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if present {
		close(c.send)
	}
}

// Broadcast sends an event to every client subscribed to the given
// channel. Clients with full send buffers are skipped.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(wsEvent{
		Type:    WSTypeEvent,
		Channel: channel,
		Payload: payload,
	})
	if err != nil {
		h.logger.Error("marshalling broadcast event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.subscribed(channel) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.trySend(data)
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
	h.closed = true
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

// WSClient is a single WebSocket connection with its channel
// subscriptions.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
}

func newWSClient(hub *Hub, conn *websocket.Conn) *WSClient {
	return &WSClient{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
}

func (c *WSClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// trySend queues data for delivery without blocking. A send on a
// closed channel is absorbed by the recover; the write pump is
// already tearing the client down at that point.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- data:
	default:
	}
}

// readPump reads inbound messages until the connection drops, then
// unregisters the client.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	pongWait := time.Duration(c.hub.cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

// writePump drains the send channel to the connection and sends
// periodic pings.
func (c *WSClient) writePump() {
	pingInterval := time.Duration(c.hub.cfg.PingInterval) * time.Second
	writeWait := 10 * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg.Payload)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg.Payload)
	case WSTypePing:
		c.sendResponse(WSTypePong, nil)
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (c *WSClient) handleSubscribe(payload json.RawMessage) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(payload, &sub); err != nil {
		c.sendError("invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.channels[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.sendResponse(WSTypeResponse, map[string]any{"subscribed": sub.Channels})
}

func (c *WSClient) handleUnsubscribe(payload json.RawMessage) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(payload, &sub); err != nil {
		c.sendError("invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.channels, ch)
	}
	c.mu.Unlock()

	c.sendResponse(WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

func (c *WSClient) sendResponse(msgType string, payload any) {
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(message string) {
	data, err := json.Marshal(map[string]any{
		"type":    WSTypeError,
		"payload": map[string]string{"message": message},
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement is handled by the CORS middleware on the
	// REST routes; the rig API is deployed on trusted networks.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and registers the client
// with the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "websocket hub not running")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn)
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}
