// Package realtime pushes messages to dashboards connected over websocket.
package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var ErrHubClosed = errors.New("hub closed")

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agency_realtime_clients",
		Help: "Websocket clients currently connected.",
	})
	droppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agency_realtime_dropped_total",
		Help: "Messages not queued because the client's buffer was full.",
	})
)

// Envelope is the frame written to clients.
type Envelope struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

type client struct {
	principal string
	topics    map[string]struct{}
	send      chan []byte
}

// wants reports whether c subscribed to topic. No topics means all.
func (c *client) wants(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	_, ok := c.topics[topic]
	return ok
}

// Hub fans broadcasts out to connected clients. A client whose buffer is
// full misses the message; the broadcaster never waits.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub accepts upgrades from allowedOrigins; "*" or an empty list allows any.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger.Named("realtime"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Broadcast queues payload for every client subscribed to topic.
func (h *Hub) Broadcast(topic string, payload any) error {
	msg, err := json.Marshal(Envelope{Topic: topic, Data: payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			droppedMessages.Inc()
			h.logger.Debug("dropping message for slow client",
				zap.String("principal", c.principal),
				zap.String("topic", topic),
			)
		}
	}
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	connectedClients.Inc()
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		connectedClients.Dec()
	}
}

// Close disconnects every client and rejects further broadcasts.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		connectedClients.Dec()
	}
}

// ServeWS upgrades the request and streams broadcasts until the client goes
// away. The comma separated ?topics= query narrows the subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, principal string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		principal: principal,
		topics:    parseTopics(r.URL.Query().Get("topics")),
		send:      make(chan []byte, sendBuffer),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.Info("client connected", zap.String("principal", principal))

	go h.writePump(conn, c)
	h.readPump(conn, c)
	h.logger.Info("client disconnected", zap.String("principal", principal))
}

func parseTopics(raw string) map[string]struct{} {
	topics := make(map[string]struct{})
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[t] = struct{}{}
		}
	}
	return topics
}

// readPump discards client frames and keeps the read deadline alive on pong.
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.unregister(c)
		conn.Close()
	}()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("principal", c.principal), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
