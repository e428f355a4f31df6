package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
	"github.com/neuropharmdb-server/internal/middleware"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	sendBuffer   = 64
	eventAlert   = "alert.created"
	eventWelcome = "stream.ready"
)

// AlertEvent is pushed to the owner's websocket connections
type AlertEvent struct {
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Alert     *domain.Alert `json:"alert,omitempty"`
}

type streamClient struct {
	id     string
	userID string
	send   chan []byte
}

// Hub fans committed alerts out to the websocket connections of their owner.
// It implements domain.AlertNotifier.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*streamClient]struct{} // user id -> connections
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewHub creates an empty hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) register(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*streamClient]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// NotifyAlert queues the alert for every connection of its owner. Slow
// connections drop the event rather than block the engine.
func (h *Hub) NotifyAlert(_ context.Context, alert *domain.Alert) {
	data, err := json.Marshal(AlertEvent{Type: eventAlert, Timestamp: time.Now().UTC(), Alert: alert})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal alert event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[alert.UserID] {
		select {
		case c.send <- data:
		default:
			h.logger.WithFields(logrus.Fields{
				"client_id": c.id,
				"user_id":   c.userID,
			}).Warn("Alert stream buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connections of a user
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// HandleStream upgrades the request and streams the caller's alerts
func (h *Hub) HandleStream(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		middleware.Abort(c, http.StatusUnauthorized, domain.ErrCodeUnauthenticated, "no session")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := &streamClient{id: uuid.NewString(), userID: sess.UserID, send: make(chan []byte, sendBuffer)}
	h.register(client)

	h.logger.WithFields(logrus.Fields{
		"client_id": client.id,
		"user_id":   client.userID,
	}).Info("Alert stream opened")

	if ready, err := json.Marshal(AlertEvent{Type: eventWelcome, Timestamp: time.Now().UTC()}); err == nil {
		client.send <- ready
	}

	go h.writePump(client, conn)
	go h.readPump(client, conn)
}

// readPump discards client messages and detects disconnects
func (h *Hub) readPump(c *streamClient, conn *websocket.Conn) {
	defer func() {
		h.unregister(c)
		conn.Close()
		h.logger.WithField("client_id", c.id).Info("Alert stream closed")
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *streamClient, conn *websocket.Conn) {
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
