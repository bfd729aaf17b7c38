package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/auth"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/events"
	"go.uber.org/zap"
)

const wsWriteTimeout = 5 * time.Second

var errWSClosed = errors.New("websocket closed")

// wsClient serializes writes to one socket. The websocket connection allows a
// single writer, while events arrive from several subscriber goroutines. The
// connection is recycled once HandleWS returns, so nothing is written after
// close.
type wsClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errWSClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	_ = c.conn.Close()
}

// WSHub pushes session events to that session's sockets and contract events
// to every socket.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*wsClient
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	if err := h.subscriber.Subscribe(ctx, events.StreamSession, func(event events.Event) {
		h.SendToSession(event.SessionID, event)
	}); err != nil {
		return err
	}
	return h.subscriber.Subscribe(ctx, events.StreamContract, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	var targets []*wsClient
	for _, clients := range h.connections {
		targets = append(targets, clients...)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.write(data)
	}
}

func (h *WSHub) SendToSession(sessionID string, event events.Event) {
	if sessionID == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := append([]*wsClient(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.write(data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	sessionID := claims.SessionID
	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.connections[sessionID] = append(h.connections[sessionID], client)
	h.mu.Unlock()
	h.log.Debug("ws connected", zap.String("session_id", sessionID))

	defer func() {
		h.mu.Lock()
		clients := h.connections[sessionID]
		for i, c := range clients {
			if c == client {
				h.connections[sessionID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(h.connections[sessionID]) == 0 {
			delete(h.connections, sessionID)
		}
		h.mu.Unlock()

		client.close()
	}()

	// read loop keeps the socket alive until the client leaves
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
