package handlers

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewo-market/gateway/internal/auth"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/events"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*WSHub, *events.LocalBus, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{JWTSecret: "secret"}
	bus := events.NewLocalBus()
	hub := NewWSHub(cfg, bus, zap.NewNop())
	require.NoError(t, hub.Start(ctx))

	app := fiber.New()
	app.Get("/ws", WSUpgradeMiddleware(), websocket.New(hub.HandleWS))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return hub, bus, "ws://" + ln.Addr().String() + "/ws"
}

func dialSession(t *testing.T, hub *WSHub, url, sessionID string) *fastws.Conn {
	t.Helper()
	token, err := auth.GenerateJWT("secret", sessionID, time.Hour)
	require.NoError(t, err)

	conn, _, err := fastws.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.connections[sessionID]) == 1
	}, 2*time.Second, 5*time.Millisecond)
	return conn
}

func TestWSHub_ConcurrentPublishers(t *testing.T) {
	hub, bus, url := startHub(t)
	conn := dialSession(t, hub, url, "s1")

	const (
		publishers = 8
		perWorker  = 50
	)

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if (i+j)%2 == 0 {
					_ = bus.Publish(context.Background(), events.StreamSession, events.Event{Type: events.EventNotification, SessionID: "s1"})
				} else {
					_ = bus.Publish(context.Background(), events.StreamContract, events.Event{Type: events.EventContract})
				}
			}
		}(i)
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	received := 0
	for received < publishers*perWorker {
		_, _, err := conn.ReadMessage()
		require.NoError(t, err)
		received++
	}
	wg.Wait()
	assert.Equal(t, publishers*perWorker, received)
}

func TestWSHub_SessionEventsStayInSession(t *testing.T) {
	hub, bus, url := startHub(t)
	mine := dialSession(t, hub, url, "s1")
	other := dialSession(t, hub, url, "s2")

	require.NoError(t, bus.Publish(context.Background(), events.StreamSession, events.Event{Type: events.EventNotification, SessionID: "s1"}))
	require.NoError(t, bus.Publish(context.Background(), events.StreamContract, events.Event{Type: events.EventContract}))

	require.NoError(t, mine.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, first, err := mine.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(first), events.EventNotification)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, only, err := other.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(only), events.EventContract)
}

func TestWSHub_NoWriteAfterDisconnect(t *testing.T) {
	hub, bus, url := startHub(t)
	conn := dialSession(t, hub, url, "s1")
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.connections) == 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.NotPanics(t, func() {
		_ = bus.Publish(context.Background(), events.StreamContract, events.Event{Type: events.EventContract})
	})
}
