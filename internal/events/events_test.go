package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisPubSub_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	sub := NewRedisSubscriber(client, zap.NewNop())
	require.NoError(t, sub.Subscribe(ctx, StreamSession, func(e Event) { got <- e }))

	pub := NewRedisPublisher(client, zap.NewNop())
	require.NoError(t, pub.Publish(ctx, StreamSession, Event{
		Type:      EventWalletChanged,
		SessionID: "s1",
		Payload:   map[string]any{"account": "0x01"},
	}))

	select {
	case e := <-got:
		assert.Equal(t, EventWalletChanged, e.Type)
		assert.Equal(t, "s1", e.SessionID)
		assert.Equal(t, "0x01", e.Payload["account"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	var received []Event
	require.NoError(t, bus.Subscribe(ctx, StreamContract, func(e Event) { received = append(received, e) }))

	require.NoError(t, bus.Publish(context.Background(), StreamContract, Event{Type: EventContract}))
	require.NoError(t, bus.Publish(context.Background(), StreamSession, Event{Type: EventNotification}))
	require.Len(t, received, 1)
	assert.Equal(t, EventContract, received[0].Type)

	cancel()
	assert.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.handlers[StreamContract]) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRedisSubscriber_SurvivesHandlerPanic(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	sub := NewRedisSubscriber(client, zap.NewNop())
	require.NoError(t, sub.Subscribe(ctx, StreamContract, func(e Event) {
		if e.Type == "boom" {
			panic("handler failed")
		}
		got <- e
	}))

	pub := NewRedisPublisher(client, zap.NewNop())
	require.NoError(t, pub.Publish(ctx, StreamContract, Event{Type: "boom"}))
	require.NoError(t, pub.Publish(ctx, StreamContract, Event{Type: EventContract}))

	select {
	case e := <-got:
		assert.Equal(t, EventContract, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber stopped after a handler panic")
	}
}

func TestLocalBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	require.NoError(t, bus.Subscribe(ctx, StreamSession, func(Event) { panic("handler failed") }))
	require.NoError(t, bus.Subscribe(ctx, StreamSession, func(Event) { calls++ }))

	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(context.Background(), StreamSession, Event{Type: EventNotification}))
	})
	assert.Equal(t, 1, calls)
}
