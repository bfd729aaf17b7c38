package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Event types
const (
	EventNotification  = "notification"
	EventWalletChanged = "wallet_changed"
	EventTxSubmitted   = "tx_submitted"
	EventContract      = "contract_event"
)

// Streams. Session events carry SessionID and are delivered to that
// session's sockets only; contract events go to everyone.
const (
	StreamSession  = "events:session"
	StreamContract = "events:contract"
)

type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// deliver runs handler and contains its panics. Subscriber goroutines are
// shared by every handler on a stream, so a panic must not end them. log may
// be nil.
func deliver(stream string, event Event, handler func(Event), log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil && log != nil {
			log.Error("event handler panicked",
				zap.String("stream", stream),
				zap.String("type", event.Type),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	handler(event)
}
