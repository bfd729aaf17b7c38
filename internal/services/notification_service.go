package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tewo-market/gateway/internal/events"
	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
)

// NotificationService keeps at most one transient banner per session. A
// banner clears itself after the TTL.
type NotificationService struct {
	ttl       time.Duration
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	current map[string]models.PendingNotification
	timers  map[string]*time.Timer
}

func NewNotificationService(ttl time.Duration, publisher events.Publisher, log *zap.Logger) *NotificationService {
	if ttl <= 0 {
		ttl = 400 * time.Millisecond
	}
	return &NotificationService{
		ttl:       ttl,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		current:   make(map[string]models.PendingNotification),
		timers:    make(map[string]*time.Timer),
	}
}

// Notify replaces the session's banner with message.
func (s *NotificationService) Notify(ctx context.Context, sessionID, message string) models.PendingNotification {
	n := models.PendingNotification{
		ID:        uuid.New(),
		Message:   message,
		Visible:   true,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
	}
	s.current[sessionID] = n
	s.timers[sessionID] = time.AfterFunc(s.ttl, func() { s.expire(sessionID, n.ID) })
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.StreamSession, events.Event{
			Type:      events.EventNotification,
			SessionID: sessionID,
			Payload: map[string]any{
				"id":         n.ID.String(),
				"message":    n.Message,
				"expires_at": n.ExpiresAt,
			},
		}); err != nil {
			s.log.Debug("notification publish failed", zap.Error(err))
		}
	}
	return n
}

// NotifyError logs err and shows its user-safe message.
func (s *NotificationService) NotifyError(ctx context.Context, sessionID string, err error) models.PendingNotification {
	s.log.Warn("gateway call failed", zap.String("session_id", sessionID), zap.Error(err))
	return s.Notify(ctx, sessionID, UserMessage(err))
}

// Current returns the visible banner of a session, if any.
func (s *NotificationService) Current(sessionID string) (models.PendingNotification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.current[sessionID]
	if !ok || !s.now().Before(n.ExpiresAt) {
		return models.PendingNotification{}, false
	}
	return n, true
}

func (s *NotificationService) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
	delete(s.current, sessionID)
}

func (s *NotificationService) expire(sessionID string, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// a newer banner may have replaced this one
	if n, ok := s.current[sessionID]; ok && n.ID == id {
		delete(s.current, sessionID)
		delete(s.timers, sessionID)
	}
}

// UserMessage maps an error to the short text shown in the banner. Technical
// details never leave the log.
func UserMessage(err error) string {
	var invalid models.ErrInvalidInput
	var callErr *models.ContractCallError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrWalletUnavailable), errors.Is(err, models.ErrNoProvider):
		return "No wallet detected. Please install a wallet to continue."
	case errors.Is(err, models.ErrUserRejected):
		return "Request rejected in your wallet."
	case errors.Is(err, models.ErrNotConnected):
		return "Connect your wallet first."
	case errors.Is(err, models.ErrTxStatusUnknown):
		return "Transaction status unknown. Check your wallet before trying again."
	case errors.Is(err, models.ErrInvalidID):
		return "That item does not exist."
	case errors.Is(err, models.ErrInvalidAmount):
		return "Invalid amount."
	case errors.Is(err, models.ErrOracleUnavailable):
		return "Prices are temporarily unavailable."
	case errors.Is(err, models.ErrNameNotFound):
		return "Name not found."
	case errors.Is(err, models.ErrSessionClosed):
		return "Your session has ended. Please sign in again."
	case errors.As(err, &invalid):
		return "Invalid " + invalid.Field + "."
	case errors.As(err, &callErr):
		return "Transaction failed. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
