package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/auth"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/middleware"
	"github.com/tewo-market/gateway/internal/services"
	"github.com/tewo-market/gateway/internal/session"
	"go.uber.org/zap"
)

type SessionHandler struct {
	scope    *Scope
	sessions *session.Registry
	notify   *services.NotificationService
	cfg      *config.Config
	log      *zap.Logger
}

func NewSessionHandler(scope *Scope, sessions *session.Registry, notify *services.NotificationService, cfg *config.Config, log *zap.Logger) *SessionHandler {
	return &SessionHandler{scope: scope, sessions: sessions, notify: notify, cfg: cfg, log: log}
}

// Create opens a session and issues its token.
// POST /sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	s := h.sessions.Create()

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, s.ID, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to sign session token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.SessionResponse{
		Token:     token,
		SessionID: s.ID,
		ExpiresAt: time.Now().Add(h.cfg.JWTExpiration),
		Wallet:    s.Connection().View(),
	}})
}

// Close ends the session and forgets its wallet.
// DELETE /sessions
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	id := middleware.GetSessionID(c)
	h.notify.Clear(id)
	if err := h.sessions.Close(c.Context(), id); err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Notification returns the visible banner, if any.
// GET /notification
func (h *SessionHandler) Notification(c *fiber.Ctx) error {
	n, ok := h.notify.Current(middleware.GetSessionID(c))
	if !ok {
		return c.JSON(dto.SuccessResponse{OK: true})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: n})
}
