package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/middleware"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/services"
	"github.com/tewo-market/gateway/internal/session"
	"go.uber.org/zap"
)

// Scope resolves the caller's session and turns failures into banners.
// Every handler goes through it.
type Scope struct {
	sessions *session.Registry
	notify   *services.NotificationService
	log      *zap.Logger
}

func NewScope(sessions *session.Registry, notify *services.NotificationService, log *zap.Logger) *Scope {
	return &Scope{sessions: sessions, notify: notify, log: log}
}

const ctxSession = "session"

// Require resolves the caller's session once per request. It runs after
// AuthMiddleware; a closed session is answered with 401.
func (s *Scope) Require(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c.Context(), middleware.GetSessionID(c))
	if err != nil {
		return c.Status(statusFor(err)).JSON(dto.ErrorResponse{
			Error:     services.UserMessage(err),
			RequestID: middleware.GetRequestID(c),
		})
	}
	c.Locals(ctxSession, sess)
	return c.Next()
}

// Session returns the session resolved by Require.
func (s *Scope) Session(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(ctxSession).(*session.Session)
	return sess
}

// Fail shows err to the session as a banner and answers with the same
// user-safe text. Details stay in the log.
func (s *Scope) Fail(c *fiber.Ctx, err error) error {
	n := s.notify.NotifyError(c.Context(), middleware.GetSessionID(c), err)
	return c.Status(statusFor(err)).JSON(dto.ErrorResponse{Error: n.Message, RequestID: middleware.GetRequestID(c)})
}

func statusFor(err error) int {
	var invalid models.ErrInvalidInput
	var callErr *models.ContractCallError

	switch {
	case errors.Is(err, models.ErrSessionClosed):
		return fiber.StatusUnauthorized
	case errors.As(err, &invalid), errors.Is(err, models.ErrInvalidAmount):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrInvalidID), errors.Is(err, models.ErrNameNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrNotConnected):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrUserRejected):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrWalletUnavailable), errors.Is(err, models.ErrNoProvider),
		errors.Is(err, models.ErrOracleUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, models.ErrTxStatusUnknown):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &callErr):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func paramID(c *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil {
		return 0, models.ErrInvalidInput{Field: name}
	}
	return id, nil
}

func bodyError(error) error {
	return models.ErrInvalidInput{Field: "request body"}
}
