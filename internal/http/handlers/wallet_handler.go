package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/services"
	"go.uber.org/zap"
)

type WalletHandler struct {
	scope    *Scope
	identity *services.IdentityService
	log      *zap.Logger
}

func NewWalletHandler(scope *Scope, identity *services.IdentityService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{scope: scope, identity: identity, log: log}
}

// GET /wallet
func (h *WalletHandler) Get(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.scope.Session(c).Connection().View()})
}

// Connect asks the wallet for accounts and adopts the first.
// POST /wallet/connect
func (h *WalletHandler) Connect(c *fiber.Ctx) error {
	s := h.scope.Session(c)
	conn, err := s.Conn.Connect(c.Context())
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conn.View()})
}

// ConnectENS logs in with a name resolved on the name service network.
// POST /wallet/connect-ens
func (h *WalletHandler) ConnectENS(c *fiber.Ctx) error {
	var req dto.ConnectENSRequest
	if err := c.BodyParser(&req); err != nil {
		return h.scope.Fail(c, bodyError(err))
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return h.scope.Fail(c, models.ErrInvalidInput{Field: "name"})
	}

	addr, err := h.identity.ResolveName(c.Context(), name)
	if err != nil {
		return h.scope.Fail(c, err)
	}

	s := h.scope.Session(c)
	conn, err := s.Conn.ConnectWithName(c.Context(), name, addr)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conn.View()})
}

// Restore re-adopts the persisted wallet without prompting. Data is empty
// when nothing was restored.
// POST /wallet/restore
func (h *WalletHandler) Restore(c *fiber.Ctx) error {
	s := h.scope.Session(c)
	conn, err := s.Conn.Restore(c.Context())
	if err != nil {
		return h.scope.Fail(c, err)
	}
	if conn == nil {
		return c.JSON(dto.SuccessResponse{OK: true})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conn.View()})
}

// DELETE /wallet
func (h *WalletHandler) Disconnect(c *fiber.Ctx) error {
	s := h.scope.Session(c)
	if err := s.Conn.Disconnect(c.Context()); err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: s.Connection().View()})
}
