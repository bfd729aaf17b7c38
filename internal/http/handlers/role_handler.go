package handlers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/rbac"
	"github.com/tewo-market/gateway/internal/services"
	"go.uber.org/zap"
)

type RoleHandler struct {
	scope  *Scope
	market *services.MarketplaceService
	log    *zap.Logger
}

func NewRoleHandler(scope *Scope, market *services.MarketplaceService, log *zap.Logger) *RoleHandler {
	return &RoleHandler{scope: scope, market: market, log: log}
}

// Register grants the connected account the farmer role.
// POST /roles/register
func (h *RoleHandler) Register(c *fiber.Ctx) error {
	receipt, err := h.market.RegisterRole(c.Context(), h.scope.Session(c))
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// Has checks a role for ?account=, or for the connected account.
// GET /roles/:role
func (h *RoleHandler) Has(c *fiber.Ctx) error {
	role, err := rbac.ParseRole(c.Params("role"))
	if err != nil {
		return h.scope.Fail(c, models.ErrInvalidInput{Field: "role"})
	}

	s := h.scope.Session(c)
	account := s.Connection().Address
	if q := c.Query("account"); q != "" {
		if !models.IsAccount(q) {
			return h.scope.Fail(c, models.ErrInvalidInput{Field: "account"})
		}
		account = common.HexToAddress(q)
	}
	if account == (common.Address{}) {
		return h.scope.Fail(c, models.ErrNotConnected)
	}

	ok, err := h.market.HasRole(c.Context(), s, role, account)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.RoleResponse{Role: role, Account: account.Hex(), HasRole: ok}})
}
