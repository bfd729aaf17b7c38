package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/services"
	"go.uber.org/zap"
)

type ProduceHandler struct {
	scope   *Scope
	market  *services.MarketplaceService
	catalog *services.CatalogService
	log     *zap.Logger
}

func NewProduceHandler(scope *Scope, market *services.MarketplaceService, catalog *services.CatalogService, log *zap.Logger) *ProduceHandler {
	return &ProduceHandler{scope: scope, market: market, catalog: catalog, log: log}
}

// List returns every listing with its display price, or price_pending when
// the rate is unavailable.
// GET /produce
func (h *ProduceHandler) List(c *fiber.Ctx) error {
	items, err := h.catalog.ListPriced(c.Context(), h.scope.Session(c))
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: items})
}

// GET /produce/:id
func (h *ProduceHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	item, err := h.catalog.GetPriced(c.Context(), h.scope.Session(c), id)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: item})
}

// POST /produce
func (h *ProduceHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateProduceRequest
	if err := c.BodyParser(&req); err != nil {
		return h.scope.Fail(c, bodyError(err))
	}
	price, err := chain.ToBaseUnits(req.Price)
	if err != nil {
		return h.scope.Fail(c, err)
	}

	receipt, err := h.market.ListProduce(c.Context(), h.scope.Session(c), models.ProduceInput{
		Title:       req.Name,
		Description: req.Description,
		Price:       price,
		Quantity:    req.Quantity,
		Images:      req.ImageURLs,
		Company:     req.Company,
		Location:    req.Location,
	})
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// Purchase pays the stored price times quantity.
// POST /produce/:id/purchase
func (h *ProduceHandler) Purchase(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	var req dto.PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return h.scope.Fail(c, bodyError(err))
	}

	receipt, err := h.market.PurchaseListing(c.Context(), h.scope.Session(c), id, req.Quantity)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// POST /requests/:id/confirm-delivery
func (h *ProduceHandler) ConfirmDelivery(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	receipt, err := h.market.ConfirmDelivery(c.Context(), h.scope.Session(c), id)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// POST /requests/:id/pay
func (h *ProduceHandler) Pay(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	receipt, err := h.market.PayParty(c.Context(), h.scope.Session(c), id)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// POST /withdraw
func (h *ProduceHandler) Withdraw(c *fiber.Ctx) error {
	receipt, err := h.market.WithdrawFunds(c.Context(), h.scope.Session(c))
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}
