package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/services"
	"go.uber.org/zap"
)

type GigHandler struct {
	scope  *Scope
	market *services.MarketplaceService
	log    *zap.Logger
}

func NewGigHandler(scope *Scope, market *services.MarketplaceService, log *zap.Logger) *GigHandler {
	return &GigHandler{scope: scope, market: market, log: log}
}

// GET /gigs
func (h *GigHandler) List(c *fiber.Ctx) error {
	gigs, err := h.market.ListAllGigs(c.Context(), h.scope.Session(c))
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gigs})
}

// GET /gigs/mine
func (h *GigHandler) Mine(c *fiber.Ctx) error {
	gigs, err := h.market.GetUserGigs(c.Context(), h.scope.Session(c))
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gigs})
}

// GET /gigs/:id
func (h *GigHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	gig, err := h.market.GetGig(c.Context(), h.scope.Session(c), id)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gig})
}

// GET /gigs/:id/applications
func (h *GigHandler) Applications(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	apps, err := h.market.GetGigApplications(c.Context(), h.scope.Session(c), id)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: apps})
}

// GET /applications/mine
func (h *GigHandler) MyApplications(c *fiber.Ctx) error {
	apps, err := h.market.GetUserApplications(c.Context(), h.scope.Session(c))
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: apps})
}

// Create posts a gig with the bounty attached.
// POST /gigs
func (h *GigHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateGigRequest
	if err := c.BodyParser(&req); err != nil {
		return h.scope.Fail(c, bodyError(err))
	}
	receipt, err := h.market.CreateListing(c.Context(), h.scope.Session(c), req.Image, req.Description, req.KPIs, req.Price)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// POST /gigs/:id/apply
func (h *GigHandler) Apply(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	var req dto.ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return h.scope.Fail(c, bodyError(err))
	}
	receipt, err := h.market.ApplyToListing(c.Context(), h.scope.Session(c), id, req.CoverLetter)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// POST /gigs/:id/select
func (h *GigHandler) Select(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	var req dto.SelectWorkerRequest
	if err := c.BodyParser(&req); err != nil {
		return h.scope.Fail(c, bodyError(err))
	}
	receipt, err := h.market.SelectWorker(c.Context(), h.scope.Session(c), id, req.ApplicationID)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}

// POST /gigs/:id/payout
func (h *GigHandler) Payout(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return h.scope.Fail(c, err)
	}
	receipt, err := h.market.Payout(c.Context(), h.scope.Session(c), id)
	if err != nil {
		return h.scope.Fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: receipt})
}
