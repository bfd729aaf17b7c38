package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/http/dto"
	"github.com/tewo-market/gateway/internal/services"
	"go.uber.org/zap"
)

type RateHandler struct {
	scope   *Scope
	pricing *services.PricingService
	log     *zap.Logger
}

func NewRateHandler(scope *Scope, pricing *services.PricingService, log *zap.Logger) *RateHandler {
	return &RateHandler{scope: scope, pricing: pricing, log: log}
}

// Get returns the conversion rate. When the oracle fails the last known rate
// is returned marked stale.
// GET /rate
func (h *RateHandler) Get(c *fiber.Ctx) error {
	rate, err := h.pricing.Rate(c.Context())
	if err == nil {
		return c.JSON(dto.SuccessResponse{OK: true, Data: dto.RateResponse{ConversionRate: rate}})
	}
	if cached, ok := h.pricing.Cached(); ok {
		h.log.Warn("serving stale conversion rate", zap.Error(err))
		return c.JSON(dto.SuccessResponse{OK: true, Data: dto.RateResponse{ConversionRate: cached, Stale: true}})
	}
	return h.scope.Fail(c, err)
}
