package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/http/dto"
	"go.uber.org/zap"
)

// EventLister reads indexed contract events. *repositories.EventRepo
// satisfies it.
type EventLister interface {
	ListRecent(ctx context.Context, name string, limit int) ([]chain.ContractEvent, error)
}

type EventsHandler struct {
	scope  *Scope
	events EventLister
	log    *zap.Logger
}

func NewEventsHandler(scope *Scope, events EventLister, log *zap.Logger) *EventsHandler {
	return &EventsHandler{scope: scope, events: events, log: log}
}

// List returns recent marketplace activity. Empty without an indexer store.
// GET /events?name=GigCreated&limit=50
func (h *EventsHandler) List(c *fiber.Ctx) error {
	if h.events == nil {
		return c.JSON(dto.SuccessResponse{OK: true, Data: []chain.ContractEvent{}})
	}

	list, err := h.events.ListRecent(c.Context(), c.Query("name"), c.QueryInt("limit", 50))
	if err != nil {
		h.log.Error("failed to list contract events", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	if list == nil {
		list = []chain.ContractEvent{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}
