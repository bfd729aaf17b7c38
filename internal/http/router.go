package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/http/handlers"
	"github.com/tewo-market/gateway/internal/metrics"
	"github.com/tewo-market/gateway/internal/middleware"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Scope   *handlers.Scope
	Session *handlers.SessionHandler
	Wallet  *handlers.WalletHandler
	Produce *handlers.ProduceHandler
	Gig     *handlers.GigHandler
	Role    *handlers.RoleHandler
	Rate    *handlers.RateHandler
	Events  *handlers.EventsHandler
	WSHub   *handlers.WSHub
}

// SetupRouter mounts the API. rdb may be nil, rate limiting is then off.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Metrics,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(m.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if m != nil {
		app.Get("/metrics", m.Handler())
	}

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Sessions (public)
	api.Post("/sessions", h.Session.Create)

	protected := api.Group("", middleware.AuthMiddleware(cfg, log), h.Scope.Require)

	protected.Delete("/sessions", h.Session.Close)
	protected.Get("/notification", h.Session.Notification)

	// Wallet
	protected.Get("/wallet", h.Wallet.Get)
	protected.Post("/wallet/connect", h.Wallet.Connect)
	protected.Post("/wallet/connect-ens", h.Wallet.ConnectENS)
	protected.Post("/wallet/restore", h.Wallet.Restore)
	protected.Delete("/wallet", h.Wallet.Disconnect)

	protected.Get("/rate", h.Rate.Get)

	// Produce
	protected.Get("/produce", h.Produce.List)
	protected.Get("/produce/:id", h.Produce.Get)
	protected.Post("/produce", h.Produce.Create)
	protected.Post("/produce/:id/purchase", h.Produce.Purchase)
	protected.Post("/requests/:id/confirm-delivery", h.Produce.ConfirmDelivery)
	protected.Post("/requests/:id/pay", h.Produce.Pay)
	protected.Post("/withdraw", h.Produce.Withdraw)

	// Roles
	protected.Post("/roles/register", h.Role.Register)
	protected.Get("/roles/:role", h.Role.Has)

	// Gigs
	protected.Get("/gigs", h.Gig.List)
	protected.Get("/gigs/mine", h.Gig.Mine)
	protected.Get("/gigs/:id", h.Gig.Get)
	protected.Get("/gigs/:id/applications", h.Gig.Applications)
	protected.Post("/gigs", h.Gig.Create)
	protected.Post("/gigs/:id/apply", h.Gig.Apply)
	protected.Post("/gigs/:id/select", h.Gig.Select)
	protected.Post("/gigs/:id/payout", h.Gig.Payout)
	protected.Get("/applications/mine", h.Gig.MyApplications)

	protected.Get("/events", h.Events.List)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WSHub.HandleWS))
}
