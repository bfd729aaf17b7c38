package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tewo-market/gateway/internal/auth"
	"github.com/tewo-market/gateway/internal/config"
	"go.uber.org/zap"
)

const CtxSessionID = "session_id"

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxSessionID, claims.SessionID)
		return c.Next()
	}
}

func GetSessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxSessionID).(string)
	return id
}
