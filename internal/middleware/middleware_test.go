package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewo-market/gateway/internal/auth"
	"github.com/tewo-market/gateway/internal/config"
	"go.uber.org/zap"
)

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New()
	app.Use(RateLimitMiddleware(rdb, 2, time.Minute))
	app.Get("/rate", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i, want := range []int{200, 200, 429} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rate", nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, "request %d", i+1)
	}

	mr.FastForward(2 * time.Minute)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rate", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	app := fiber.New()
	app.Use(RateLimitMiddleware(rdb, 0, time.Minute))
	app.Get("/rate", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	started := time.Now()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/rate", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Less(t, time.Since(started), 500*time.Millisecond, "a dead redis must not stall requests")

	// within the cooldown redis is not asked at all
	started = time.Now()
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/rate", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Less(t, time.Since(started), 100*time.Millisecond)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	app := fiber.New()
	app.Use(RequestIDMiddleware(), AuthMiddleware(cfg, zap.NewNop()))
	app.Get("/me", func(c *fiber.Ctx) error { return c.SendString(GetSessionID(c)) })

	token, err := auth.GenerateJWT("secret", "session-7", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, 200},
		{"missing", "", 401},
		{"no bearer prefix", token, 401},
		{"bad token", "Bearer nope", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "trace-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "trace-1", resp.Header.Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
}
