package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit(t *testing.T) {
	t.Run("Test Environment Bypass", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		allowed, err := CheckRateLimit(context.Background(), nil, "demo_session", "ip:1", 1, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("Nil Redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		allowed, err := CheckRateLimit(context.Background(), nil, "demo_session", "ip:1", 1, time.Minute)
		assert.ErrorIs(t, err, ErrLimiterUnavailable)
		assert.False(t, allowed)
	})

	t.Run("Counts within window", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			allowed, err := CheckRateLimit(ctx, rdb, "demo_session", "ip:1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := CheckRateLimit(ctx, rdb, "demo_session", "ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		assert.True(t, mr.Exists("rl:demo_session:ip:1"))
		assert.Equal(t, time.Minute, mr.TTL("rl:demo_session:ip:1"))

		// Window expiry resets the counter.
		mr.FastForward(time.Minute + time.Second)
		allowed, err = CheckRateLimit(ctx, rdb, "demo_session", "ip:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("Bypass in test mode", func(t *testing.T) {
		app := fiber.New()
		t.Setenv("APP_ENV", "test")
		app.Get("/test", RateLimit(nil, 1, time.Minute), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailOpen with nil redis in production", func(t *testing.T) {
		app := fiber.New()
		t.Setenv("APP_ENV", "production")
		app.Get("/test", RateLimit(nil, 1, time.Minute), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailClosed with nil redis in production", func(t *testing.T) {
		app := fiber.New()
		t.Setenv("APP_ENV", "production")
		app.Get("/sensitive", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Rejects over limit", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()

		app := fiber.New()
		app.Post("/api/demo/session", RateLimit(rdb, 2, time.Minute, "demo_session"), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusCreated)
		})

		statuses := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/demo/session", nil))
			require.NoError(t, err)
			statuses = append(statuses, resp.StatusCode)
			_ = resp.Body.Close()
		}
		assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, statuses)
	})
}
