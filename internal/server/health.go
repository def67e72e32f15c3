package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const (
	statusHealthy     = "healthy"
	statusUnhealthy   = "unhealthy"
	statusUnavailable = "unavailable"
)

// LivenessCheck handles liveness check requests
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/live [get]
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis concurrently.
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/ready [get]
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus, redisStatus := statusHealthy, statusUnavailable

	var g errgroup.Group
	g.Go(func() error {
		sqlDB, err := s.db.DB()
		if err != nil {
			dbStatus = statusUnhealthy
			return nil
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = statusUnhealthy
		}
		return nil
	})
	if s.redis != nil {
		g.Go(func() error {
			if err := s.redis.Ping(ctx).Err(); err != nil {
				redisStatus = statusUnhealthy
			} else {
				redisStatus = statusHealthy
			}
			return nil
		})
	}
	_ = g.Wait()

	status := fiber.StatusOK
	overallStatus := statusHealthy
	if dbStatus != statusHealthy || redisStatus != statusHealthy {
		status = fiber.StatusServiceUnavailable
		overallStatus = statusUnhealthy
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
