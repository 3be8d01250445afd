package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/interaction-tracker/internal/observability"
	"github.com/spec-kit/interaction-tracker/internal/persistence"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
	metrics     *observability.Metrics
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis, metrics: metrics}
}

// Live reports service liveness and the request counters.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	return c.JSON(body)
}

// Ready reports service readiness by checking the configured dependencies.
// Unconfigured backends run in memory and are reported as such.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{
		"postgres": probe(ctx, h.postgres.Enabled(), h.postgres.Ping),
		"redis":    probe(ctx, h.redis.Enabled(), h.redis.Ping),
	}
	ready := true
	for _, status := range depStatus {
		if status != "ok" && status != "memory" {
			ready = false
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

func probe(ctx context.Context, enabled bool, ping func(context.Context) error) string {
	if !enabled {
		return "memory"
	}
	if err := ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
