package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklite-io/tracklite/internal/observability"
	"github.com/tracklite-io/tracklite/internal/persistence"
)

// HealthHandler exposes liveness, readiness and runtime counters.
type HealthHandler struct {
	postgres *persistence.Postgres
	redis    *persistence.Redis
	metrics  *observability.Metrics
	version  string
}

// NewHealthHandler constructs handler.
func NewHealthHandler(pg *persistence.Postgres, rd *persistence.Redis, metrics *observability.Metrics, version string) *HealthHandler {
	return &HealthHandler{postgres: pg, redis: rd, metrics: metrics, version: version}
}

// Live GET /healthz.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": h.version})
}

// Ready GET /readyz. Checks both backing stores.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := fiber.Map{"postgres": "ok", "redis": "ok"}
	healthy := true

	if err := h.postgres.Ping(c.Context()); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	}
	if err := h.redis.Ping(c.Context()); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"status": checks, "version": h.version})
}

// Metrics GET /metrics. In-process counters, JSON encoded.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
