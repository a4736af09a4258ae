package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BacklogCounter reports how many scheduled tasks are waiting to run.
type BacklogCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type dependencyCheck struct {
	name     string
	pinger   Pinger
	required bool
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	checks      []dependencyCheck
	backlog     BacklogCounter
}

// NewHealthHandler returns a new handler instance. Postgres is required for
// readiness; redis only backs the optional rate limiter and is reported but
// never fails the probe.
func NewHealthHandler(serviceName, version string, postgres, redis Pinger, backlog BacklogCounter) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		checks: []dependencyCheck{
			{name: "postgres", pinger: postgres, required: true},
			{name: "redis", pinger: redis},
		},
		backlog: backlog,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings dependencies and reports the scheduler backlog.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	deps := fiber.Map{}
	ready := true
	for _, check := range h.checks {
		if err := check.pinger.Ping(ctx); err != nil {
			deps[check.name] = err.Error()
			ready = ready && !check.required
			continue
		}
		deps[check.name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": deps,
			},
		})
	}

	body := fiber.Map{"status": "ready", "dependencies": deps}
	if h.backlog != nil {
		if pending, err := h.backlog.CountPending(ctx); err == nil {
			body["pending_tasks"] = pending
		}
	}
	return c.JSON(body)
}
