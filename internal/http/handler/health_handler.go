package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// HealthDeps groups dependencies required by the health handler.
type HealthDeps struct {
	Logger   *zap.Logger
	Postgres *pgxpool.Pool
}

// HealthHandler reports liveness and backing-store reachability.
type HealthHandler struct {
	logger   *zap.Logger
	postgres *pgxpool.Pool
}

// NewHealthHandler creates a health handler with the provided dependencies.
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:   logger,
		postgres: deps.Postgres,
	}
}

// Register wires health routes onto the provided router.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
}

// Health is a simple endpoint so we know the service and its store are up.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK

	if h.postgres != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.postgres.Ping(ctx); err != nil {
			h.logger.Error("health check database ping failed", zap.Error(err))
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"service": "visitrack",
		"status":  status,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
