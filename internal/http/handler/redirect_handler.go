package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/app/service"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the funnel redirect handler.
type RedirectDeps struct {
	Logger  *zap.Logger
	Funnels repository.FunnelRepository
	Invites *service.InviteService
}

// RedirectHandler sends a visitor arriving on a funnel slug straight into the
// chat via a freshly issued invite link.
type RedirectHandler struct {
	logger  *zap.Logger
	funnels repository.FunnelRepository
	invites *service.InviteService
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:  logger,
		funnels: deps.Funnels,
		invites: deps.Invites,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/r/:slug", h.Resolve)
}

// Resolve handles GET /r/:slug
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing funnel slug",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	funnel, err := h.funnels.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrFunnelNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "funnel not found",
			})
		}
		h.logger.Error("failed to load funnel", zap.Error(err), zap.String("slug", slug))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	// The collector decorates funnel links with the visitor id; a bare hit
	// still gets a link, just an uncorrelated one.
	visitorID := c.Query("vid")

	// Bot comes from the preloaded funnel so the issuer skips a second lookup.
	invite, err := h.invites.Issue(ctx, service.IssueInput{
		FunnelID:  funnel.ID,
		VisitorID: visitorID,
		Bot:       funnel.Bot,
	})
	if err != nil {
		h.logger.Error("failed to issue invite for redirect",
			zap.String("slug", slug),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "invite unavailable",
		})
	}

	h.logger.Debug("funnel redirect",
		zap.String("slug", slug),
		zap.Bool("dynamic", invite.Dynamic))
	return c.Redirect(invite.Link, fiber.StatusFound)
}
