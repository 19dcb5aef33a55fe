package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/app/service"
	"go.uber.org/zap"
)

// InviteDeps groups dependencies required by the invite handler.
type InviteDeps struct {
	Logger  *zap.Logger
	Invites *service.InviteService
}

// InviteHandler exposes invite issuance to the funnel pages.
type InviteHandler struct {
	logger  *zap.Logger
	invites *service.InviteService
}

// NewInviteHandler creates an invite handler with the provided dependencies.
func NewInviteHandler(deps InviteDeps) *InviteHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InviteHandler{
		logger:  logger,
		invites: deps.Invites,
	}
}

// Register wires invite routes onto the provided router.
func (h *InviteHandler) Register(router fiber.Router) {
	router.Get("/invite", h.Issue)
}

// InviteResponse carries the issued link back to the page.
type InviteResponse struct {
	InviteLink string `json:"invite_link"`
	IsDynamic  bool   `json:"is_dynamic"`
	// ExpiresIn is seconds until the dynamic link lapses; absent for static links.
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

// Issue handles GET /invite?funnel_id=&visitor_id=
func (h *InviteHandler) Issue(c *fiber.Ctx) error {
	funnelID := c.QueryInt("funnel_id")
	visitorID := c.Query("visitor_id")
	if funnelID <= 0 || visitorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "funnel_id and visitor_id are required",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	invite, err := h.invites.Issue(ctx, service.IssueInput{
		FunnelID:        uint(funnelID),
		VisitorID:       visitorID,
		RequireApproval: c.QueryBool("require_approval"),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrFunnelNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "funnel not found",
			})
		case errors.Is(err, service.ErrBotNotConfigured), errors.Is(err, service.ErrNoInviteTarget):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to issue invite",
			zap.Int("funnel_id", funnelID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to issue invite",
		})
	}

	resp := InviteResponse{
		InviteLink: invite.Link,
		IsDynamic:  invite.Dynamic,
	}
	if invite.Dynamic {
		resp.ExpiresIn = int64(invite.ExpiresIn.Seconds())
	}
	return c.JSON(resp)
}
