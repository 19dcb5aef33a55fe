package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/visitrack/visitrack/internal/app/model"
	"github.com/visitrack/visitrack/internal/app/service"
	"go.uber.org/zap"
)

// TrackDeps groups dependencies required by the tracking handler.
type TrackDeps struct {
	Logger *zap.Logger
	Tracks *service.TrackService
}

// TrackHandler implements the event ingestion endpoint.
type TrackHandler struct {
	logger *zap.Logger
	tracks *service.TrackService
}

// NewTrackHandler creates a tracking handler with the provided dependencies.
func NewTrackHandler(deps TrackDeps) *TrackHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackHandler{
		logger: logger,
		tracks: deps.Tracks,
	}
}

// Register wires tracking routes onto the provided router.
func (h *TrackHandler) Register(router fiber.Router) {
	router.Post("/track", h.Track)
}

// TrackRequest is the collector submission body.
type TrackRequest struct {
	VisitorID string         `json:"visitor_id"`
	EventType string         `json:"event_type"`
	DomainID  *uint          `json:"domain_id,omitempty"`
	FunnelID  *uint          `json:"funnel_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TrackResponse reports what happened to the submission.
type TrackResponse struct {
	Status   string `json:"status"`
	EventID  string `json:"event_id,omitempty"`
	Accounts int    `json:"accounts,omitempty"`
}

// Track handles POST /track
func (h *TrackHandler) Track(c *fiber.Ctx) error {
	var req TrackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	// Connection-derived identity fields always win over client claims.
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}
	req.Metadata[model.MetaIP] = c.IP()
	req.Metadata[model.MetaUserAgent] = c.Get("User-Agent")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.tracks.Track(ctx, service.TrackInput{
		VisitorID: req.VisitorID,
		EventType: req.EventType,
		Metadata:  req.Metadata,
		DomainID:  req.DomainID,
		FunnelID:  req.FunnelID,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingVisitorID) || errors.Is(err, service.ErrMissingEventType) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to ingest event", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to ingest event",
		})
	}

	if result.Skipped {
		return c.JSON(TrackResponse{Status: "skipped"})
	}
	return c.JSON(TrackResponse{
		Status:   "tracked",
		EventID:  result.EventID,
		Accounts: result.Accounts,
	})
}
