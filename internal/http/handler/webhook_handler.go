package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/app/service"
	"github.com/visitrack/visitrack/internal/platform/telegram"
	"go.uber.org/zap"
)

// WebhookDeps groups dependencies required by the chat webhook handler.
type WebhookDeps struct {
	Logger *zap.Logger
	Bots   repository.BotRepository
	Chat   *service.ChatService
}

// WebhookHandler receives chat platform updates addressed to a stored bot.
type WebhookHandler struct {
	logger *zap.Logger
	bots   repository.BotRepository
	chat   *service.ChatService
}

// NewWebhookHandler creates a webhook handler with the provided dependencies.
func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		logger: logger,
		bots:   deps.Bots,
		chat:   deps.Chat,
	}
}

// Register wires webhook routes onto the provided router.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/webhook/chat/:bot_id", h.Receive)
}

// Receive handles POST /webhook/chat/:bot_id
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	botID, err := c.ParamsInt("bot_id")
	if err != nil || botID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid bot id",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	bot, err := h.bots.GetByID(ctx, uint(botID))
	if err != nil {
		if errors.Is(err, repository.ErrBotNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown bot",
			})
		}
		h.logger.Error("failed to load bot", zap.Int("bot_id", botID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	var upd telegram.Update
	if err := json.Unmarshal(c.Body(), &upd); err != nil {
		// Malformed bodies are acknowledged, not retried: the platform would
		// resend the same bytes forever.
		h.logger.Warn("discarding malformed update",
			zap.Int("bot_id", botID),
			zap.Error(err))
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.chat.HandleUpdate(ctx, bot, &upd); err != nil {
		h.logger.Error("failed to process update",
			zap.Int("bot_id", botID),
			zap.Int64("update_id", upd.UpdateID),
			zap.Error(err))
		// Non-2xx makes the platform redeliver; handlers are idempotent.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process update",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
