package service

import (
	"context"
	"fmt"

	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/platform/telegram"
	"go.uber.org/zap"
)

// BotAPI is the outbound surface used for webhook lifecycle management.
type BotAPI interface {
	GetMe(ctx context.Context, token string) (*telegram.User, error)
	GetWebhookInfo(ctx context.Context, token string) (*telegram.WebhookInfo, error)
	SetWebhook(ctx context.Context, token string, params telegram.SetWebhookParams) error
	DeleteWebhook(ctx context.Context, token string) error
}

// BotService keeps each stored bot's webhook registration pointed at this
// deployment.
type BotService struct {
	logger        *zap.Logger
	bots          repository.BotRepository
	tg            BotAPI
	publicBaseURL string
}

// NewBotService builds the webhook manager.
func NewBotService(logger *zap.Logger, bots repository.BotRepository, tg BotAPI, publicBaseURL string) *BotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotService{
		logger:        logger,
		bots:          bots,
		tg:            tg,
		publicBaseURL: publicBaseURL,
	}
}

// RegisterWebhooks points every stored bot at its webhook route. Per-bot
// failures are logged and skipped so one bad credential cannot block the rest.
func (s *BotService) RegisterWebhooks(ctx context.Context) error {
	if s.publicBaseURL == "" {
		return fmt.Errorf("register webhooks: public base url is not configured")
	}

	bots, err := s.bots.List(ctx)
	if err != nil {
		return fmt.Errorf("list bots: %w", err)
	}

	for _, bot := range bots {
		if bot.Token == "" {
			s.logger.Warn("skipping bot without credential", zap.Uint("bot_id", bot.ID))
			continue
		}

		me, err := s.tg.GetMe(ctx, bot.Token)
		if err != nil {
			s.logger.Error("bot credential check failed", zap.Uint("bot_id", bot.ID), zap.Error(err))
			continue
		}

		want := fmt.Sprintf("%s/webhook/chat/%d", s.publicBaseURL, bot.ID)

		info, err := s.tg.GetWebhookInfo(ctx, bot.Token)
		if err == nil && info.URL == want {
			s.logger.Debug("webhook already registered",
				zap.Uint("bot_id", bot.ID),
				zap.String("bot_username", me.Username))
			continue
		}

		if err := s.tg.SetWebhook(ctx, bot.Token, telegram.SetWebhookParams{
			URL:            want,
			AllowedUpdates: []string{"message", "chat_member", "my_chat_member", "chat_join_request"},
		}); err != nil {
			s.logger.Error("failed to set webhook", zap.Uint("bot_id", bot.ID), zap.Error(err))
			continue
		}

		s.logger.Info("webhook registered",
			zap.Uint("bot_id", bot.ID),
			zap.String("bot_username", me.Username),
			zap.String("url", want))
	}
	return nil
}

// UnregisterWebhooks removes every stored bot's webhook, used on controlled
// shutdowns of a deployment that owns the registrations.
func (s *BotService) UnregisterWebhooks(ctx context.Context) error {
	bots, err := s.bots.List(ctx)
	if err != nil {
		return fmt.Errorf("list bots: %w", err)
	}

	for _, bot := range bots {
		if bot.Token == "" {
			continue
		}
		if err := s.tg.DeleteWebhook(ctx, bot.Token); err != nil {
			s.logger.Warn("failed to delete webhook", zap.Uint("bot_id", bot.ID), zap.Error(err))
		}
	}
	return nil
}
