package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/visitrack/visitrack/internal/app/model"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/platform/telegram"
	"go.uber.org/zap"
)

// ChatAPI is the outbound surface used for replies.
type ChatAPI interface {
	SendMessage(ctx context.Context, token string, params telegram.SendMessageParams) (*telegram.Message, error)
}

// ChatService routes inbound chat-platform updates and maintains the
// visitor/chat-user binding. Handlers are idempotent: the platform retries
// failed deliveries with the same update.
type ChatService struct {
	logger        *zap.Logger
	funnels       repository.FunnelRepository
	bindings      repository.BindingRepository
	conversations repository.ConversationLogRepository
	tg            ChatAPI
}

// ChatDeps bundles the chat service dependencies.
type ChatDeps struct {
	Logger        *zap.Logger
	Funnels       repository.FunnelRepository
	Bindings      repository.BindingRepository
	Conversations repository.ConversationLogRepository
	Chat          ChatAPI
}

// NewChatService builds the update router.
func NewChatService(deps ChatDeps) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		logger:        logger,
		funnels:       deps.Funnels,
		bindings:      deps.Bindings,
		conversations: deps.Conversations,
		tg:            deps.Chat,
	}
}

// HandleUpdate dispatches on whichever update fields are populated. The
// platform is not expected to set more than one, but the router does not
// assume exclusivity.
func (s *ChatService) HandleUpdate(ctx context.Context, bot *model.ChatBot, upd *telegram.Update) error {
	if upd == nil {
		return nil
	}

	var errs []error
	if upd.Message != nil {
		errs = append(errs, s.handleMessage(ctx, bot, upd.Message))
	}
	if upd.ChatMember != nil {
		errs = append(errs, s.handleMemberUpdate(ctx, bot, upd.ChatMember))
	}
	if upd.MyChatMember != nil {
		errs = append(errs, s.handleMemberUpdate(ctx, bot, upd.MyChatMember))
	}
	if upd.ChatJoinRequest != nil {
		errs = append(errs, s.handleJoinRequest(ctx, bot, upd.ChatJoinRequest))
	}
	return errors.Join(errs...)
}

// handleMessage implements the per-user state machine: /start <payload> binds
// the chat user to the visitor id carried in the deep link; any other private
// text is logged only when a binding already exists.
func (s *ChatService) handleMessage(ctx context.Context, bot *model.ChatBot, msg *telegram.Message) error {
	if msg.From == nil || msg.Chat.Type != "private" || msg.Text == "" {
		return nil
	}

	if payload, ok := startPayload(msg.Text); ok {
		if payload == "" {
			return nil
		}
		return s.bindVisitor(ctx, bot, msg.From, payload)
	}

	if strings.HasPrefix(msg.Text, "/") {
		return nil
	}

	binding, err := s.bindings.LatestByChatUser(ctx, msg.From.ID)
	if errors.Is(err, repository.ErrBindingNotFound) {
		// Unattributable traffic is dropped, not stored.
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup binding: %w", err)
	}

	return s.conversations.Create(ctx, &model.ConversationLog{
		ChatUserID: msg.From.ID,
		BotID:      bot.ID,
		FunnelID:   binding.FunnelID,
		Kind:       model.ConversationKindText,
		Text:       msg.Text,
	})
}

func (s *ChatService) bindVisitor(ctx context.Context, bot *model.ChatBot, from *telegram.User, visitorID string) error {
	var funnelID *uint
	funnel, err := s.funnels.GetByBotID(ctx, bot.ID)
	switch {
	case errors.Is(err, repository.ErrFunnelNotFound):
		s.logger.Warn("bot has no owning funnel", zap.Uint("bot_id", bot.ID))
	case err != nil:
		return fmt.Errorf("resolve funnel: %w", err)
	default:
		funnelID = &funnel.ID
	}

	// Rebinds are allowed: a new deep link moves the visitor to this funnel.
	binding := &model.VisitorBinding{
		VisitorID:   visitorID,
		ChatUserID:  from.ID,
		Username:    from.Username,
		BotID:       bot.ID,
		FunnelID:    funnelID,
		BindingType: model.BindingTypeDeepLink,
	}
	if err := s.bindings.Upsert(ctx, binding); err != nil {
		return fmt.Errorf("bind visitor: %w", err)
	}

	s.sendWelcome(ctx, bot, from.ID)
	return nil
}

// sendWelcome is best-effort: a send failure never affects the binding.
func (s *ChatService) sendWelcome(ctx context.Context, bot *model.ChatBot, chatUserID int64) {
	if s.tg == nil || bot.Token == "" || bot.ChannelURL == "" {
		return
	}

	_, err := s.tg.SendMessage(ctx, bot.Token, telegram.SendMessageParams{
		ChatID: chatUserID,
		Text:   "Welcome! Tap below to join the channel.",
		ReplyMarkup: &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{{
				{Text: "Open channel", URL: bot.ChannelURL},
			}},
		},
	})
	if err != nil {
		s.logger.Warn("welcome message failed",
			zap.Int64("chat_user_id", chatUserID),
			zap.Error(err))
	}
}

// handleMemberUpdate resolves a membership transition back to the visitor via
// the invite-link label and backfills the real chat user id on the
// placeholder binding written at invite time.
func (s *ChatService) handleMemberUpdate(ctx context.Context, bot *model.ChatBot, m *telegram.ChatMemberUpdated) error {
	if !joinedStatus(m.NewChatMember.Status) {
		return nil
	}
	return s.correlateJoin(ctx, bot, m.InviteLink, m.NewChatMember.User, model.BindingTypeJoin)
}

// handleJoinRequest correlates an approval-gated join request the same way.
func (s *ChatService) handleJoinRequest(ctx context.Context, bot *model.ChatBot, r *telegram.ChatJoinRequest) error {
	return s.correlateJoin(ctx, bot, r.InviteLink, r.From, model.BindingTypeJoinRequest)
}

func (s *ChatService) correlateJoin(ctx context.Context, bot *model.ChatBot, link *telegram.ChatInviteLink, user telegram.User, bindingType string) error {
	if link == nil || !strings.HasPrefix(link.Name, model.InviteNamePrefix) {
		return nil
	}

	binding, err := s.bindings.FindByInviteName(ctx, bot.ID, link.Name)
	if errors.Is(err, repository.ErrBindingNotFound) {
		s.logger.Warn("join via unknown invite label",
			zap.Uint("bot_id", bot.ID),
			zap.String("invite_name", link.Name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup invite binding: %w", err)
	}

	// Re-delivered update: the backfill already happened, do nothing.
	if binding.ChatUserID == user.ID && binding.BindingType == bindingType {
		return nil
	}

	binding.ChatUserID = user.ID
	binding.Username = user.Username
	binding.BindingType = bindingType
	if err := s.bindings.Upsert(ctx, binding); err != nil {
		return fmt.Errorf("backfill binding: %w", err)
	}

	return s.conversations.Create(ctx, &model.ConversationLog{
		ChatUserID: user.ID,
		BotID:      bot.ID,
		FunnelID:   binding.FunnelID,
		Kind:       model.ConversationKindMembership,
		Text:       bindingType,
	})
}

func startPayload(text string) (string, bool) {
	if !strings.HasPrefix(text, "/start") {
		return "", false
	}
	rest := strings.TrimPrefix(text, "/start")
	if rest != "" && !strings.HasPrefix(rest, " ") {
		// Another command sharing the prefix, e.g. /startx.
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func joinedStatus(status string) bool {
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}
