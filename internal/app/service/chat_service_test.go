package service

import (
	"context"
	"errors"
	"testing"

	"github.com/visitrack/visitrack/internal/app/model"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/platform/telegram"
)

func privateText(userID int64, text string) *telegram.Update {
	return &telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: userID, Username: "alice"},
			Chat: telegram.Chat{ID: userID, Type: "private"},
			Text: text,
		},
	}
}

func TestHandleUpdate_StartBindsVisitor(t *testing.T) {
	bindings := &mockBindingRepository{}
	funnels := &mockFunnelRepository{
		getByBotFn: func(ctx context.Context, botID uint) (*model.Funnel, error) {
			return &model.Funnel{ID: 9, BotID: &botID}, nil
		},
	}
	chat := &mockChatAPI{}
	bot := &model.ChatBot{ID: 3, Token: "tok", ChannelURL: "https://t.me/channel"}

	svc := NewChatService(ChatDeps{Funnels: funnels, Bindings: bindings, Conversations: &mockConversationLogRepository{}, Chat: chat})
	if err := svc.HandleUpdate(context.Background(), bot, privateText(700, "/start abc123")); err != nil {
		t.Fatalf("HandleUpdate error: %v", err)
	}

	if len(bindings.upserted) != 1 {
		t.Fatalf("expected one binding, got %d", len(bindings.upserted))
	}
	b := bindings.upserted[0]
	if b.VisitorID != "abc123" || b.ChatUserID != 700 || b.BotID != 3 || b.BindingType != model.BindingTypeDeepLink {
		t.Fatalf("binding wrong: %+v", b)
	}
	if b.FunnelID == nil || *b.FunnelID != 9 {
		t.Fatalf("funnel not resolved: %+v", b)
	}

	if len(chat.sends) != 1 || chat.sends[0].ChatID != 700 || chat.sends[0].ReplyMarkup == nil {
		t.Fatalf("welcome with inline button expected, got %+v", chat.sends)
	}
}

func TestHandleUpdate_WelcomeFailureDoesNotFailBinding(t *testing.T) {
	bindings := &mockBindingRepository{}
	chat := &mockChatAPI{
		sendFn: func(ctx context.Context, token string, params telegram.SendMessageParams) (*telegram.Message, error) {
			return nil, &telegram.APIError{Code: 403, Description: "bot was blocked"}
		},
	}
	bot := &model.ChatBot{ID: 3, Token: "tok", ChannelURL: "https://t.me/channel"}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: &mockConversationLogRepository{}, Chat: chat})
	if err := svc.HandleUpdate(context.Background(), bot, privateText(700, "/start abc123")); err != nil {
		t.Fatalf("welcome is best-effort, got %v", err)
	}
	if len(bindings.upserted) != 1 {
		t.Fatalf("binding must still be written, got %d", len(bindings.upserted))
	}
}

func TestHandleUpdate_BoundTextIsLogged(t *testing.T) {
	funnel := uint(9)
	bindings := &mockBindingRepository{
		latestFn: func(ctx context.Context, chatUserID int64) (*model.VisitorBinding, error) {
			return &model.VisitorBinding{VisitorID: "abc123", ChatUserID: chatUserID, FunnelID: &funnel}, nil
		},
	}
	conversations := &mockConversationLogRepository{}
	bot := &model.ChatBot{ID: 3, Token: "tok"}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: conversations, Chat: &mockChatAPI{}})
	if err := svc.HandleUpdate(context.Background(), bot, privateText(700, "hello there")); err != nil {
		t.Fatalf("HandleUpdate error: %v", err)
	}

	if len(conversations.rows) != 1 {
		t.Fatalf("expected one conversation row, got %d", len(conversations.rows))
	}
	row := conversations.rows[0]
	if row.FunnelID == nil || *row.FunnelID != 9 || row.Text != "hello there" || row.Kind != model.ConversationKindText {
		t.Fatalf("conversation row wrong: %+v", row)
	}
}

func TestHandleUpdate_UnboundTextIsDiscarded(t *testing.T) {
	conversations := &mockConversationLogRepository{}
	bot := &model.ChatBot{ID: 3}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: &mockBindingRepository{}, Conversations: conversations, Chat: &mockChatAPI{}})
	if err := svc.HandleUpdate(context.Background(), bot, privateText(700, "who is this")); err != nil {
		t.Fatalf("discarding is not an error: %v", err)
	}
	if len(conversations.rows) != 0 {
		t.Fatalf("unbound traffic must not be stored, got %d rows", len(conversations.rows))
	}
}

func TestHandleUpdate_OtherCommandsIgnored(t *testing.T) {
	bindings := &mockBindingRepository{}
	conversations := &mockConversationLogRepository{}
	bot := &model.ChatBot{ID: 3}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: conversations, Chat: &mockChatAPI{}})
	for _, text := range []string{"/help", "/startover", "/start"} {
		if err := svc.HandleUpdate(context.Background(), bot, privateText(700, text)); err != nil {
			t.Fatalf("HandleUpdate(%q) error: %v", text, err)
		}
	}
	if len(bindings.upserted) != 0 || len(conversations.rows) != 0 {
		t.Fatalf("commands must be no-ops: %d bindings, %d rows", len(bindings.upserted), len(conversations.rows))
	}
}

func TestHandleUpdate_JoinBackfillsPlaceholder(t *testing.T) {
	funnel := uint(9)
	stored := &model.VisitorBinding{
		VisitorID: "abc123", ChatUserID: 0, BotID: 3, FunnelID: &funnel,
		BindingType: model.BindingTypeInvite, InviteName: "v_abc123",
	}
	bindings := &mockBindingRepository{
		byInviteFn: func(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error) {
			if name != "v_abc123" {
				return nil, repository.ErrBindingNotFound
			}
			cp := *stored
			return &cp, nil
		},
	}
	conversations := &mockConversationLogRepository{}
	bot := &model.ChatBot{ID: 3}

	upd := &telegram.Update{
		ChatMember: &telegram.ChatMemberUpdated{
			Chat:          telegram.Chat{ID: -100, Type: "channel"},
			NewChatMember: telegram.ChatMember{Status: "member", User: telegram.User{ID: 700, Username: "alice"}},
			OldChatMember: telegram.ChatMember{Status: "left"},
			InviteLink:    &telegram.ChatInviteLink{InviteLink: "https://t.me/+x", Name: "v_abc123"},
		},
	}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: conversations, Chat: &mockChatAPI{}})
	if err := svc.HandleUpdate(context.Background(), bot, upd); err != nil {
		t.Fatalf("HandleUpdate error: %v", err)
	}

	if len(bindings.upserted) != 1 {
		t.Fatalf("expected backfill upsert, got %d", len(bindings.upserted))
	}
	b := bindings.upserted[0]
	if b.ChatUserID != 700 || b.Username != "alice" || b.BindingType != model.BindingTypeJoin {
		t.Fatalf("backfill wrong: %+v", b)
	}
	if len(conversations.rows) != 1 || conversations.rows[0].Kind != model.ConversationKindMembership {
		t.Fatalf("membership row expected, got %+v", conversations.rows)
	}
}

func TestHandleUpdate_JoinRedeliveryIsIdempotent(t *testing.T) {
	funnel := uint(9)
	bindings := &mockBindingRepository{
		byInviteFn: func(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error) {
			// Already backfilled by a prior delivery.
			return &model.VisitorBinding{
				VisitorID: "abc123", ChatUserID: 700, BotID: 3, FunnelID: &funnel,
				BindingType: model.BindingTypeJoin, InviteName: "v_abc123",
			}, nil
		},
	}
	conversations := &mockConversationLogRepository{}
	bot := &model.ChatBot{ID: 3}

	upd := &telegram.Update{
		ChatMember: &telegram.ChatMemberUpdated{
			NewChatMember: telegram.ChatMember{Status: "member", User: telegram.User{ID: 700, Username: "alice"}},
			InviteLink:    &telegram.ChatInviteLink{Name: "v_abc123"},
		},
	}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: conversations, Chat: &mockChatAPI{}})
	if err := svc.HandleUpdate(context.Background(), bot, upd); err != nil {
		t.Fatalf("HandleUpdate error: %v", err)
	}
	if len(bindings.upserted) != 0 || len(conversations.rows) != 0 {
		t.Fatalf("re-delivery must be a no-op: %d upserts, %d rows", len(bindings.upserted), len(conversations.rows))
	}
}

func TestHandleUpdate_JoinRequestCorrelates(t *testing.T) {
	bindings := &mockBindingRepository{
		byInviteFn: func(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error) {
			return &model.VisitorBinding{VisitorID: "abc123", BotID: 3, InviteName: name, BindingType: model.BindingTypeInvite}, nil
		},
	}
	conversations := &mockConversationLogRepository{}
	bot := &model.ChatBot{ID: 3}

	upd := &telegram.Update{
		ChatJoinRequest: &telegram.ChatJoinRequest{
			From:       telegram.User{ID: 700, Username: "alice"},
			InviteLink: &telegram.ChatInviteLink{Name: "v_abc123"},
		},
	}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: conversations, Chat: &mockChatAPI{}})
	if err := svc.HandleUpdate(context.Background(), bot, upd); err != nil {
		t.Fatalf("HandleUpdate error: %v", err)
	}
	if len(bindings.upserted) != 1 || bindings.upserted[0].BindingType != model.BindingTypeJoinRequest {
		t.Fatalf("join-request backfill expected, got %+v", bindings.upserted)
	}
}

func TestHandleUpdate_NonExclusiveRouting(t *testing.T) {
	bindings := &mockBindingRepository{
		byInviteFn: func(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error) {
			return &model.VisitorBinding{VisitorID: "abc123", BotID: 3, InviteName: name, BindingType: model.BindingTypeInvite}, nil
		},
	}
	bot := &model.ChatBot{ID: 3}

	upd := privateText(700, "/start abc123")
	upd.ChatJoinRequest = &telegram.ChatJoinRequest{
		From:       telegram.User{ID: 700},
		InviteLink: &telegram.ChatInviteLink{Name: "v_abc123"},
	}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: &mockConversationLogRepository{}, Chat: &mockChatAPI{}})
	if err := svc.HandleUpdate(context.Background(), bot, upd); err != nil {
		t.Fatalf("HandleUpdate error: %v", err)
	}
	// Both the deep-link bind and the join-request backfill ran.
	if len(bindings.upserted) != 2 {
		t.Fatalf("expected both handlers to run, got %d upserts", len(bindings.upserted))
	}
}

func TestHandleUpdate_HandlerErrorPropagates(t *testing.T) {
	bindings := &mockBindingRepository{
		latestFn: func(ctx context.Context, chatUserID int64) (*model.VisitorBinding, error) {
			return nil, errors.New("store unavailable")
		},
	}
	bot := &model.ChatBot{ID: 3}

	svc := NewChatService(ChatDeps{Funnels: &mockFunnelRepository{}, Bindings: bindings, Conversations: &mockConversationLogRepository{}, Chat: &mockChatAPI{}})
	if err := svc.HandleUpdate(context.Background(), bot, privateText(700, "hello")); err == nil {
		t.Fatal("store failures must surface so the platform retries")
	}
}
