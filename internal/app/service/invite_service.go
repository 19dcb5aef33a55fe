package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/visitrack/visitrack/internal/app/model"
	"github.com/visitrack/visitrack/internal/app/repository"
	infraprom "github.com/visitrack/visitrack/internal/infra/prometheus"
	"github.com/visitrack/visitrack/internal/platform/telegram"
	"go.uber.org/zap"
)

// Configuration faults on invite issuance.
var (
	ErrBotNotConfigured = errors.New("funnel has no chat bot credential configured")
	ErrNoInviteTarget   = errors.New("bot has neither a chat id nor a static channel url")
)

// inviteTTL is how long a dynamic invite link stays valid.
const inviteTTL = 24 * time.Hour

// InviteAPI is the outbound surface used for invite creation.
type InviteAPI interface {
	CreateChatInviteLink(ctx context.Context, token string, params telegram.CreateInviteLinkParams) (*telegram.ChatInviteLink, error)
}

// IssueInput describes one invite issuance.
type IssueInput struct {
	FunnelID  uint
	VisitorID string
	// Bot overrides funnel resolution when the caller already holds the bot.
	Bot *model.ChatBot
	// RequireApproval selects a join-request link instead of a single-use one.
	RequireApproval bool
}

// Invite is the issued link. Dynamic links expire; static fallbacks do not.
type Invite struct {
	Link      string
	Dynamic   bool
	ExpiresIn time.Duration
}

// InviteService issues visitor-correlated chat invite links with a static
// fallback chain.
type InviteService struct {
	logger   *zap.Logger
	funnels  repository.FunnelRepository
	bindings repository.BindingRepository
	tg       InviteAPI
	now      func() time.Time
}

// NewInviteService builds the invite issuer.
func NewInviteService(logger *zap.Logger, funnels repository.FunnelRepository, bindings repository.BindingRepository, tg InviteAPI) *InviteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InviteService{
		logger:   logger,
		funnels:  funnels,
		bindings: bindings,
		tg:       tg,
		now:      time.Now,
	}
}

// Issue resolves the bot, attempts a dynamic invite link named after the
// visitor, and falls back to the static channel URL when dynamic generation is
// unavailable or fails. A binding-write failure never loses an already
// obtained link.
func (s *InviteService) Issue(ctx context.Context, in IssueInput) (*Invite, error) {
	bot := in.Bot
	var funnelID *uint

	if bot == nil {
		funnel, err := s.funnels.GetByID(ctx, in.FunnelID)
		if err != nil {
			return nil, fmt.Errorf("resolve funnel: %w", err)
		}
		bot = funnel.Bot
		funnelID = &funnel.ID
	} else if in.FunnelID != 0 {
		id := in.FunnelID
		funnelID = &id
	}

	if bot == nil || bot.Token == "" {
		return nil, ErrBotNotConfigured
	}

	// Without a numeric chat id dynamic generation is impossible; without a
	// visitor id a labeled link is pointless. Either way the static channel
	// serves, without touching the network.
	if bot.ChatID == 0 || in.VisitorID == "" {
		if bot.ChannelURL == "" {
			return nil, ErrNoInviteTarget
		}
		infraprom.InvitesIssued.WithLabelValues("static").Inc()
		return &Invite{Link: bot.ChannelURL, Dynamic: false}, nil
	}

	name := model.InviteName(in.VisitorID)
	params := telegram.CreateInviteLinkParams{
		ChatID:     bot.ChatID,
		Name:       name,
		ExpireDate: s.now().Add(inviteTTL).Unix(),
	}
	if in.RequireApproval {
		params.CreatesJoinRequest = true
	} else {
		params.MemberLimit = 1
	}

	link, err := s.tg.CreateChatInviteLink(ctx, bot.Token, params)
	if err != nil {
		if bot.ChannelURL == "" {
			return nil, fmt.Errorf("create invite link: %w", err)
		}
		s.logger.Warn("dynamic invite failed, falling back to static channel",
			zap.Uint("bot_id", bot.ID),
			zap.String("visitor_id", in.VisitorID),
			zap.Error(err))
		infraprom.InvitesIssued.WithLabelValues("static").Inc()
		return &Invite{Link: bot.ChannelURL, Dynamic: false}, nil
	}

	// Placeholder binding (chat user 0): resolved to the real chat user once
	// the visitor actually joins. Losing it costs only correlation, never the
	// link itself.
	binding := &model.VisitorBinding{
		VisitorID:   in.VisitorID,
		ChatUserID:  0,
		BotID:       bot.ID,
		FunnelID:    funnelID,
		BindingType: model.BindingTypeInvite,
		InviteName:  name,
		InviteLink:  link.InviteLink,
	}
	if err := s.bindings.Upsert(ctx, binding); err != nil {
		s.logger.Error("failed to record invite binding",
			zap.String("visitor_id", in.VisitorID),
			zap.Error(err))
	}

	infraprom.InvitesIssued.WithLabelValues("dynamic").Inc()
	return &Invite{Link: link.InviteLink, Dynamic: true, ExpiresIn: inviteTTL}, nil
}
