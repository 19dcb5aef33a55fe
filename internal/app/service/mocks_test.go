package service

import (
	"context"
	"sync"
	"time"

	"github.com/visitrack/visitrack/internal/app/model"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/platform/facebook"
	"github.com/visitrack/visitrack/internal/platform/telegram"
)

type mockEventRepository struct {
	createFn func(ctx context.Context, event *model.Event) error
	existsFn func(ctx context.Context, visitorID, eventType string, funnelID *uint, domainID string, since time.Time) (bool, error)

	mu      sync.Mutex
	created []*model.Event
}

func (m *mockEventRepository) Create(ctx context.Context, event *model.Event) error {
	m.mu.Lock()
	m.created = append(m.created, event)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	return nil
}

func (m *mockEventRepository) ExistsRecent(ctx context.Context, visitorID, eventType string, funnelID *uint, domainID string, since time.Time) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, visitorID, eventType, funnelID, domainID, since)
	}
	return false, nil
}

type mockDomainRepository struct {
	getFn func(ctx context.Context, id uint) (*model.Domain, error)
}

func (m *mockDomainRepository) GetByID(ctx context.Context, id uint) (*model.Domain, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrDomainNotFound
}

type mockFunnelRepository struct {
	getFn      func(ctx context.Context, id uint) (*model.Funnel, error)
	getSlugFn  func(ctx context.Context, slug string) (*model.Funnel, error)
	getByBotFn func(ctx context.Context, botID uint) (*model.Funnel, error)
}

func (m *mockFunnelRepository) GetByID(ctx context.Context, id uint) (*model.Funnel, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrFunnelNotFound
}

func (m *mockFunnelRepository) GetBySlug(ctx context.Context, slug string) (*model.Funnel, error) {
	if m.getSlugFn != nil {
		return m.getSlugFn(ctx, slug)
	}
	return nil, repository.ErrFunnelNotFound
}

func (m *mockFunnelRepository) GetByBotID(ctx context.Context, botID uint) (*model.Funnel, error) {
	if m.getByBotFn != nil {
		return m.getByBotFn(ctx, botID)
	}
	return nil, repository.ErrFunnelNotFound
}

type mockBindingRepository struct {
	upsertFn   func(ctx context.Context, binding *model.VisitorBinding) error
	latestFn   func(ctx context.Context, chatUserID int64) (*model.VisitorBinding, error)
	byInviteFn func(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error)

	mu       sync.Mutex
	upserted []*model.VisitorBinding
}

func (m *mockBindingRepository) Upsert(ctx context.Context, binding *model.VisitorBinding) error {
	m.mu.Lock()
	m.upserted = append(m.upserted, binding)
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, binding)
	}
	return nil
}

func (m *mockBindingRepository) LatestByChatUser(ctx context.Context, chatUserID int64) (*model.VisitorBinding, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, chatUserID)
	}
	return nil, repository.ErrBindingNotFound
}

func (m *mockBindingRepository) FindByInviteName(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error) {
	if m.byInviteFn != nil {
		return m.byInviteFn(ctx, botID, name)
	}
	return nil, repository.ErrBindingNotFound
}

type mockConversionLogRepository struct {
	createFn func(ctx context.Context, log *model.ConversionLog) error

	mu   sync.Mutex
	rows []*model.ConversionLog
}

func (m *mockConversionLogRepository) Create(ctx context.Context, log *model.ConversionLog) error {
	m.mu.Lock()
	m.rows = append(m.rows, log)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, log)
	}
	return nil
}

type mockConversationLogRepository struct {
	createFn func(ctx context.Context, log *model.ConversationLog) error

	mu   sync.Mutex
	rows []*model.ConversationLog
}

func (m *mockConversationLogRepository) Create(ctx context.Context, log *model.ConversationLog) error {
	m.mu.Lock()
	m.rows = append(m.rows, log)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, log)
	}
	return nil
}

type mockForwarder struct {
	forwardFn func(ctx context.Context, in ForwardInput) (*ForwardOutcome, error)

	mu    sync.Mutex
	calls []ForwardInput
}

func (m *mockForwarder) Forward(ctx context.Context, in ForwardInput) (*ForwardOutcome, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	m.mu.Unlock()
	if m.forwardFn != nil {
		return m.forwardFn(ctx, in)
	}
	return &ForwardOutcome{Status: model.ConversionStatusSuccess}, nil
}

type mockConversionsAPI struct {
	sendFn func(ctx context.Context, accountID, accessToken string, events []facebook.Event) (*facebook.Response, error)

	mu    sync.Mutex
	sent  [][]facebook.Event
	calls int
}

func (m *mockConversionsAPI) SendEvents(ctx context.Context, accountID, accessToken string, events []facebook.Event) (*facebook.Response, error) {
	m.mu.Lock()
	m.sent = append(m.sent, events)
	m.calls++
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, accountID, accessToken, events)
	}
	return &facebook.Response{EventsReceived: len(events)}, nil
}

type mockInviteAPI struct {
	createFn func(ctx context.Context, token string, params telegram.CreateInviteLinkParams) (*telegram.ChatInviteLink, error)

	mu    sync.Mutex
	calls []telegram.CreateInviteLinkParams
}

func (m *mockInviteAPI) CreateChatInviteLink(ctx context.Context, token string, params telegram.CreateInviteLinkParams) (*telegram.ChatInviteLink, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, token, params)
	}
	return &telegram.ChatInviteLink{InviteLink: "https://t.me/+generated", Name: params.Name}, nil
}

type mockChatAPI struct {
	sendFn func(ctx context.Context, token string, params telegram.SendMessageParams) (*telegram.Message, error)

	mu    sync.Mutex
	sends []telegram.SendMessageParams
}

func (m *mockChatAPI) SendMessage(ctx context.Context, token string, params telegram.SendMessageParams) (*telegram.Message, error) {
	m.mu.Lock()
	m.sends = append(m.sends, params)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, token, params)
	}
	return &telegram.Message{MessageID: 1}, nil
}
