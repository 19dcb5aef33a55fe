package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/visitrack/visitrack/internal/app/model"
	"github.com/visitrack/visitrack/internal/app/repository"
	"github.com/visitrack/visitrack/internal/identity"
	infraprom "github.com/visitrack/visitrack/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Validation failures on the tracking contract.
var (
	ErrMissingVisitorID = errors.New("visitor_id is required")
	ErrMissingEventType = errors.New("event_type is required")
)

// Forwarder dispatches one conversion attempt against one ad account.
type Forwarder interface {
	Forward(ctx context.Context, in ForwardInput) (*ForwardOutcome, error)
}

// EventMirror publishes accepted events to the metrics stream. Optional;
// publish failures never affect the request.
type EventMirror interface {
	Publish(ev model.AcceptedEvent) error
}

// TrackInput is the tracking surface contract.
type TrackInput struct {
	VisitorID string
	EventType string
	Metadata  map[string]any
	DomainID  *uint
	FunnelID  *uint
}

// TrackResult reports what the ingress did with the submission.
type TrackResult struct {
	Skipped  bool
	EventID  string
	Accounts int
}

// TrackService ingests events: dedup window, domain resolution, unconditional
// insert, and concurrent conversion fan-out.
type TrackService struct {
	logger      *zap.Logger
	events      repository.EventRepository
	domains     repository.DomainRepository
	forwarder   Forwarder
	mirror      EventMirror
	dedupWindow time.Duration
	source      string
	now         func() time.Time
}

// TrackDeps bundles the ingress dependencies.
type TrackDeps struct {
	Logger      *zap.Logger
	Events      repository.EventRepository
	Domains     repository.DomainRepository
	Forwarder   Forwarder
	Mirror      EventMirror
	DedupWindow time.Duration
	Source      string
}

// NewTrackService builds the ingress service.
func NewTrackService(deps TrackDeps) *TrackService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := deps.DedupWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	source := deps.Source
	if source == "" {
		source = "web"
	}
	return &TrackService{
		logger:      logger,
		events:      deps.Events,
		domains:     deps.Domains,
		forwarder:   deps.Forwarder,
		mirror:      deps.Mirror,
		dedupWindow: window,
		source:      source,
		now:         time.Now,
	}
}

// Track applies the ingestion algorithm. Deduplication is a control-flow
// outcome: a suppressed duplicate returns Skipped=true and no error.
func (s *TrackService) Track(ctx context.Context, in TrackInput) (*TrackResult, error) {
	if in.VisitorID == "" {
		return nil, ErrMissingVisitorID
	}
	if in.EventType == "" {
		return nil, ErrMissingEventType
	}

	md := make(map[string]any, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		md[k] = v
	}
	if in.DomainID != nil {
		md[model.MetaDomainID] = strconv.FormatUint(uint64(*in.DomainID), 10)
	}
	if metaString(md, model.MetaSource) == "" {
		md[model.MetaSource] = s.source
	}

	// A missing click-id cookie can still be reconstructed from the raw ad
	// click id carried in the page URL.
	if metaString(md, model.MetaClickID) == "" {
		if raw := metaString(md, model.MetaRawClickID); raw != "" {
			md[model.MetaClickID] = identity.SynthesizeClickID(raw, s.now())
		}
	}

	funnelID := in.FunnelID
	scopeDomain := metaString(md, model.MetaDomainID)

	exists, err := s.events.ExistsRecent(ctx, in.VisitorID, in.EventType, funnelID, scopeDomain, s.now().Add(-s.dedupWindow))
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		infraprom.EventsSkipped.Inc()
		s.logger.Debug("duplicate event suppressed",
			zap.String("visitor_id", in.VisitorID),
			zap.String("event_type", in.EventType))
		return &TrackResult{Skipped: true}, nil
	}

	var pixels []model.Pixel
	if in.DomainID != nil {
		domain, err := s.domains.GetByID(ctx, *in.DomainID)
		switch {
		case errors.Is(err, repository.ErrDomainNotFound):
			s.logger.Warn("event references unknown domain", zap.Uint("domain_id", *in.DomainID))
		case err != nil:
			return nil, fmt.Errorf("resolve domain: %w", err)
		default:
			if funnelID == nil && domain.FunnelID != nil {
				funnelID = domain.FunnelID
			}
			pixels = domain.Pixels()
		}
	}

	event := &model.Event{
		ID:        uuid.New().String(),
		VisitorID: in.VisitorID,
		EventType: in.EventType,
		FunnelID:  funnelID,
		Metadata:  md,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Publish(model.AcceptedEvent{
			ID:        event.ID,
			VisitorID: event.VisitorID,
			EventType: event.EventType,
			FunnelID:  event.FunnelID,
			Timestamp: s.now(),
		}); err != nil {
			s.logger.Warn("failed to mirror event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	if !s.shouldForward(in.EventType, md, pixels) {
		return &TrackResult{EventID: event.ID}, nil
	}

	s.fanOut(ctx, event, md, pixels)
	return &TrackResult{EventID: event.ID, Accounts: len(pixels)}, nil
}

// shouldForward gates the conversion fan-out: only pageviews, only with at
// least one resolved account, and only for ad-origin traffic.
func (s *TrackService) shouldForward(eventType string, md map[string]any, pixels []model.Pixel) bool {
	if eventType != model.EventTypePageview || len(pixels) == 0 {
		return false
	}
	return metaString(md, model.MetaClickID) != "" || metaString(md, model.MetaRawClickID) != ""
}

// fanOut runs one forward per account concurrently and waits for all to
// settle. A failed account is logged and isolated; it never fails the parent
// request or cancels siblings.
func (s *TrackService) fanOut(ctx context.Context, event *model.Event, md map[string]any, pixels []model.Pixel) {
	in := ForwardInput{
		EventName: "PageView",
		VisitorID: event.VisitorID,
		FunnelID:  event.FunnelID,
		SourceURL: metaString(md, model.MetaPageURL),
		User: UserFields{
			ExternalID: event.VisitorID,
			City:       metaString(md, model.MetaCity),
			Region:     metaString(md, model.MetaRegion),
			Zip:        metaString(md, model.MetaZip),
			Country:    metaString(md, model.MetaCountry),
			IP:         metaString(md, model.MetaIP),
			UserAgent:  metaString(md, model.MetaUserAgent),
			ClickID:    metaString(md, model.MetaClickID),
			BrowserID:  metaString(md, model.MetaBrowserID),
		},
		Custom: CustomFields{
			ContentName: metaString(md, "content_name"),
			Currency:    metaString(md, "currency"),
			Value:       metaFloat(md, "value"),
		},
	}

	var wg sync.WaitGroup
	for _, px := range pixels {
		wg.Add(1)
		go func(px model.Pixel) {
			defer wg.Done()

			attempt := in
			attempt.AccessToken = px.AccessToken
			attempt.AccountID = px.AccountID

			if _, err := s.forwarder.Forward(ctx, attempt); err != nil {
				s.logger.Error("conversion forward failed",
					zap.String("account_id", px.AccountID),
					zap.String("visitor_id", event.VisitorID),
					zap.Error(err))
			}
		}(px)
	}
	wg.Wait()
}

func metaString(md map[string]any, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

func metaFloat(md map[string]any, key string) float64 {
	switch t := md[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
