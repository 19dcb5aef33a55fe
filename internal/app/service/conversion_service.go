package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/visitrack/visitrack/internal/app/model"
	"github.com/visitrack/visitrack/internal/app/repository"
	infraprom "github.com/visitrack/visitrack/internal/infra/prometheus"
	"github.com/visitrack/visitrack/internal/platform/facebook"
	"go.uber.org/zap"
)

// ConversionsAPI is the outbound surface of the ad platform client.
type ConversionsAPI interface {
	SendEvents(ctx context.Context, accountID, accessToken string, events []facebook.Event) (*facebook.Response, error)
}

// UserFields are the raw per-visitor match fields before normalization.
// ClickID and BrowserID are opaque platform tokens and pass through verbatim;
// the personal-identifier fields are hashed before transmission.
type UserFields struct {
	ExternalID string
	City       string
	Region     string
	Zip        string
	Country    string
	IP         string
	UserAgent  string
	ClickID    string
	BrowserID  string
}

// CustomFields are optional commerce fields attached to the conversion.
type CustomFields struct {
	ContentName string
	Currency    string
	Value       float64
}

func (c CustomFields) empty() bool {
	return c.ContentName == "" && c.Currency == "" && c.Value == 0
}

// ForwardInput is one conversion forward attempt against one ad account.
type ForwardInput struct {
	AccessToken string
	AccountID   string
	EventName   string
	VisitorID   string
	FunnelID    *uint
	SourceURL   string
	User        UserFields
	Custom      CustomFields
}

// ForwardOutcome reports a settled attempt. A nil outcome with a nil error
// means the attempt was skipped for lack of configuration.
type ForwardOutcome struct {
	Status  string
	EventID string
}

// ConversionService normalizes, forwards, and audits conversion events.
type ConversionService struct {
	logger *zap.Logger
	api    ConversionsAPI
	logs   repository.ConversionLogRepository
	now    func() time.Time
}

// NewConversionService builds the forwarder with its audit log store.
func NewConversionService(logger *zap.Logger, api ConversionsAPI, logs repository.ConversionLogRepository) *ConversionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionService{
		logger: logger,
		api:    api,
		logs:   logs,
		now:    time.Now,
	}
}

// Forward performs at most one outbound round trip. Missing credentials are a
// configuration gap, not an error: a skipped row is written and nil is
// returned. Platform-reported errors are absorbed into the audit trail;
// transport failures are logged and re-raised.
func (s *ConversionService) Forward(ctx context.Context, in ForwardInput) (*ForwardOutcome, error) {
	if in.AccessToken == "" || in.AccountID == "" {
		s.writeLog(ctx, in, model.ConversionStatusSkipped, nil, nil, "missing access token or account id")
		return nil, nil
	}

	now := s.now()
	eventID := buildEventID(in.EventName, now, in.VisitorID)

	event := facebook.Event{
		EventName:      in.EventName,
		EventTime:      now.Unix(),
		EventID:        eventID,
		EventSourceURL: in.SourceURL,
		ActionSource:   "website",
		UserData:       normalizeUserData(in.User),
	}
	if !in.Custom.empty() {
		event.CustomData = &facebook.CustomData{
			ContentName: in.Custom.ContentName,
			Currency:    in.Custom.Currency,
			Value:       in.Custom.Value,
		}
	}

	request := map[string]any{"data": []facebook.Event{event}}

	resp, err := s.api.SendEvents(ctx, in.AccountID, in.AccessToken, []facebook.Event{event})
	if err != nil {
		// Transport failure: audit, then re-raise so the caller can decide.
		s.writeLog(ctx, in, model.ConversionStatusError, request, nil, err.Error())
		s.logger.Error("conversion transport failure",
			zap.String("account_id", in.AccountID),
			zap.String("visitor_id", in.VisitorID),
			zap.Error(err))
		return nil, fmt.Errorf("forward conversion: %w", err)
	}

	response := responseMap(resp)

	switch {
	case resp.Error != nil:
		s.writeLog(ctx, in, model.ConversionStatusError, request, response, resp.Error.Error())
		return &ForwardOutcome{Status: model.ConversionStatusError, EventID: eventID}, nil
	case resp.EventsReceived > 0:
		s.writeLog(ctx, in, model.ConversionStatusSuccess, request, response, "")
		return &ForwardOutcome{Status: model.ConversionStatusSuccess, EventID: eventID}, nil
	default:
		s.writeLog(ctx, in, model.ConversionStatusError, request, response, "unexpected response from events endpoint")
		return &ForwardOutcome{Status: model.ConversionStatusError, EventID: eventID}, nil
	}
}

// writeLog appends the audit row. Audit failures are reported and swallowed;
// they never surface past the forwarder.
func (s *ConversionService) writeLog(ctx context.Context, in ForwardInput, status string, request, response map[string]any, errText string) {
	infraprom.ConversionsForwarded.WithLabelValues(status).Inc()

	if s.logs == nil {
		return
	}

	row := &model.ConversionLog{
		VisitorID: in.VisitorID,
		FunnelID:  in.FunnelID,
		EventName: in.EventName,
		AccountID: in.AccountID,
		Status:    status,
		Request:   request,
		Response:  response,
		ErrorText: errText,
	}
	if err := s.logs.Create(ctx, row); err != nil {
		s.logger.Error("failed to write conversion log",
			zap.String("account_id", in.AccountID),
			zap.String("status", status),
			zap.Error(err))
	}
}

// buildEventID produces the stable id the ad platform uses for its own
// deduplication: lowercased event name, epoch seconds, visitor id prefix.
func buildEventID(eventName string, at time.Time, visitorID string) string {
	prefix := "unknown"
	if visitorID != "" {
		prefix = visitorID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
	}
	return fmt.Sprintf("%s_%d_%s", strings.ToLower(eventName), at.Unix(), prefix)
}

func normalizeUserData(u UserFields) facebook.UserData {
	return facebook.UserData{
		ExternalID:      hashPII(u.ExternalID),
		City:            hashPII(u.City),
		State:           hashPII(u.Region),
		Zip:             hashPII(u.Zip),
		Country:         hashPII(u.Country),
		ClientIPAddress: strings.TrimSpace(u.IP),
		ClientUserAgent: strings.TrimSpace(u.UserAgent),
		FBC:             strings.TrimSpace(u.ClickID),
		FBP:             strings.TrimSpace(u.BrowserID),
	}
}

// hashPII lower-cases, trims, and one-way hashes a personal identifier. Raw
// PII never leaves the process.
func hashPII(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func responseMap(resp *facebook.Response) map[string]any {
	if resp == nil {
		return nil
	}
	out := map[string]any{
		"events_received": resp.EventsReceived,
	}
	if resp.FBTraceID != "" {
		out["fbtrace_id"] = resp.FBTraceID
	}
	if resp.Error != nil {
		out["error"] = map[string]any{
			"message": resp.Error.Message,
			"type":    resp.Error.Type,
			"code":    resp.Error.Code,
		}
	}
	return out
}
