package repository

import (
	"context"
	"time"

	"github.com/visitrack/visitrack/internal/app/model"
	"gorm.io/gorm"
)

// EventRepository defines the data access contract for tracking events.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	// ExistsRecent reports whether an event with the same (visitor id, event
	// type, scope key) was created at or after the given instant. The scope
	// key is the funnel id when present, otherwise the domain id carried in
	// metadata.
	ExistsRecent(ctx context.Context, visitorID, eventType string, funnelID *uint, domainID string, since time.Time) (bool, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository returns a GORM-backed EventRepository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) ExistsRecent(ctx context.Context, visitorID, eventType string, funnelID *uint, domainID string, since time.Time) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.Event{}).
		Where("visitor_id = ? AND event_type = ? AND created_at >= ?", visitorID, eventType, since)

	if cond, args, ok := dedupScope(funnelID, domainID); ok {
		q = q.Where(cond, args...)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// dedupScope picks the predicate narrowing the dedup window beyond visitor
// and event type: funnel id when present, otherwise the domain id carried in
// metadata. With neither there is no extra predicate; rows without the
// metadata key yield SQL NULL under ->> and an equality test against the
// empty string would match nothing.
func dedupScope(funnelID *uint, domainID string) (string, []any, bool) {
	switch {
	case funnelID != nil:
		return "funnel_id = ?", []any{*funnelID}, true
	case domainID != "":
		return "metadata->>? = ?", []any{model.MetaDomainID, domainID}, true
	default:
		return "", nil, false
	}
}
