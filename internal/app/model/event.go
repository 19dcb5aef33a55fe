package model

import "time"

// Event types accepted on the tracking surface.
const (
	EventTypePageview = "pageview"
	EventTypeClick    = "click"
)

// Metadata keys with meaning to the pipeline. Everything else in the blob is
// carried opaquely.
const (
	MetaDomainID   = "domain_id"
	MetaSource     = "source"
	MetaClickID    = "fbc"
	MetaBrowserID  = "fbp"
	MetaRawClickID = "fbclid"
	MetaIP         = "ip"
	MetaUserAgent  = "user_agent"
	MetaPageURL    = "url"
	MetaCity       = "city"
	MetaRegion     = "region"
	MetaZip        = "zip"
	MetaCountry    = "country"
)

// Event is an append-only record of a visitor touch. Rows are never mutated;
// deduplication happens at write time against the trailing window.
type Event struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	VisitorID string         `json:"visitor_id" gorm:"size:64;not null;index:idx_events_dedup,priority:1"`
	EventType string         `json:"event_type" gorm:"size:32;not null;index:idx_events_dedup,priority:2"`
	FunnelID  *uint          `json:"funnel_id,omitempty" gorm:"index"`
	Metadata  map[string]any `json:"metadata" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
}

// JetStream mirror of accepted events, consumed for metrics.
const (
	EventStreamName     = "EVENTS"
	EventStreamSubject  = "events.accepted"
	EventConsumerName   = "event-metrics"
	EventStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

// AcceptedEvent is the wire shape published to the event stream.
type AcceptedEvent struct {
	ID        string    `json:"id"`
	VisitorID string    `json:"visitor_id"`
	EventType string    `json:"event_type"`
	FunnelID  *uint     `json:"funnel_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
