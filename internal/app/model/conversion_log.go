package model

import "time"

// Conversion forward outcomes.
const (
	ConversionStatusSuccess = "success"
	ConversionStatusError   = "error"
	ConversionStatusSkipped = "skipped"
)

// ConversionLog is the append-only audit trail of conversion forward attempts,
// one row per account per attempt, including skipped configuration gaps.
type ConversionLog struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	VisitorID string         `json:"visitor_id" gorm:"size:64;index"`
	FunnelID  *uint          `json:"funnel_id,omitempty" gorm:"index"`
	EventName string         `json:"event_name" gorm:"size:64"`
	AccountID string         `json:"account_id" gorm:"size:64;index"`
	Status    string         `json:"status" gorm:"size:16;not null"`
	Request   map[string]any `json:"request,omitempty" gorm:"type:jsonb;serializer:json"`
	Response  map[string]any `json:"response,omitempty" gorm:"type:jsonb;serializer:json"`
	ErrorText string         `json:"error_text,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
}
