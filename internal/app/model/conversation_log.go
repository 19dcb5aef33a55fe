package model

import "time"

// Conversation row kinds.
const (
	ConversationKindText       = "text"
	ConversationKindMembership = "membership"
)

// ConversationLog records inbound chat traffic attributable to a tracked
// visitor. Messages from unbound chat users are never written.
type ConversationLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ChatUserID int64     `json:"chat_user_id" gorm:"index"`
	BotID      uint      `json:"bot_id" gorm:"index"`
	FunnelID   *uint     `json:"funnel_id,omitempty" gorm:"index"`
	Kind       string    `json:"kind" gorm:"size:16;not null"`
	Text       string    `json:"text,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}
