package model

import "time"

// ChatBot holds the chat platform credential for a funnel's bot. ChatID is the
// numeric channel/group the bot issues invite links for; ChannelURL is the
// static fallback when dynamic invite generation is unavailable.
type ChatBot struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Token      string    `json:"-" gorm:"type:text"`
	ChatID     int64     `json:"chat_id"`
	ChannelURL string    `json:"channel_url,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
