package model

import "time"

// Funnel binds a traffic source to one chat bot and an ad account.
type Funnel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Slug      string    `json:"slug" gorm:"size:64;uniqueIndex;not null"`
	BotID     *uint     `json:"bot_id,omitempty"`
	Bot       *ChatBot  `json:"bot,omitempty" gorm:"foreignKey:BotID"`
	PixelID   *uint     `json:"pixel_id,omitempty"`
	Pixel     *Pixel    `json:"pixel,omitempty" gorm:"foreignKey:PixelID"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
