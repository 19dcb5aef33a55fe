package model

import "time"

// Pixel is an ad account on the conversion platform: the external account id
// plus the access credential used against the server-side events endpoint.
type Pixel struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AccountID   string    `json:"account_id" gorm:"size:64;uniqueIndex;not null"`
	AccessToken string    `json:"-" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
