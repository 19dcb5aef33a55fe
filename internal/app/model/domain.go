package model

import "time"

// Domain is a tracked hostname. A domain may carry one primary pixel plus any
// number of extra pixels through the domain_pixels join table; fan-out targets
// are deduplicated by external account id before dispatch.
type Domain struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Hostname    string     `json:"hostname" gorm:"size:255;uniqueIndex;not null"`
	PixelID     *uint      `json:"pixel_id,omitempty"`
	Pixel       *Pixel     `json:"pixel,omitempty" gorm:"foreignKey:PixelID"`
	ExtraPixels []Pixel    `json:"extra_pixels,omitempty" gorm:"many2many:domain_pixels"`
	FunnelID    *uint      `json:"funnel_id,omitempty"`
	VerifyToken string     `json:"verify_token,omitempty" gorm:"size:64"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// Pixels returns the primary pixel followed by the extras, deduplicated by
// external account id. The primary slot wins on overlap.
func (d *Domain) Pixels() []Pixel {
	seen := make(map[string]struct{}, len(d.ExtraPixels)+1)
	var out []Pixel

	if d.Pixel != nil && d.Pixel.AccountID != "" {
		seen[d.Pixel.AccountID] = struct{}{}
		out = append(out, *d.Pixel)
	}
	for _, p := range d.ExtraPixels {
		if p.AccountID == "" {
			continue
		}
		if _, ok := seen[p.AccountID]; ok {
			continue
		}
		seen[p.AccountID] = struct{}{}
		out = append(out, p)
	}
	return out
}
