package model

import "time"

// Binding types describing how the visitor/chat-user correlation was made.
const (
	BindingTypeInvite      = "invite"       // placeholder written at invite-link issue time
	BindingTypeDeepLink    = "deeplink"     // /start payload bound a real chat user
	BindingTypeJoin        = "join"         // chat_member transition resolved via invite name
	BindingTypeJoinRequest = "join_request" // chat_join_request resolved via invite name
)

// InviteNamePrefix + the first InviteNameVisitorLen characters of the visitor
// id form the invite-link label. The chat platform caps labels at 32
// characters, so visitor ids are truncated, not hashed.
const (
	InviteNamePrefix     = "v_"
	InviteNameVisitorLen = 28
)

// InviteName builds the invite-link label for a visitor id.
func InviteName(visitorID string) string {
	if len(visitorID) > InviteNameVisitorLen {
		visitorID = visitorID[:InviteNameVisitorLen]
	}
	return InviteNamePrefix + visitorID
}

// VisitorBinding is the durable join between the web-identity domain and the
// chat-identity domain. One row per visitor id, upserted last-writer-wins,
// never hard-deleted. ChatUserID 0 marks a placeholder written at invite time
// and backfilled once the user actually joins.
type VisitorBinding struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	VisitorID   string    `json:"visitor_id" gorm:"size:64;uniqueIndex;not null"`
	ChatUserID  int64     `json:"chat_user_id" gorm:"index"`
	Username    string    `json:"username,omitempty" gorm:"size:64"`
	BotID       uint      `json:"bot_id" gorm:"index"`
	FunnelID    *uint     `json:"funnel_id,omitempty"`
	BindingType string    `json:"binding_type" gorm:"size:16"`
	InviteName  string    `json:"invite_name,omitempty" gorm:"size:32;index"`
	InviteLink  string    `json:"invite_link,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
