package repository

import (
	"context"
	"errors"

	"github.com/visitrack/visitrack/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBindingNotFound signals that no visitor binding matches the lookup.
var ErrBindingNotFound = errors.New("visitor binding not found")

// BindingRepository defines the data access contract for visitor bindings.
type BindingRepository interface {
	// Upsert writes the binding keyed by visitor id. A conflicting row is
	// overwritten last-writer-wins so racing writes converge to a single row.
	Upsert(ctx context.Context, binding *model.VisitorBinding) error
	// LatestByChatUser returns the most recently updated binding for a chat
	// user id.
	LatestByChatUser(ctx context.Context, chatUserID int64) (*model.VisitorBinding, error)
	// FindByInviteName resolves the binding that carries the given invite
	// label for a bot.
	FindByInviteName(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error)
}

type bindingRepository struct {
	db *gorm.DB
}

// NewBindingRepository returns a GORM-backed BindingRepository.
func NewBindingRepository(db *gorm.DB) BindingRepository {
	return &bindingRepository{db: db}
}

func (r *bindingRepository) Upsert(ctx context.Context, binding *model.VisitorBinding) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "visitor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chat_user_id", "username", "bot_id", "funnel_id",
			"binding_type", "invite_name", "invite_link", "updated_at",
		}),
	}).Create(binding).Error
}

func (r *bindingRepository) LatestByChatUser(ctx context.Context, chatUserID int64) (*model.VisitorBinding, error) {
	var binding model.VisitorBinding
	err := r.db.WithContext(ctx).
		Where("chat_user_id = ?", chatUserID).
		Order("updated_at DESC").
		First(&binding).Error
	if err != nil {
		return nil, mapBindingErr(err)
	}
	return &binding, nil
}

func (r *bindingRepository) FindByInviteName(ctx context.Context, botID uint, name string) (*model.VisitorBinding, error) {
	var binding model.VisitorBinding
	err := r.db.WithContext(ctx).
		Where("bot_id = ? AND invite_name = ?", botID, name).
		Order("updated_at DESC").
		First(&binding).Error
	if err != nil {
		return nil, mapBindingErr(err)
	}
	return &binding, nil
}

func mapBindingErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBindingNotFound
	}
	return err
}
