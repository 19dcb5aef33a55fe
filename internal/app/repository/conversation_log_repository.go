package repository

import (
	"context"

	"github.com/visitrack/visitrack/internal/app/model"
	"gorm.io/gorm"
)

// ConversationLogRepository is the append-only store for inbound chat rows.
type ConversationLogRepository interface {
	Create(ctx context.Context, log *model.ConversationLog) error
}

type conversationLogRepository struct {
	db *gorm.DB
}

// NewConversationLogRepository returns a GORM-backed ConversationLogRepository.
func NewConversationLogRepository(db *gorm.DB) ConversationLogRepository {
	return &conversationLogRepository{db: db}
}

func (r *conversationLogRepository) Create(ctx context.Context, log *model.ConversationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}
