package repository

import (
	"context"

	"github.com/visitrack/visitrack/internal/app/model"
	"gorm.io/gorm"
)

// ConversionLogRepository is the append-only store for forward-attempt audit rows.
type ConversionLogRepository interface {
	Create(ctx context.Context, log *model.ConversionLog) error
}

type conversionLogRepository struct {
	db *gorm.DB
}

// NewConversionLogRepository returns a GORM-backed ConversionLogRepository.
func NewConversionLogRepository(db *gorm.DB) ConversionLogRepository {
	return &conversionLogRepository{db: db}
}

func (r *conversionLogRepository) Create(ctx context.Context, log *model.ConversionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}
