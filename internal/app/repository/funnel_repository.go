package repository

import (
	"context"
	"errors"

	"github.com/visitrack/visitrack/internal/app/model"
	"gorm.io/gorm"
)

// ErrFunnelNotFound signals that the requested funnel does not exist.
var ErrFunnelNotFound = errors.New("funnel not found")

// FunnelRepository defines the data access contract for funnels.
type FunnelRepository interface {
	GetByID(ctx context.Context, id uint) (*model.Funnel, error)
	GetBySlug(ctx context.Context, slug string) (*model.Funnel, error)
	// GetByBotID resolves the funnel owning the given chat bot.
	GetByBotID(ctx context.Context, botID uint) (*model.Funnel, error)
}

type funnelRepository struct {
	db *gorm.DB
}

// NewFunnelRepository returns a GORM-backed FunnelRepository.
func NewFunnelRepository(db *gorm.DB) FunnelRepository {
	return &funnelRepository{db: db}
}

func (r *funnelRepository) GetByID(ctx context.Context, id uint) (*model.Funnel, error) {
	var funnel model.Funnel
	if err := r.db.WithContext(ctx).Preload("Bot").Preload("Pixel").First(&funnel, id).Error; err != nil {
		return nil, mapFunnelErr(err)
	}
	return &funnel, nil
}

func (r *funnelRepository) GetBySlug(ctx context.Context, slug string) (*model.Funnel, error) {
	var funnel model.Funnel
	err := r.db.WithContext(ctx).Preload("Bot").Preload("Pixel").
		Where("slug = ?", slug).First(&funnel).Error
	if err != nil {
		return nil, mapFunnelErr(err)
	}
	return &funnel, nil
}

func (r *funnelRepository) GetByBotID(ctx context.Context, botID uint) (*model.Funnel, error) {
	var funnel model.Funnel
	err := r.db.WithContext(ctx).Preload("Bot").
		Where("bot_id = ?", botID).First(&funnel).Error
	if err != nil {
		return nil, mapFunnelErr(err)
	}
	return &funnel, nil
}

func mapFunnelErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFunnelNotFound
	}
	return err
}
