package repository

import (
	"context"
	"errors"

	"github.com/visitrack/visitrack/internal/app/model"
	"gorm.io/gorm"
)

// ErrBotNotFound signals that the requested chat bot does not exist.
var ErrBotNotFound = errors.New("chat bot not found")

// BotRepository defines the data access contract for chat bots.
type BotRepository interface {
	GetByID(ctx context.Context, id uint) (*model.ChatBot, error)
	List(ctx context.Context) ([]model.ChatBot, error)
}

type botRepository struct {
	db *gorm.DB
}

// NewBotRepository returns a GORM-backed BotRepository.
func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepository{db: db}
}

func (r *botRepository) GetByID(ctx context.Context, id uint) (*model.ChatBot, error) {
	var bot model.ChatBot
	if err := r.db.WithContext(ctx).First(&bot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return &bot, nil
}

func (r *botRepository) List(ctx context.Context) ([]model.ChatBot, error) {
	var bots []model.ChatBot
	if err := r.db.WithContext(ctx).Find(&bots).Error; err != nil {
		return nil, err
	}
	return bots, nil
}
