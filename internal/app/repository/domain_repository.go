package repository

import (
	"context"
	"errors"

	"github.com/visitrack/visitrack/internal/app/model"
	"gorm.io/gorm"
)

// ErrDomainNotFound signals that the requested domain does not exist.
var ErrDomainNotFound = errors.New("domain not found")

// DomainRepository defines the data access contract for tracked domains.
type DomainRepository interface {
	// GetByID loads a domain with its primary pixel and the extra-pixel set.
	GetByID(ctx context.Context, id uint) (*model.Domain, error)
}

type domainRepository struct {
	db *gorm.DB
}

// NewDomainRepository returns a GORM-backed DomainRepository.
func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepository{db: db}
}

func (r *domainRepository) GetByID(ctx context.Context, id uint) (*model.Domain, error) {
	var domain model.Domain
	err := r.db.WithContext(ctx).
		Preload("Pixel").
		Preload("ExtraPixels").
		First(&domain, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return &domain, nil
}
