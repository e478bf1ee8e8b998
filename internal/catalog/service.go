package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrStoreUnavailable wraps transport failures from the backing store.
	ErrStoreUnavailable = errors.New("catalog: store unavailable")

	errMissingDatabase = errors.New("catalog: database handle is required")
)

// ServiceConfig describes the dependencies for catalog reads.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service provides read-only access to the house-model catalog.
type Service struct {
	db *gorm.DB
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	return &Service{db: cfg.Database}, nil
}

// ListModels returns every configured house design ordered by name.
func (s *Service) ListModels(ctx context.Context) ([]HouseModel, error) {
	var models []HouseModel
	if err := s.db.WithContext(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return models, nil
}

// ModelExists reports whether a design with the given name is configured.
// An empty catalog never matches, which blocks lot creation entirely.
func (s *Service) ModelExists(ctx context.Context, name string) (bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&HouseModel{}).
		Where("name = ?", trimmed).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}
