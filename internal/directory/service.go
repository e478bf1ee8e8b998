package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrHomeownerNotFound indicates the referenced homeowner does not exist.
	ErrHomeownerNotFound = errors.New("directory: homeowner not found")
	// ErrStoreUnavailable wraps transport failures from the backing store.
	ErrStoreUnavailable = errors.New("directory: store unavailable")

	errMissingDatabase = errors.New("directory: database handle is required")
)

// ServiceConfig describes the dependencies for directory lookups.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service provides read-only access to the homeowner directory.
type Service struct {
	db *gorm.DB
}

// NewService constructs the directory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	return &Service{db: cfg.Database}, nil
}

// GetHomeowner point-reads one homeowner by id.
func (s *Service) GetHomeowner(ctx context.Context, homeownerID string) (Homeowner, error) {
	trimmed := strings.TrimSpace(homeownerID)
	if trimmed == "" {
		return Homeowner{}, fmt.Errorf("%w: empty id", ErrHomeownerNotFound)
	}

	var homeowner Homeowner
	err := s.db.WithContext(ctx).
		Where("homeowner_id = ?", trimmed).
		Take(&homeowner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Homeowner{}, fmt.Errorf("%w: %s", ErrHomeownerNotFound, trimmed)
	}
	if err != nil {
		return Homeowner{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return homeowner, nil
}

// ListHomeowners returns the directory ordered by last then first name.
func (s *Service) ListHomeowners(ctx context.Context) ([]Homeowner, error) {
	var homeowners []Homeowner
	if err := s.db.WithContext(ctx).
		Order("last_name, first_name").
		Find(&homeowners).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return homeowners, nil
}
