package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verdemont/estates/backend/internal/directory"
	"github.com/verdemont/estates/backend/internal/inventory"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrLotNotFound indicates the referenced lot does not exist.
	ErrLotNotFound = errors.New("assignment: lot not found")
	// ErrLotNotOccupied indicates an unassign on a lot with no bound owner.
	ErrLotNotOccupied = errors.New("assignment: lot is not occupied")
	// ErrAlreadyAssigned indicates the homeowner already holds this lot.
	ErrAlreadyAssigned = errors.New("assignment: lot already assigned to this homeowner")
	// ErrStoreUnavailable wraps transport failures from the backing store.
	ErrStoreUnavailable = errors.New("assignment: store unavailable")

	errMissingDatabase   = errors.New("assignment: database handle is required")
	errMissingIDProvider = errors.New("assignment: id provider is required")
	errMissingDirectory  = errors.New("assignment: homeowner directory is required")

	noOpLogger = zap.NewNop()
)

// HomeownerDirectory resolves assignment targets; lookups failing with
// directory.ErrHomeownerNotFound abort the assignment before any write.
type HomeownerDirectory interface {
	GetHomeowner(ctx context.Context, homeownerID string) (directory.Homeowner, error)
}

// IDProvider issues store-assigned document identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the assignment coordinator.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Directory  HomeownerDirectory
	Logger     *zap.Logger
}

// Service coordinates the dual write that binds a lot to a homeowner: the
// lot row flips to Occupied and a back-reference assignment record is filed
// under the homeowner. Both writes run in one store transaction.
type Service struct {
	db        *gorm.DB
	clock     func() time.Time
	ids       IDProvider
	directory HomeownerDirectory
	logger    *zap.Logger
}

// NewService constructs the assignment coordinator.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Directory == nil {
		return nil, errMissingDirectory
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:        cfg.Database,
		clock:     clock,
		ids:       cfg.IDProvider,
		directory: cfg.Directory,
		logger:    logger,
	}, nil
}

// Request describes one Assign call. With HomeownerID set the lot is bound
// to that homeowner; without it the call degrades to a pure status and
// house-model edit with no owner change.
type Request struct {
	HomeownerID string
	Status      inventory.LotStatus
	HouseModel  string
}

// Assign binds a lot to a homeowner, or applies a plain status/model edit
// when no homeowner is given. All validation happens before any write.
func (s *Service) Assign(ctx context.Context, lotID string, req Request) (inventory.Lot, error) {
	homeownerID := strings.TrimSpace(req.HomeownerID)
	if homeownerID == "" {
		return s.updateLotOnly(ctx, lotID, req)
	}

	homeowner, err := s.directory.GetHomeowner(ctx, homeownerID)
	if err != nil {
		if errors.Is(err, directory.ErrHomeownerNotFound) {
			return inventory.Lot{}, err
		}
		return inventory.Lot{}, s.storeError("lookup homeowner", err)
	}

	var updated inventory.Lot
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lot, err := loadLot(tx, lotID)
		if err != nil {
			return err
		}

		var block inventory.Block
		if err := tx.Where("block_id = ?", lot.BlockID).Take(&block).Error; err != nil {
			return err
		}

		var duplicates int64
		if err := tx.Model(&Assignment{}).
			Where("homeowner_id = ? AND lot_id = ?", homeowner.HomeownerID, lot.LotID).
			Count(&duplicates).Error; err != nil {
			return err
		}
		if duplicates > 0 {
			return fmt.Errorf("%w: homeowner %s, lot %d of block %d", ErrAlreadyAssigned, homeowner.HomeownerID, lot.LotNumber, block.BlockNumber)
		}

		houseModel := strings.TrimSpace(req.HouseModel)
		if houseModel == "" {
			houseModel = lot.HouseModel
		}

		assignmentID, err := s.ids.NewID()
		if err != nil {
			return err
		}
		record := Assignment{
			AssignmentID: assignmentID,
			HomeownerID:  homeowner.HomeownerID,
			LotID:        lot.LotID,
			BlockID:      lot.BlockID,
			BlockNumber:  block.BlockNumber,
			LotNumber:    lot.LotNumber,
			HouseNumber:  lot.HouseNumber,
			HouseModel:   houseModel,
			AssignedAt:   s.clock().UTC(),
			Status:       StatusActive,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":      inventory.LotStatusOccupied,
			"owner_id":    homeowner.HomeownerID,
			"owner_name":  homeowner.DisplayName(),
			"house_model": houseModel,
		}
		if err := tx.Model(&inventory.Lot{}).
			Where("lot_id = ?", lot.LotID).
			Updates(updates).Error; err != nil {
			return err
		}

		lot.Status = inventory.LotStatusOccupied
		lot.OwnerID = homeowner.HomeownerID
		lot.OwnerName = homeowner.DisplayName()
		lot.HouseModel = houseModel
		updated = lot
		return nil
	})
	if txErr != nil {
		return inventory.Lot{}, s.wrapStoreError("assign lot", txErr)
	}

	s.logger.Info("lot assigned",
		zap.String("lot_id", updated.LotID),
		zap.String("homeowner_id", updated.OwnerID),
		zap.Int("house_number", updated.HouseNumber))
	return updated, nil
}

// updateLotOnly applies a status and/or house-model edit with no owner
// change. The lot row may drift from its assignment records this way;
// Reconcile repairs that.
func (s *Service) updateLotOnly(ctx context.Context, lotID string, req Request) (inventory.Lot, error) {
	updates := map[string]interface{}{}
	if req.Status != "" {
		status, err := inventory.ParseLotStatus(string(req.Status))
		if err != nil {
			return inventory.Lot{}, err
		}
		updates["status"] = status
	}
	if model := strings.TrimSpace(req.HouseModel); model != "" {
		updates["house_model"] = model
	}

	var updated inventory.Lot
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lot, err := loadLot(tx, lotID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&inventory.Lot{}).
				Where("lot_id = ?", lot.LotID).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		if status, ok := updates["status"].(inventory.LotStatus); ok {
			lot.Status = status
		}
		if model, ok := updates["house_model"].(string); ok {
			lot.HouseModel = model
		}
		updated = lot
		return nil
	})
	if txErr != nil {
		return inventory.Lot{}, s.wrapStoreError("update lot", txErr)
	}
	return updated, nil
}

// Unassign reverts an occupied lot to Vacant and deletes the assignment
// records filed under its former owner. A missing record is self-healing:
// the lot is still reverted and the gap is logged, not surfaced as an error.
func (s *Service) Unassign(ctx context.Context, lotID string) (inventory.Lot, error) {
	var updated inventory.Lot
	var missingRecord bool
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lot, err := loadLot(tx, lotID)
		if err != nil {
			return err
		}
		if lot.Status != inventory.LotStatusOccupied || lot.OwnerID == "" {
			return fmt.Errorf("%w: lot %s", ErrLotNotOccupied, lot.LotID)
		}

		deletion := tx.Where("homeowner_id = ? AND lot_id = ?", lot.OwnerID, lot.LotID).Delete(&Assignment{})
		if deletion.Error != nil {
			return deletion.Error
		}
		missingRecord = deletion.RowsAffected == 0

		updates := map[string]interface{}{
			"status":     inventory.LotStatusVacant,
			"owner_id":   "",
			"owner_name": "",
		}
		if err := tx.Model(&inventory.Lot{}).
			Where("lot_id = ?", lot.LotID).
			Updates(updates).Error; err != nil {
			return err
		}

		lot.Status = inventory.LotStatusVacant
		lot.OwnerID = ""
		lot.OwnerName = ""
		updated = lot
		return nil
	})
	if txErr != nil {
		return inventory.Lot{}, s.wrapStoreError("unassign lot", txErr)
	}

	if missingRecord {
		s.logger.Warn("no assignment record found for occupied lot, reverted anyway",
			zap.String("lot_id", updated.LotID))
	} else {
		s.logger.Info("lot unassigned", zap.String("lot_id", updated.LotID))
	}
	return updated, nil
}

// ReconcileReport summarizes one reconciliation pass over the two data
// locations.
type ReconcileReport struct {
	OrphanedRecordsRemoved int `json:"orphaned_records_removed"`
	OrphanedLotsReverted   int `json:"orphaned_lots_reverted"`
}

// Reconcile repairs drift between lot rows and assignment records: records
// whose lot disagrees with them are removed, and Occupied lots with no
// backing record are reverted to Vacant. The lot row wins every conflict
// except a missing owner, where nothing is authoritative and the lot is
// cleared.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lots []inventory.Lot
		if err := tx.Find(&lots).Error; err != nil {
			return err
		}
		lotsByID := make(map[string]inventory.Lot, len(lots))
		for _, lot := range lots {
			lotsByID[lot.LotID] = lot
		}

		var records []Assignment
		if err := tx.Find(&records).Error; err != nil {
			return err
		}

		backed := make(map[string]struct{}, len(records))
		for _, record := range records {
			lot, exists := lotsByID[record.LotID]
			if exists && lot.Status == inventory.LotStatusOccupied && lot.OwnerID == record.HomeownerID {
				backed[record.LotID] = struct{}{}
				continue
			}
			if err := tx.Where("assignment_id = ?", record.AssignmentID).Delete(&Assignment{}).Error; err != nil {
				return err
			}
			report.OrphanedRecordsRemoved++
			s.logger.Warn("removed orphaned assignment record",
				zap.String("assignment_id", record.AssignmentID),
				zap.String("lot_id", record.LotID),
				zap.String("homeowner_id", record.HomeownerID))
		}

		for _, lot := range lots {
			if lot.Status != inventory.LotStatusOccupied {
				continue
			}
			if _, ok := backed[lot.LotID]; ok {
				continue
			}
			updates := map[string]interface{}{
				"status":     inventory.LotStatusVacant,
				"owner_id":   "",
				"owner_name": "",
			}
			if err := tx.Model(&inventory.Lot{}).
				Where("lot_id = ?", lot.LotID).
				Updates(updates).Error; err != nil {
				return err
			}
			report.OrphanedLotsReverted++
			s.logger.Warn("reverted occupied lot with no assignment record",
				zap.String("lot_id", lot.LotID),
				zap.String("former_owner_id", lot.OwnerID))
		}
		return nil
	})
	if txErr != nil {
		return ReconcileReport{}, s.storeError("reconcile", txErr)
	}
	return report, nil
}

// ListForHomeowner returns the assignment records filed under one homeowner.
func (s *Service) ListForHomeowner(ctx context.Context, homeownerID string) ([]Assignment, error) {
	var records []Assignment
	if err := s.db.WithContext(ctx).
		Where("homeowner_id = ?", strings.TrimSpace(homeownerID)).
		Order("assigned_at").
		Find(&records).Error; err != nil {
		return nil, s.storeError("list assignments", err)
	}
	return records, nil
}

func loadLot(tx *gorm.DB, lotID string) (inventory.Lot, error) {
	trimmed := strings.TrimSpace(lotID)
	if trimmed == "" {
		return inventory.Lot{}, fmt.Errorf("%w: empty id", ErrLotNotFound)
	}

	var lot inventory.Lot
	err := tx.Where("lot_id = ?", trimmed).Take(&lot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inventory.Lot{}, fmt.Errorf("%w: %s", ErrLotNotFound, trimmed)
	}
	if err != nil {
		return inventory.Lot{}, err
	}
	return lot, nil
}

func (s *Service) storeError(operation string, err error) error {
	s.logger.Error("assignment store error", zap.String("operation", operation), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, operation, err)
}

func (s *Service) wrapStoreError(operation string, err error) error {
	switch {
	case errors.Is(err, ErrLotNotFound),
		errors.Is(err, ErrLotNotOccupied),
		errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, inventory.ErrInvalidLotStatus):
		return err
	}
	return s.storeError(operation, err)
}
