package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateBlock indicates the block number is already configured.
	ErrDuplicateBlock = errors.New("inventory: block number already configured")
	// ErrInvalidBlockNumber indicates a non-positive block number.
	ErrInvalidBlockNumber = errors.New("inventory: block number must be positive")
	// ErrInvalidCapacity indicates a non-positive capacity value.
	ErrInvalidCapacity = errors.New("inventory: capacity must be positive")
	// ErrInvalidLotCount indicates a non-positive requested lot count.
	ErrInvalidLotCount = errors.New("inventory: requested lot count must be positive")
	// ErrBlockNotEmpty indicates the block still owns lots and cannot be deleted.
	ErrBlockNotEmpty = errors.New("inventory: block still owns lots")
	// ErrBlockUnconfigured indicates the referenced block is not registered.
	ErrBlockUnconfigured = errors.New("inventory: block not configured")
	// ErrBlockAtCapacity indicates the block already holds maxLots lots.
	ErrBlockAtCapacity = errors.New("inventory: block at capacity")
	// ErrExceedsRemainingCapacity reports a batch truncated by remaining room.
	// It is carried inside BatchResult, never returned as a call failure.
	ErrExceedsRemainingCapacity = errors.New("inventory: requested count exceeds remaining capacity")
	// ErrUnknownHouseModel indicates the named design is absent from the catalog.
	ErrUnknownHouseModel = errors.New("inventory: unknown house model")
	// ErrStoreUnavailable wraps transport failures from the backing store.
	ErrStoreUnavailable = errors.New("inventory: store unavailable")

	errMissingDatabase   = errors.New("inventory: database handle is required")
	errMissingIDProvider = errors.New("inventory: id provider is required")
	errMissingCatalog    = errors.New("inventory: house model catalog is required")

	noOpLogger = zap.NewNop()
)

// IDProvider issues store-assigned document identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// HouseModelCatalog answers whether a named house design is configured.
type HouseModelCatalog interface {
	ModelExists(ctx context.Context, name string) (bool, error)
}

// ServiceConfig describes the dependencies of the inventory service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Catalog    HouseModelCatalog
	Logger     *zap.Logger
}

// Service owns the block registry and the lot inventory beneath it.
type Service struct {
	db      *gorm.DB
	clock   func() time.Time
	ids     IDProvider
	catalog HouseModelCatalog
	logger  *zap.Logger
}

// NewService constructs the inventory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Catalog == nil {
		return nil, errMissingCatalog
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
		db:      cfg.Database,
		clock:   clock,
		ids:     cfg.IDProvider,
		catalog: cfg.Catalog,
		logger:  logger,
	}, nil
}

// AddBlock registers a new block with the given number and capacity.
func (s *Service) AddBlock(ctx context.Context, blockNumber, maxLots int) (Block, error) {
	if blockNumber <= 0 {
		return Block{}, fmt.Errorf("%w: %d", ErrInvalidBlockNumber, blockNumber)
	}
	if maxLots <= 0 {
		return Block{}, fmt.Errorf("%w: %d", ErrInvalidCapacity, maxLots)
	}

	var existing int64
	if err := s.db.WithContext(ctx).
		Model(&Block{}).
		Where("block_number = ?", blockNumber).
		Count(&existing).Error; err != nil {
		return Block{}, s.storeError("count blocks", err)
	}
	if existing > 0 {
		return Block{}, fmt.Errorf("%w: block %d", ErrDuplicateBlock, blockNumber)
	}

	blockID, err := s.ids.NewID()
	if err != nil {
		return Block{}, s.storeError("generate block id", err)
	}

	block := Block{
		BlockID:     blockID,
		BlockNumber: blockNumber,
		MaxLots:     maxLots,
	}
	if err := s.db.WithContext(ctx).Create(&block).Error; err != nil {
		return Block{}, s.storeError("create block", err)
	}

	s.logger.Info("block configured",
		zap.Int("block_number", blockNumber),
		zap.Int("max_lots", maxLots))
	return block, nil
}

// SetMaxLots updates a block's capacity. A request below the current lot
// count is silently clamped to that count so the block is never configured
// under its own occupancy; the effective stored value is returned.
func (s *Service) SetMaxLots(ctx context.Context, blockID string, newMax int) (int, error) {
	if newMax <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCapacity, newMax)
	}

	effective := newMax
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := loadBlock(tx, blockID)
		if err != nil {
			return err
		}

		lotCount, err := countLots(tx, block.BlockID)
		if err != nil {
			return err
		}
		if effective < lotCount {
			effective = lotCount
		}

		return tx.Model(&Block{}).
			Where("block_id = ?", block.BlockID).
			Update("max_lots", effective).Error
	})
	if txErr != nil {
		return 0, s.wrapStoreError("set max lots", txErr)
	}

	if effective != newMax {
		s.logger.Warn("capacity request clamped to current occupancy",
			zap.String("block_id", blockID),
			zap.Int("requested", newMax),
			zap.Int("effective", effective))
	}
	return effective, nil
}

// DeleteBlock removes an empty block from the registry.
func (s *Service) DeleteBlock(ctx context.Context, blockID string) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := loadBlock(tx, blockID)
		if err != nil {
			return err
		}

		lotCount, err := countLots(tx, block.BlockID)
		if err != nil {
			return err
		}
		if lotCount > 0 {
			return fmt.Errorf("%w: block %d holds %d lots", ErrBlockNotEmpty, block.BlockNumber, lotCount)
		}

		return tx.Where("block_id = ?", block.BlockID).Delete(&Block{}).Error
	})
	if txErr != nil {
		return s.wrapStoreError("delete block", txErr)
	}

	s.logger.Info("block deleted", zap.String("block_id", blockID))
	return nil
}

// BatchResult reports the outcome of one CreateLots call. A truncated batch
// carries ErrExceedsRemainingCapacity as its Shortfall so callers can render
// "created K of N" with a specific cause instead of a generic failure.
type BatchResult struct {
	Requested int
	Lots      []Lot
	Shortfall error
}

// CreatedCount returns how many lots the batch actually created.
func (r BatchResult) CreatedCount() int {
	return len(r.Lots)
}

// Partial reports whether fewer lots were created than requested.
func (r BatchResult) Partial() bool {
	return len(r.Lots) < r.Requested
}

// CreateLots creates up to requestedCount vacant lots in the block, numbered
// by gap-filling allocation and tagged with the given house model. House
// numbers are frozen at creation as blockNumber*100 + lotNumber.
func (s *Service) CreateLots(ctx context.Context, blockID, houseModel string, requestedCount int) (BatchResult, error) {
	if requestedCount <= 0 {
		return BatchResult{}, fmt.Errorf("%w: %d", ErrInvalidLotCount, requestedCount)
	}

	model := strings.TrimSpace(houseModel)
	known, err := s.catalog.ModelExists(ctx, model)
	if err != nil {
		return BatchResult{}, s.storeError("check house model", err)
	}
	if !known {
		return BatchResult{}, fmt.Errorf("%w: %q", ErrUnknownHouseModel, model)
	}

	result := BatchResult{Requested: requestedCount}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := loadBlock(tx, blockID)
		if err != nil {
			return err
		}

		var usedNumbers []int
		if err := tx.Model(&Lot{}).
			Where("block_id = ?", block.BlockID).
			Pluck("lot_number", &usedNumbers).Error; err != nil {
			return err
		}
		if len(usedNumbers) >= block.MaxLots {
			return fmt.Errorf("%w: block %d holds %d of %d lots", ErrBlockAtCapacity, block.BlockNumber, len(usedNumbers), block.MaxLots)
		}

		used := make(map[int]struct{}, len(usedNumbers))
		for _, number := range usedNumbers {
			used[number] = struct{}{}
		}

		for _, lotNumber := range allocateBatch(used, requestedCount, block.MaxLots) {
			lotID, err := s.ids.NewID()
			if err != nil {
				return err
			}
			lot := Lot{
				LotID:       lotID,
				BlockID:     block.BlockID,
				LotNumber:   lotNumber,
				HouseNumber: HouseNumberFor(block.BlockNumber, lotNumber),
				Status:      LotStatusVacant,
				HouseModel:  model,
			}
			if err := tx.Create(&lot).Error; err != nil {
				return err
			}
			result.Lots = append(result.Lots, lot)
		}
		return nil
	})
	if txErr != nil {
		return BatchResult{}, s.wrapStoreError("create lots", txErr)
	}

	if result.Partial() {
		result.Shortfall = ErrExceedsRemainingCapacity
		s.logger.Warn("lot batch truncated by remaining capacity",
			zap.String("block_id", blockID),
			zap.Int("requested", result.Requested),
			zap.Int("created", result.CreatedCount()))
	} else {
		s.logger.Info("lots created",
			zap.String("block_id", blockID),
			zap.Int("count", result.CreatedCount()))
	}
	return result, nil
}

// GetBlock point-reads one block by id.
func (s *Service) GetBlock(ctx context.Context, blockID string) (Block, error) {
	block, err := loadBlock(s.db.WithContext(ctx), blockID)
	if err != nil {
		return Block{}, s.wrapStoreError("get block", err)
	}
	return block, nil
}

// ListBlocks returns every configured block ordered by block number.
func (s *Service) ListBlocks(ctx context.Context) ([]Block, error) {
	var blocks []Block
	if err := s.db.WithContext(ctx).Order("block_number").Find(&blocks).Error; err != nil {
		return nil, s.storeError("list blocks", err)
	}
	return blocks, nil
}

// ListLotsForBlock returns the lots of one block ordered by lot number.
func (s *Service) ListLotsForBlock(ctx context.Context, blockID string) ([]Lot, error) {
	block, err := loadBlock(s.db.WithContext(ctx), blockID)
	if err != nil {
		return nil, s.wrapStoreError("load block", err)
	}

	var lots []Lot
	if err := s.db.WithContext(ctx).
		Where("block_id = ?", block.BlockID).
		Order("lot_number").
		Find(&lots).Error; err != nil {
		return nil, s.storeError("list lots", err)
	}
	return lots, nil
}

// ListLotsGrouped returns all blocks with their lots, ordered by block and
// lot number, for the monitoring grid.
func (s *Service) ListLotsGrouped(ctx context.Context) ([]BlockLots, error) {
	blocks, err := s.ListBlocks(ctx)
	if err != nil {
		return nil, err
	}

	var lots []Lot
	if err := s.db.WithContext(ctx).
		Order("block_id, lot_number").
		Find(&lots).Error; err != nil {
		return nil, s.storeError("list lots", err)
	}

	lotsByBlock := make(map[string][]Lot, len(blocks))
	for _, lot := range lots {
		lotsByBlock[lot.BlockID] = append(lotsByBlock[lot.BlockID], lot)
	}

	grouped := make([]BlockLots, 0, len(blocks))
	for _, block := range blocks {
		grouped = append(grouped, BlockLots{Block: block, Lots: lotsByBlock[block.BlockID]})
	}
	return grouped, nil
}

// OccupancyOf tallies per-status counts over a block's lots.
func OccupancyOf(lots []Lot) Occupancy {
	summary := Occupancy{Total: len(lots)}
	for _, lot := range lots {
		switch lot.Status {
		case LotStatusVacant:
			summary.Vacant++
		case LotStatusOccupied:
			summary.Occupied++
		case LotStatusForSale:
			summary.ForSale++
		case LotStatusReserved:
			summary.Reserved++
		}
	}
	return summary
}

func loadBlock(tx *gorm.DB, blockID string) (Block, error) {
	trimmed := strings.TrimSpace(blockID)
	if trimmed == "" {
		return Block{}, fmt.Errorf("%w: empty id", ErrBlockUnconfigured)
	}

	var block Block
	err := tx.Where("block_id = ?", trimmed).Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Block{}, fmt.Errorf("%w: %s", ErrBlockUnconfigured, trimmed)
	}
	if err != nil {
		return Block{}, err
	}
	return block, nil
}

func countLots(tx *gorm.DB, blockID string) (int, error) {
	var count int64
	if err := tx.Model(&Lot{}).Where("block_id = ?", blockID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// storeError wraps a raw store failure; wrapStoreError preserves domain
// sentinels that surfaced from inside a transaction.
func (s *Service) storeError(operation string, err error) error {
	s.logger.Error("inventory store error", zap.String("operation", operation), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, operation, err)
}

func (s *Service) wrapStoreError(operation string, err error) error {
	switch {
	case errors.Is(err, ErrBlockUnconfigured),
		errors.Is(err, ErrBlockNotEmpty),
		errors.Is(err, ErrBlockAtCapacity):
		return err
	}
	return s.storeError(operation, err)
}
