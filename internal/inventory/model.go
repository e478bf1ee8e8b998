package inventory

import (
	"errors"
	"fmt"
	"time"
)

// LotStatus enumerates the occupancy states a lot can be in.
type LotStatus string

const (
	// LotStatusVacant marks a lot with no current owner.
	LotStatusVacant LotStatus = "Vacant"
	// LotStatusOccupied marks a lot bound to a homeowner.
	LotStatusOccupied LotStatus = "Occupied"
	// LotStatusForSale marks a lot listed for sale.
	LotStatusForSale LotStatus = "ForSale"
	// LotStatusReserved marks a lot held for a prospective buyer.
	LotStatusReserved LotStatus = "Reserved"
)

// ErrInvalidLotStatus indicates a status string outside the known set.
var ErrInvalidLotStatus = errors.New("inventory: invalid lot status")

// ParseLotStatus validates raw input against the known status set.
func ParseLotStatus(rawInput string) (LotStatus, error) {
	switch LotStatus(rawInput) {
	case LotStatusVacant, LotStatusOccupied, LotStatusForSale, LotStatusReserved:
		return LotStatus(rawInput), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLotStatus, rawInput)
}

// Block is a configured subdivision partition with a declared lot capacity.
type Block struct {
	BlockID     string    `gorm:"column:block_id;primaryKey;size:190;not null" json:"block_id"`
	BlockNumber int       `gorm:"column:block_number;not null;uniqueIndex:idx_blocks_number" json:"block_number"`
	MaxLots     int       `gorm:"column:max_lots;not null" json:"max_lots"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Block) TableName() string {
	return "blocks"
}

// Lot is an individually tracked slot within a block. OwnerID and OwnerName
// are empty unless the lot is occupied; the lot row is the source of truth
// for occupancy, assignment records are back-references.
type Lot struct {
	LotID       string    `gorm:"column:lot_id;primaryKey;size:190;not null" json:"lot_id"`
	BlockID     string    `gorm:"column:block_id;size:190;not null;uniqueIndex:idx_lots_block_number,priority:1" json:"block_id"`
	LotNumber   int       `gorm:"column:lot_number;not null;uniqueIndex:idx_lots_block_number,priority:2" json:"lot_number"`
	HouseNumber int       `gorm:"column:house_number;not null" json:"house_number"`
	Status      LotStatus `gorm:"column:status;size:32;not null" json:"status"`
	OwnerID     string    `gorm:"column:owner_id;size:190;not null;default:'';index" json:"owner_id,omitempty"`
	OwnerName   string    `gorm:"column:owner_name;size:320;not null;default:''" json:"owner_name,omitempty"`
	HouseModel  string    `gorm:"column:house_model;size:190;not null" json:"house_model"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Lot) TableName() string {
	return "lots"
}

// HouseNumberFor derives the display house number frozen onto a lot at
// creation time. It is never recomputed afterward.
func HouseNumberFor(blockNumber, lotNumber int) int {
	return blockNumber*100 + lotNumber
}

// BlockLots pairs a block with its lots for the grouped read accessor.
type BlockLots struct {
	Block Block `json:"block"`
	Lots  []Lot `json:"lots"`
}

// Occupancy summarizes per-status lot counts for one block.
type Occupancy struct {
	Total    int `json:"total"`
	Vacant   int `json:"vacant"`
	Occupied int `json:"occupied"`
	ForSale  int `json:"for_sale"`
	Reserved int `json:"reserved"`
}
