package assignment

import "time"

// StatusActive is the only assignment status currently written; the field
// exists so historical states can be added without a schema change.
const StatusActive = "Active"

// Assignment is the back-reference record filed under a homeowner when a lot
// is bound to them. The lot row stays authoritative for current occupancy;
// this record exists so the homeowner's subtree can list their holdings.
type Assignment struct {
	AssignmentID string    `gorm:"column:assignment_id;primaryKey;size:190;not null" json:"assignment_id"`
	HomeownerID  string    `gorm:"column:homeowner_id;size:190;not null;uniqueIndex:idx_assignments_owner_lot,priority:1" json:"homeowner_id"`
	LotID        string    `gorm:"column:lot_id;size:190;not null;uniqueIndex:idx_assignments_owner_lot,priority:2" json:"lot_id"`
	BlockID      string    `gorm:"column:block_id;size:190;not null" json:"block_id"`
	BlockNumber  int       `gorm:"column:block_number;not null" json:"block_number"`
	LotNumber    int       `gorm:"column:lot_number;not null" json:"lot_number"`
	HouseNumber  int       `gorm:"column:house_number;not null" json:"house_number"`
	HouseModel   string    `gorm:"column:house_model;size:190;not null" json:"house_model"`
	AssignedAt   time.Time `gorm:"column:assigned_at;not null" json:"assigned_at"`
	Status       string    `gorm:"column:status;size:32;not null;default:'Active'" json:"status"`
}

// TableName provides the explicit table binding for GORM.
func (Assignment) TableName() string {
	return "lot_assignments"
}
