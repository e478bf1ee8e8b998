package catalog

import "time"

// HouseModel is a named house design administrators tag onto lots. The
// catalog is read-only at runtime; entries are seeded by migration.
type HouseModel struct {
	Name        string    `gorm:"column:name;primaryKey;size:190;not null" json:"name"`
	Bedrooms    int       `gorm:"column:bedrooms;not null" json:"bedrooms"`
	Bathrooms   int       `gorm:"column:bathrooms;not null" json:"bathrooms"`
	FloorAreaM2 float64   `gorm:"column:floor_area_m2;not null" json:"floor_area_m2"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (HouseModel) TableName() string {
	return "house_models"
}
