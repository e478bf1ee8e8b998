package database

import (
	"errors"
	"time"

	"github.com/verdemont/estates/backend/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationSeedHouseModelCatalog = "2026-08-12_seed_house_model_catalog"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedHouseModelCatalog, apply: seedHouseModelCatalog},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// seedHouseModelCatalog populates the read-only house design catalog. Lot
// creation is blocked while the catalog is empty, so a fresh database gets
// the subdivision's standard designs up front.
func seedHouseModelCatalog(db *gorm.DB) error {
	var existing int64
	if err := db.Model(&catalog.HouseModel{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	designs := []catalog.HouseModel{
		{Name: "Kate", Bedrooms: 2, Bathrooms: 1, FloorAreaM2: 54},
		{Name: "Marguerite", Bedrooms: 3, Bathrooms: 2, FloorAreaM2: 78},
		{Name: "Olivia", Bedrooms: 4, Bathrooms: 3, FloorAreaM2: 120},
		{Name: "Beatrice", Bedrooms: 3, Bathrooms: 2, FloorAreaM2: 92},
	}
	return db.Create(&designs).Error
}
