package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/verdemont/estates/backend/internal/assignment"
	"github.com/verdemont/estates/backend/internal/catalog"
	"github.com/verdemont/estates/backend/internal/directory"
	"github.com/verdemont/estates/backend/internal/inventory"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&inventory.Block{},
		&inventory.Lot{},
		&assignment.Assignment{},
		&directory.Homeowner{},
		&catalog.HouseModel{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
