package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"emagsync/internal/models"
)

type Database struct {
	DB *gorm.DB
}

func New(databaseURL string) (*Database, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	if strings.HasPrefix(databaseURL, "sqlite://") {
		// SQLite for development and tests
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), cfg)
	} else {
		// PostgreSQL for production
		db, err = gorm.Open(postgres.Open(databaseURL), cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.FitnessCategory{},
		&models.CategoryMapping{},
		&models.SyncRun{},
		&models.Schedule{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
