// Package db wires the GORM/Postgres connection used as the single
// source of truth for Video records.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vaultstream/vaultstream/internal/config"
	"github.com/vaultstream/vaultstream/internal/models"
)

// New opens a GORM connection to Postgres and migrates the Video schema.
func New(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}

	gormCfg := &gorm.Config{}
	if cfg.Production {
		gormCfg.Logger = logger.Default.LogMode(logger.Error)
	}

	database, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := database.AutoMigrate(&models.Video{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return database, nil
}
