package main

import (
	"fmt"
	"log/slog"

	"fintracker/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// openDB connects to Postgres and, unless disabled via DB_AUTO_MIGRATE,
// brings the schema up to date.
func openDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.AutoMigrate {
		// Migrate models individually so a failure on one doesn't block
		// the others. Users first so the account/record FKs apply cleanly.
		for _, m := range []any{&models.User{}, &models.Category{}, &models.Account{}, &models.Record{}} {
			if err := db.AutoMigrate(m); err != nil {
				slog.Warn("Migration warning", "model", fmt.Sprintf("%T", m), "error", err)
			}
		}
	}

	return db, nil
}
