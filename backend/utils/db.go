package utils

import (
	"fmt"

	"cyberverse/backend/config"
	"cyberverse/backend/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the Postgres connection and migrates the schema
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := MigrateDB(db); err != nil {
		return nil, err
	}

	return db, nil
}

// MigrateDB runs the schema migration for every application model
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.LoginHistory{},
		&models.Lab{},
		&models.LabStep{},
		&models.LabProgress{},
		&models.LabStepProgress{},
		&models.UserProgressSummary{},
		&models.Achievement{},
		&models.PhishingScenario{},
		&models.PhishingAttempt{},
		&models.UserPhishingResult{},
		&models.Resource{},
		&models.ResourceComment{},
		&models.ResourceVote{},
	)
}
