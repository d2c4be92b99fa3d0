package db

import (
	"fmt"

	"github.com/zulandar/testdeck/internal/config"
	"github.com/zulandar/testdeck/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model in dependency order for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.TestCaseFolder{},
		&models.TestRunFolder{},
		&models.TestCase{},
		&models.TestCaseStep{},
		&models.TestRun{},
		&models.TestRunStep{},
		&models.JiraLink{},
		&models.JiraRunLink{},
		&models.Setting{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedSettings writes the Jira base URL from configuration if no value has
// been stored yet. Values edited through the API are never overwritten.
func SeedSettings(db *gorm.DB, cfg *config.Config) error {
	s := models.Setting{
		Key:   models.SettingJiraBaseURL,
		Value: cfg.Jira.BaseURL,
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&s)
	if result.Error != nil {
		return fmt.Errorf("db: seed setting %q: %w", s.Key, result.Error)
	}
	return nil
}
