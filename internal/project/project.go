// Package project provides project CRUD and the non-empty deletion guard.
package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/models"
	"gorm.io/gorm"
)

// MaxNameLength bounds project names.
const MaxNameLength = 255

// Create creates a project.
func Create(db *gorm.DB, name string) (*models.Project, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	p := models.Project{Name: name}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("project: create: %w", err)
	}
	return &p, nil
}

// Get retrieves a project by ID.
func Get(db *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("project not found: %d", id)
		}
		return nil, fmt.Errorf("project: get %d: %w", id, err)
	}
	return &p, nil
}

// List returns all projects ordered by name.
func List(db *gorm.DB) ([]models.Project, error) {
	projects := []models.Project{}
	if err := db.Order("name ASC, id ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	return projects, nil
}

// Rename changes a project's name.
func Rename(db *gorm.DB, id uint, name string) (*models.Project, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(p).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("project: rename %d: %w", id, err)
	}
	p.Name = name
	return p, nil
}

// Delete removes an empty project and its folders. A project that still owns
// test cases or test runs is a conflict; the caller must delete or move them
// first.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}

		var cases int64
		if err := tx.Model(&models.TestCase{}).Where("project_id = ?", id).Count(&cases).Error; err != nil {
			return fmt.Errorf("project: count test cases of %d: %w", id, err)
		}
		if cases > 0 {
			return apperr.Conflictf("cannot delete project: it still contains %d test case(s); delete or move them first", cases)
		}
		var runs int64
		if err := tx.Model(&models.TestRun{}).Where("project_id = ?", id).Count(&runs).Error; err != nil {
			return fmt.Errorf("project: count test runs of %d: %w", id, err)
		}
		if runs > 0 {
			return apperr.Conflictf("cannot delete project: it still contains %d test run(s); delete them first", runs)
		}

		if err := tx.Where("project_id = ?", id).Delete(&models.TestCaseFolder{}).Error; err != nil {
			return fmt.Errorf("project: delete test case folders of %d: %w", id, err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.TestRunFolder{}).Error; err != nil {
			return fmt.Errorf("project: delete test run folders of %d: %w", id, err)
		}
		if err := tx.Delete(&models.Project{}, id).Error; err != nil {
			return fmt.Errorf("project: delete %d: %w", id, err)
		}
		return nil
	})
}

// Exists reports whether a project with id exists.
func Exists(db *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := db.Model(&models.Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("project: check %d: %w", id, err)
	}
	return count > 0, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validationf("project name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", apperr.Validationf("project name must be at most %d characters", MaxNameLength)
	}
	return name, nil
}
