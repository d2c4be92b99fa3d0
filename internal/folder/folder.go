// Package folder manages the two independent folder kinds: folders of test
// cases and folders of test runs. Both have the same shape and rules.
package folder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/models"
	"gorm.io/gorm"
)

// MaxNameLength bounds folder names.
const MaxNameLength = 255

// Kind selects which folder table an operation works on.
type Kind int

const (
	TestCases Kind = iota
	TestRuns
)

func (k Kind) String() string {
	if k == TestRuns {
		return "test run folder"
	}
	return "test case folder"
}

func (k Kind) table() string {
	if k == TestRuns {
		return "test_run_folders"
	}
	return "test_case_folders"
}

// childModel is the model whose folder_id points into this kind's table.
func (k Kind) childModel() interface{} {
	if k == TestRuns {
		return &models.TestRun{}
	}
	return &models.TestCase{}
}

// Folder is the common shape of both folder kinds.
type Folder struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ProjectID uint   `json:"projectId"`
}

// Create creates a folder in a project.
func Create(db *gorm.DB, kind Kind, projectID uint, name string) (*Folder, error) {
	name, err := validateName(kind, name)
	if err != nil {
		return nil, err
	}
	if projectID == 0 {
		return nil, apperr.Validationf("projectId is required")
	}
	var count int64
	if err := db.Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("folder: check project %d: %w", projectID, err)
	}
	if count == 0 {
		return nil, apperr.Validationf("project %d does not exist", projectID)
	}

	f := Folder{Name: name, ProjectID: projectID}
	if err := db.Table(kind.table()).Create(&f).Error; err != nil {
		return nil, fmt.Errorf("folder: create %s: %w", kind, err)
	}
	return &f, nil
}

// Get retrieves a folder by ID.
func Get(db *gorm.DB, kind Kind, id uint) (*Folder, error) {
	var f Folder
	if err := db.Table(kind.table()).Where("id = ?", id).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("%s not found: %d", kind, id)
		}
		return nil, fmt.Errorf("folder: get %s %d: %w", kind, id, err)
	}
	return &f, nil
}

// List returns the folders of a project ordered by name.
func List(db *gorm.DB, kind Kind, projectID uint) ([]Folder, error) {
	folders := []Folder{}
	if err := db.Table(kind.table()).Where("project_id = ?", projectID).
		Order("name ASC, id ASC").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("folder: list %s: %w", kind, err)
	}
	return folders, nil
}

// Rename changes a folder's name.
func Rename(db *gorm.DB, kind Kind, id uint, name string) (*Folder, error) {
	name, err := validateName(kind, name)
	if err != nil {
		return nil, err
	}
	f, err := Get(db, kind, id)
	if err != nil {
		return nil, err
	}
	if err := db.Table(kind.table()).Where("id = ?", id).Update("name", name).Error; err != nil {
		return nil, fmt.Errorf("folder: rename %s %d: %w", kind, id, err)
	}
	f.Name = name
	return f, nil
}

// Delete removes a folder. Its test cases or runs move to "no folder".
func Delete(db *gorm.DB, kind Kind, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, kind, id); err != nil {
			return err
		}
		if err := tx.Model(kind.childModel()).Where("folder_id = ?", id).
			UpdateColumn("folder_id", nil).Error; err != nil {
			return fmt.Errorf("folder: reparent children of %s %d: %w", kind, id, err)
		}
		if err := tx.Table(kind.table()).Where("id = ?", id).Delete(&Folder{}).Error; err != nil {
			return fmt.Errorf("folder: delete %s %d: %w", kind, id, err)
		}
		return nil
	})
}

// CheckInProject validates that folderID, when set, names a folder of this
// kind inside projectID.
func CheckInProject(db *gorm.DB, kind Kind, folderID *uint, projectID uint) error {
	if folderID == nil {
		return nil
	}
	f, err := Get(db, kind, *folderID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validationf("%s %d does not exist", kind, *folderID)
		}
		return err
	}
	if f.ProjectID != projectID {
		return apperr.Validationf("%s %d belongs to another project", kind, *folderID)
	}
	return nil
}

func validateName(kind Kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validationf("%s name is required", kind)
	}
	if len([]rune(name)) > MaxNameLength {
		return "", apperr.Validationf("%s name must be at most %d characters", kind, MaxNameLength)
	}
	return name, nil
}
