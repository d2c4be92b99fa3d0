// Package testcase provides test case lifecycle operations. Steps are always
// written as a whole: every save deletes the case's step rows and inserts the
// supplied list, numbering positions from 1.
package testcase

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/folder"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/project"
	"gorm.io/gorm"
)

// MaxNameLength bounds test case names.
const MaxNameLength = 255

// StepInput is one step as supplied by a caller. Attachments must already be
// uploaded; they are stored as given.
type StepInput struct {
	StepDescription string             `json:"stepDescription"`
	ExpectedResults string             `json:"expectedResults"`
	Attachments     models.Attachments `json:"attachments"`
}

// SaveOpts holds the full state of a test case for create and update.
type SaveOpts struct {
	Name      string      `json:"name"`
	ProjectID uint        `json:"projectId"`
	FolderID  *uint       `json:"folderId"`
	Steps     []StepInput `json:"steps"`
}

// ListFilters holds optional filters for listing test cases.
type ListFilters struct {
	ProjectID uint
	FolderID  *uint
}

// FileRemover deletes stored attachment files.
type FileRemover interface {
	Delete(id string) error
}

// Create creates a test case with its steps.
func Create(db *gorm.DB, opts SaveOpts) (*models.TestCase, error) {
	var id uint
	err := db.Transaction(func(tx *gorm.DB) error {
		name, err := validate(tx, &opts)
		if err != nil {
			return err
		}
		tc := models.TestCase{
			Name:      name,
			ProjectID: opts.ProjectID,
			FolderID:  opts.FolderID,
		}
		if err := tx.Omit("Steps").Create(&tc).Error; err != nil {
			return fmt.Errorf("testcase: create: %w", err)
		}
		id = tc.ID
		return insertSteps(tx, tc.ID, opts.Steps)
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// Get retrieves a test case by ID with its steps in position order.
func Get(db *gorm.DB, id uint) (*models.TestCase, error) {
	var tc models.TestCase
	err := db.Preload("Steps", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	}).Where("id = ?", id).First(&tc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("test case not found: %d", id)
		}
		return nil, fmt.Errorf("testcase: get %d: %w", id, err)
	}
	if tc.Steps == nil {
		tc.Steps = []models.TestCaseStep{}
	}
	return &tc, nil
}

// List returns test cases matching filters, ordered by name.
func List(db *gorm.DB, filters ListFilters) ([]models.TestCase, error) {
	q := db.Model(&models.TestCase{}).Preload("Steps", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	})
	if filters.ProjectID != 0 {
		q = q.Where("project_id = ?", filters.ProjectID)
	}
	if filters.FolderID != nil {
		q = q.Where("folder_id = ?", *filters.FolderID)
	}

	cases := []models.TestCase{}
	if err := q.Order("name ASC, id ASC").Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("testcase: list: %w", err)
	}
	for i := range cases {
		if cases[i].Steps == nil {
			cases[i].Steps = []models.TestCaseStep{}
		}
	}
	return cases, nil
}

// Update replaces a test case's fields and its entire step list.
func Update(db *gorm.DB, id uint, opts SaveOpts) (*models.TestCase, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		name, err := validate(tx, &opts)
		if err != nil {
			return err
		}
		if err := exists(tx, id); err != nil {
			return err
		}

		if err := tx.Model(&models.TestCase{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":       name,
			"project_id": opts.ProjectID,
			"folder_id":  opts.FolderID,
		}).Error; err != nil {
			return fmt.Errorf("testcase: update %d: %w", id, err)
		}

		if err := tx.Where("test_case_id = ?", id).Delete(&models.TestCaseStep{}).Error; err != nil {
			return fmt.Errorf("testcase: clear steps of %d: %w", id, err)
		}
		return insertSteps(tx, id, opts.Steps)
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// SetFolder moves a test case into folderID, or out of any folder when nil.
func SetFolder(db *gorm.DB, id uint, folderID *uint) (*models.TestCase, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var tc models.TestCase
		if err := tx.Where("id = ?", id).First(&tc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("test case not found: %d", id)
			}
			return fmt.Errorf("testcase: get %d: %w", id, err)
		}
		if err := folder.CheckInProject(tx, folder.TestCases, folderID, tc.ProjectID); err != nil {
			return err
		}
		if err := tx.Model(&tc).Update("folder_id", folderID).Error; err != nil {
			return fmt.Errorf("testcase: set folder of %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// Delete removes a test case and its steps. While test runs still reference
// the case the delete is a conflict; with force the runs are detached (their
// frozen source name stays) and the delete proceeds. Attachment files of the
// deleted steps that no other step references are removed best-effort when
// files is non-nil.
func Delete(db *gorm.DB, files FileRemover, id uint, force bool) error {
	var attachments []models.Attachment
	err := db.Transaction(func(tx *gorm.DB) error {
		tc, err := Get(tx, id)
		if err != nil {
			return err
		}

		var runs int64
		if err := tx.Model(&models.TestRun{}).Where("source_test_case_id = ?", id).Count(&runs).Error; err != nil {
			return fmt.Errorf("testcase: count runs of %d: %w", id, err)
		}
		if runs > 0 {
			if !force {
				return apperr.Conflictf("cannot delete test case: %d test run(s) were created from it", runs)
			}
			if err := tx.Model(&models.TestRun{}).Where("source_test_case_id = ?", id).
				UpdateColumn("source_test_case_id", nil).Error; err != nil {
				return fmt.Errorf("testcase: detach runs of %d: %w", id, err)
			}
		}

		if err := tx.Where("test_case_id = ?", id).Delete(&models.JiraLink{}).Error; err != nil {
			return fmt.Errorf("testcase: delete jira links of %d: %w", id, err)
		}
		if err := tx.Where("test_case_id = ?", id).Delete(&models.TestCaseStep{}).Error; err != nil {
			return fmt.Errorf("testcase: delete steps of %d: %w", id, err)
		}
		if err := tx.Delete(&models.TestCase{}, id).Error; err != nil {
			return fmt.Errorf("testcase: delete %d: %w", id, err)
		}

		var candidates []models.Attachment
		for _, s := range tc.Steps {
			candidates = append(candidates, s.Attachments...)
		}
		// Ids are stored as supplied, so another case or run may share a file.
		attachments, err = models.Unreferenced(tx, candidates)
		if err != nil {
			return fmt.Errorf("testcase: check attachment references of %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	removeFiles(files, attachments)
	return nil
}

// removeFiles deletes attachment files, logging failures. A file that is
// already gone is not a failure.
func removeFiles(files FileRemover, attachments []models.Attachment) {
	if files == nil {
		return
	}
	for _, a := range attachments {
		if err := files.Delete(a.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			log.Printf("testcase: delete attachment %s: %v", a.ID, err)
		}
	}
}

// validate checks name, project and folder, returning the trimmed name.
func validate(tx *gorm.DB, opts *SaveOpts) (string, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return "", apperr.Validationf("test case name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return "", apperr.Validationf("test case name must be at most %d characters", MaxNameLength)
	}
	if opts.ProjectID == 0 {
		return "", apperr.Validationf("projectId is required")
	}
	ok, err := project.Exists(tx, opts.ProjectID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.Validationf("project %d does not exist", opts.ProjectID)
	}
	if err := folder.CheckInProject(tx, folder.TestCases, opts.FolderID, opts.ProjectID); err != nil {
		return "", err
	}
	return name, nil
}

func exists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.TestCase{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("testcase: check %d: %w", id, err)
	}
	if count == 0 {
		return apperr.NotFoundf("test case not found: %d", id)
	}
	return nil
}

// insertSteps writes steps in order with position = index+1.
func insertSteps(tx *gorm.DB, caseID uint, steps []StepInput) error {
	if len(steps) == 0 {
		return nil
	}
	rows := make([]models.TestCaseStep, len(steps))
	for i, s := range steps {
		rows[i] = models.TestCaseStep{
			TestCaseID:      caseID,
			Position:        i + 1,
			StepDescription: s.StepDescription,
			ExpectedResults: s.ExpectedResults,
			Attachments:     models.NonNil(s.Attachments),
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("testcase: insert steps of %d: %w", caseID, err)
	}
	return nil
}
