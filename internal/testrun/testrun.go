// Package testrun provides the test run lifecycle: snapshot creation from a
// test case, status and step result updates gated by the run lock, and
// deletion.
//
// A run is locked while its status is passed or failed. Whether step results
// may be written is decided from the status the run had before the update,
// so the request that moves a run into a locked status can still carry the
// last step edits.
package testrun

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/folder"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/testcase"
	"gorm.io/gorm"
)

// MaxNameLength bounds test run names.
const MaxNameLength = 50

// Statuses lists every valid run status in display order.
var Statuses = []string{
	models.RunStatusReadyToTest,
	models.RunStatusInProgress,
	models.RunStatusPassed,
	models.RunStatusFailed,
	models.RunStatusNA,
}

// StepStatuses lists every valid step status in display order.
var StepStatuses = []string{
	models.StepStatusNotRun,
	models.StepStatusPassed,
	models.StepStatusFailed,
	models.StepStatusNA,
	models.StepStatusPassedWithImprovements,
}

// now is the clock used for updatedAt; tests replace it.
var now = time.Now

// Files is the part of the attachment store a run needs.
type Files interface {
	Copy(a models.Attachment) (models.Attachment, error)
	Delete(id string) error
}

// CreateOpts holds parameters for creating a run from a test case.
type CreateOpts struct {
	Name       string `json:"name"`
	TestCaseID uint   `json:"testCaseId"`
	FolderID   *uint  `json:"folderId"`
}

// ListFilters holds optional filters for listing runs.
type ListFilters struct {
	ProjectID uint
	FolderID  *uint
	Status    string
}

// StepPatch changes the run-local fields of one step. Nil fields keep their
// current value.
type StepPatch struct {
	ID                      uint                `json:"id"`
	ActualResults           *string             `json:"actualResults,omitempty"`
	ActualResultAttachments *models.Attachments `json:"actualResultAttachments,omitempty"`
	Checked                 *bool               `json:"checked,omitempty"`
	StepStatus              *string             `json:"stepStatus,omitempty"`
}

// UpdateRequest is a status change and/or a batch of step patches.
type UpdateRequest struct {
	Status *string     `json:"status,omitempty"`
	Steps  []StepPatch `json:"steps,omitempty"`
}

// UpdateResult is the reloaded run after an update.
type UpdateResult struct {
	Run            *models.TestRun
	PreviousStatus string
}

// BecameLocked reports whether the update moved the run into a locked status.
func (r UpdateResult) BecameLocked() bool {
	return !IsLocked(r.PreviousStatus) && IsLocked(r.Run.Status)
}

// StatusCount holds a status and its count.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// IsLocked reports whether a run in this status rejects step edits.
func IsLocked(status string) bool {
	return status == models.RunStatusPassed || status == models.RunStatusFailed
}

// ValidStatus reports whether s is a run status.
func ValidStatus(s string) bool {
	return slices.Contains(Statuses, s)
}

// ValidStepStatus reports whether s is a step status.
func ValidStepStatus(s string) bool {
	return slices.Contains(StepStatuses, s)
}

// Create snapshots a test case into a new run. Every attachment file of the
// source steps is copied to a new id, so the run keeps its images when the
// case changes. Source attachments whose file is gone are skipped. If the run
// cannot be stored, the copied files are removed again.
func Create(db *gorm.DB, files Files, opts CreateOpts) (*models.TestRun, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, apperr.Validationf("test run name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, apperr.Validationf("test run name must be at most %d characters", MaxNameLength)
	}
	if opts.TestCaseID == 0 {
		return nil, apperr.Validationf("testCaseId is required")
	}

	tc, err := testcase.Get(db, opts.TestCaseID)
	if err != nil {
		return nil, err
	}
	if err := folder.CheckInProject(db, folder.TestRuns, opts.FolderID, tc.ProjectID); err != nil {
		return nil, err
	}

	var copied []models.Attachment
	steps := make([]models.TestRunStep, 0, len(tc.Steps))
	for _, s := range tc.Steps {
		attachments := models.Attachments{}
		for _, a := range s.Attachments {
			c, err := files.Copy(a)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					continue
				}
				removeFiles(files, copied)
				return nil, fmt.Errorf("testrun: copy attachment %s: %w", a.ID, err)
			}
			copied = append(copied, c)
			attachments = append(attachments, c)
		}
		steps = append(steps, models.TestRunStep{
			Position:                s.Position,
			StepDescription:         s.StepDescription,
			ExpectedResults:         s.ExpectedResults,
			Attachments:             attachments,
			ActualResults:           "",
			ActualResultAttachments: models.Attachments{},
			Checked:                 false,
			StepStatus:              models.StepStatusNotRun,
		})
	}

	sourceID := tc.ID
	run := models.TestRun{
		Name:               name,
		Status:             models.RunStatusReadyToTest,
		ProjectID:          tc.ProjectID,
		FolderID:           opts.FolderID,
		SourceTestCaseID:   &sourceID,
		SourceTestCaseName: tc.Name,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Steps").Create(&run).Error; err != nil {
			return fmt.Errorf("testrun: create: %w", err)
		}
		if len(steps) == 0 {
			return nil
		}
		for i := range steps {
			steps[i].TestRunID = run.ID
		}
		if err := tx.Create(&steps).Error; err != nil {
			return fmt.Errorf("testrun: create steps: %w", err)
		}
		return nil
	})
	if err != nil {
		removeFiles(files, copied)
		return nil, err
	}
	return Get(db, run.ID)
}

// Get retrieves a run by ID with its steps in position order.
func Get(db *gorm.DB, id uint) (*models.TestRun, error) {
	var run models.TestRun
	err := db.Preload("Steps", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	}).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("test run not found: %d", id)
		}
		return nil, fmt.Errorf("testrun: get %d: %w", id, err)
	}
	if run.Steps == nil {
		run.Steps = []models.TestRunStep{}
	}
	return &run, nil
}

// List returns runs matching filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.TestRun, error) {
	if filters.Status != "" && !ValidStatus(filters.Status) {
		return nil, apperr.Validationf("invalid status %q", filters.Status)
	}
	q := db.Model(&models.TestRun{}).Preload("Steps", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	})
	if filters.ProjectID != 0 {
		q = q.Where("project_id = ?", filters.ProjectID)
	}
	if filters.FolderID != nil {
		q = q.Where("folder_id = ?", *filters.FolderID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}

	runs := []models.TestRun{}
	if err := q.Order("created_at DESC, id DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("testrun: list: %w", err)
	}
	for i := range runs {
		if runs[i].Steps == nil {
			runs[i].Steps = []models.TestRunStep{}
		}
	}
	return runs, nil
}

// Update applies a status change and step patches. Step patches on a run
// that is already locked are a conflict and nothing is written. Patches for
// step ids outside the run are ignored. updatedAt is refreshed on every
// successful call.
func Update(db *gorm.DB, id uint, req UpdateRequest) (*UpdateResult, error) {
	if req.Status != nil && !ValidStatus(*req.Status) {
		return nil, apperr.Validationf("invalid status %q (want one of %s)", *req.Status, strings.Join(Statuses, ", "))
	}
	for _, p := range req.Steps {
		if p.StepStatus != nil && !ValidStepStatus(*p.StepStatus) {
			return nil, apperr.Validationf("invalid stepStatus %q (want one of %s)", *p.StepStatus, strings.Join(StepStatuses, ", "))
		}
	}

	var result UpdateResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var current models.TestRun
		if err := tx.Select("id", "status").Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("test run not found: %d", id)
			}
			return fmt.Errorf("testrun: get %d for update: %w", id, err)
		}
		result.PreviousStatus = current.Status

		if IsLocked(current.Status) && len(req.Steps) > 0 {
			return apperr.Conflictf("test run is locked (status %s); step results can no longer be changed", current.Status)
		}

		updates := map[string]interface{}{"updated_at": now()}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if err := tx.Model(&models.TestRun{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("testrun: update %d: %w", id, err)
		}

		if err := applyStepPatches(tx, id, req.Steps); err != nil {
			return err
		}

		run, err := Get(tx, id)
		if err != nil {
			return err
		}
		result.Run = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// applyStepPatches merges each patch into its step row.
func applyStepPatches(tx *gorm.DB, runID uint, patches []StepPatch) error {
	if len(patches) == 0 {
		return nil
	}
	var ids []uint
	if err := tx.Model(&models.TestRunStep{}).Where("test_run_id = ?", runID).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("testrun: list steps of %d: %w", runID, err)
	}
	owned := make(map[uint]bool, len(ids))
	for _, sid := range ids {
		owned[sid] = true
	}

	for _, p := range patches {
		if !owned[p.ID] {
			continue
		}
		fields := map[string]interface{}{}
		if p.ActualResults != nil {
			fields["actual_results"] = *p.ActualResults
		}
		if p.ActualResultAttachments != nil {
			fields["actual_result_attachments"] = models.NonNil(*p.ActualResultAttachments)
		}
		if p.Checked != nil {
			fields["checked"] = *p.Checked
		}
		if p.StepStatus != nil {
			fields["step_status"] = *p.StepStatus
		}
		if len(fields) == 0 {
			continue
		}
		if err := tx.Model(&models.TestRunStep{}).Where("id = ?", p.ID).Updates(fields).Error; err != nil {
			return fmt.Errorf("testrun: update step %d: %w", p.ID, err)
		}
	}
	return nil
}

// SetFolder moves a run into folderID, or out of any folder when nil.
func SetFolder(db *gorm.DB, id uint, folderID *uint) (*models.TestRun, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		var run models.TestRun
		if err := tx.Where("id = ?", id).First(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundf("test run not found: %d", id)
			}
			return fmt.Errorf("testrun: get %d: %w", id, err)
		}
		if err := folder.CheckInProject(tx, folder.TestRuns, folderID, run.ProjectID); err != nil {
			return err
		}
		if err := tx.Model(&models.TestRun{}).Where("id = ?", id).Updates(map[string]interface{}{
			"folder_id":  folderID,
			"updated_at": now(),
		}).Error; err != nil {
			return fmt.Errorf("testrun: set folder of %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// Delete removes a run, its steps and its Jira links. The run's attachment
// files that no other step references are removed best-effort when files is
// non-nil.
func Delete(db *gorm.DB, files Files, id uint) error {
	var attachments []models.Attachment
	err := db.Transaction(func(tx *gorm.DB) error {
		run, err := Get(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("test_run_id = ?", id).Delete(&models.JiraRunLink{}).Error; err != nil {
			return fmt.Errorf("testrun: delete jira links of %d: %w", id, err)
		}
		if err := tx.Where("test_run_id = ?", id).Delete(&models.TestRunStep{}).Error; err != nil {
			return fmt.Errorf("testrun: delete steps of %d: %w", id, err)
		}
		if err := tx.Delete(&models.TestRun{}, id).Error; err != nil {
			return fmt.Errorf("testrun: delete %d: %w", id, err)
		}
		var candidates []models.Attachment
		for _, s := range run.Steps {
			candidates = append(candidates, s.Attachments...)
			candidates = append(candidates, s.ActualResultAttachments...)
		}
		attachments, err = models.Unreferenced(tx, candidates)
		if err != nil {
			return fmt.Errorf("testrun: check attachment references of %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if files != nil {
		removeFiles(files, attachments)
	}
	return nil
}

// Summary returns run counts per status for a project.
func Summary(db *gorm.DB, projectID uint) ([]StatusCount, error) {
	var results []StatusCount
	if err := db.Model(&models.TestRun{}).
		Select("status, COUNT(*) as count").
		Where("project_id = ?", projectID).
		Group("status").
		Order("status ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("testrun: summary of project %d: %w", projectID, err)
	}
	return results, nil
}

// StepCounts tallies a run's steps by step status. Every status is present.
func StepCounts(run *models.TestRun) map[string]int {
	counts := make(map[string]int, len(StepStatuses))
	for _, s := range StepStatuses {
		counts[s] = 0
	}
	for _, s := range run.Steps {
		counts[s.StepStatus]++
	}
	return counts
}

func removeFiles(files Files, attachments []models.Attachment) {
	for _, a := range attachments {
		if err := files.Delete(a.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			log.Printf("testrun: delete attachment %s: %v", a.ID, err)
		}
	}
}

