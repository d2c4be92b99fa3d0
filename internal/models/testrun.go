package models

import (
	"time"

	"gorm.io/gorm"
)

// Test run statuses.
const (
	RunStatusReadyToTest = "ready_to_test"
	RunStatusInProgress  = "in_progress"
	RunStatusPassed      = "passed"
	RunStatusFailed      = "failed"
	RunStatusNA          = "na"
)

// Test run step statuses.
const (
	StepStatusNotRun                 = "not_run"
	StepStatusPassed                 = "passed"
	StepStatusFailed                 = "failed"
	StepStatusNA                     = "na"
	StepStatusPassedWithImprovements = "passed_with_improvements"
)

// TestRun is an execution of a test case, snapshotted at creation time.
// SourceTestCaseName is frozen so the run keeps its label after the source
// case is renamed or deleted.
type TestRun struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name               string    `gorm:"size:50;not null" json:"name"`
	Status             string    `gorm:"size:32;not null;default:ready_to_test;index" json:"status"`
	ProjectID          uint      `gorm:"not null;index" json:"projectId"`
	FolderID           *uint     `gorm:"index" json:"folderId"`
	SourceTestCaseID   *uint     `gorm:"index" json:"sourceTestCaseId"`
	SourceTestCaseName string    `gorm:"size:255" json:"sourceTestCaseName"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	Steps []TestRunStep `gorm:"foreignKey:TestRunID;constraint:OnDelete:CASCADE" json:"steps"`

	Project        *Project       `gorm:"foreignKey:ProjectID;constraint:OnDelete:RESTRICT" json:"-"`
	Folder         *TestRunFolder `gorm:"foreignKey:FolderID;constraint:OnDelete:SET NULL" json:"-"`
	SourceTestCase *TestCase      `gorm:"foreignKey:SourceTestCaseID;constraint:OnDelete:SET NULL" json:"-"`
}

// TestRunStep is a snapshot of a test case step plus the run-local results.
// StepDescription, ExpectedResults and Attachments never change after the
// run is created.
type TestRunStep struct {
	ID                      uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	TestRunID               uint        `gorm:"not null;index" json:"-"`
	Position                int         `gorm:"not null" json:"position"`
	StepDescription         string      `gorm:"type:text" json:"stepDescription"`
	ExpectedResults         string      `gorm:"type:text" json:"expectedResults"`
	Attachments             Attachments `json:"attachments"`
	ActualResults           string      `gorm:"type:text" json:"actualResults"`
	ActualResultAttachments Attachments `json:"actualResultAttachments"`
	Checked                 bool        `gorm:"not null;default:false" json:"checked"`
	StepStatus              string      `gorm:"size:32;not null;default:not_run" json:"stepStatus"`
}

// AfterFind normalizes NULL attachment columns to empty lists.
func (s *TestRunStep) AfterFind(tx *gorm.DB) error {
	s.Attachments = NonNil(s.Attachments)
	s.ActualResultAttachments = NonNil(s.ActualResultAttachments)
	return nil
}
