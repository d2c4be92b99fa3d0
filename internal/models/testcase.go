package models

import (
	"time"

	"gorm.io/gorm"
)

// TestCase is a reusable, ordered list of steps.
type TestCase struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	ProjectID uint      `gorm:"not null;index" json:"projectId"`
	FolderID  *uint     `gorm:"index" json:"folderId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Steps []TestCaseStep `gorm:"foreignKey:TestCaseID;constraint:OnDelete:CASCADE" json:"steps"`

	Project *Project        `gorm:"foreignKey:ProjectID;constraint:OnDelete:RESTRICT" json:"-"`
	Folder  *TestCaseFolder `gorm:"foreignKey:FolderID;constraint:OnDelete:SET NULL" json:"-"`
}

// TestCaseStep is one step of a test case. Position is 1-based and
// contiguous within the case.
type TestCaseStep struct {
	ID              uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	TestCaseID      uint        `gorm:"not null;index" json:"-"`
	Position        int         `gorm:"not null" json:"position"`
	StepDescription string      `gorm:"type:text" json:"stepDescription"`
	ExpectedResults string      `gorm:"type:text" json:"expectedResults"`
	Attachments     Attachments `json:"attachments"`
}

// AfterFind normalizes a NULL attachment column to an empty list.
func (s *TestCaseStep) AfterFind(tx *gorm.DB) error {
	s.Attachments = NonNil(s.Attachments)
	return nil
}
