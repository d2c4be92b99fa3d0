package models

import "time"

// Project is the top-level container for test cases, runs and folders.
type Project struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TestCaseFolder groups test cases within a project. Folders do not nest.
type TestCaseFolder struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"size:255;not null" json:"name"`
	ProjectID uint   `gorm:"not null;index" json:"projectId"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// TestRunFolder groups test runs within a project. Folders do not nest.
type TestRunFolder struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"size:255;not null" json:"name"`
	ProjectID uint   `gorm:"not null;index" json:"projectId"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}
