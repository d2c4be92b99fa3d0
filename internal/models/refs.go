package models

import (
	"fmt"

	"gorm.io/gorm"
)

// ReferencedAttachments returns the ids of every attachment referenced by a
// test case step or a test run step (snapshot and actual result lists).
func ReferencedAttachments(db *gorm.DB) (map[string]bool, error) {
	refs := make(map[string]bool)

	var caseSteps []TestCaseStep
	if err := db.Select("id", "attachments").Find(&caseSteps).Error; err != nil {
		return nil, fmt.Errorf("models: load test case steps: %w", err)
	}
	for _, s := range caseSteps {
		for _, a := range s.Attachments {
			refs[a.ID] = true
		}
	}

	var runSteps []TestRunStep
	if err := db.Select("id", "attachments", "actual_result_attachments").Find(&runSteps).Error; err != nil {
		return nil, fmt.Errorf("models: load test run steps: %w", err)
	}
	for _, s := range runSteps {
		for _, a := range s.Attachments {
			refs[a.ID] = true
		}
		for _, a := range s.ActualResultAttachments {
			refs[a.ID] = true
		}
	}
	return refs, nil
}

// Unreferenced returns the attachments of list, each id once, that no
// remaining step references.
func Unreferenced(db *gorm.DB, list []Attachment) ([]Attachment, error) {
	if len(list) == 0 {
		return nil, nil
	}
	refs, err := ReferencedAttachments(db)
	if err != nil {
		return nil, err
	}
	var out []Attachment
	seen := make(map[string]bool, len(list))
	for _, a := range list {
		if refs[a.ID] || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out, nil
}
