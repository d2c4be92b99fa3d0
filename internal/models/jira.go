package models

import "time"

// JiraLink ties a Jira issue key to a test case. The (case, key) pair is
// unique.
type JiraLink struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TestCaseID   uint      `gorm:"not null;uniqueIndex:idx_jira_link_case_key" json:"testCaseId"`
	JiraIssueKey string    `gorm:"size:64;not null;uniqueIndex:idx_jira_link_case_key" json:"jiraIssueKey"`
	URL          string    `gorm:"-" json:"url,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	TestCase *TestCase `gorm:"foreignKey:TestCaseID;constraint:OnDelete:CASCADE" json:"-"`
}

// JiraRunLink ties a Jira issue key to a test run. The (run, key) pair is
// unique.
type JiraRunLink struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TestRunID    uint      `gorm:"not null;uniqueIndex:idx_jira_run_link_run_key" json:"testRunId"`
	JiraIssueKey string    `gorm:"size:64;not null;uniqueIndex:idx_jira_run_link_run_key" json:"jiraIssueKey"`
	URL          string    `gorm:"-" json:"url,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	TestRun *TestRun `gorm:"foreignKey:TestRunID;constraint:OnDelete:CASCADE" json:"-"`
}
