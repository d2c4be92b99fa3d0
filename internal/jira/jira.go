// Package jira links Jira issue keys to test cases and test runs and holds
// the Jira base URL used to turn a key into a browsable link.
package jira

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[1-9][0-9]*$`)

// Settings is the API view of the settings table.
type Settings struct {
	JiraBaseURL string `json:"jiraBaseUrl"`
}

// NormalizeKey upper-cases and validates an issue key such as "QA-123".
func NormalizeKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return "", apperr.Validationf("jiraIssueKey is required")
	}
	if !issueKeyPattern.MatchString(key) {
		return "", apperr.Validationf("invalid Jira issue key %q (want PROJECT-123)", key)
	}
	return key, nil
}

// IssueURL returns the browse URL of key, or "" when no base URL is set.
func IssueURL(baseURL, key string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/browse/" + key
}

// GetSettings reads the app-wide settings.
func GetSettings(db *gorm.DB) (Settings, error) {
	base, err := baseURL(db)
	if err != nil {
		return Settings{}, err
	}
	return Settings{JiraBaseURL: base}, nil
}

// PutSettings stores the app-wide settings. An empty base URL clears it.
func PutSettings(db *gorm.DB, s Settings) (Settings, error) {
	base := strings.TrimRight(strings.TrimSpace(s.JiraBaseURL), "/")
	if base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Settings{}, apperr.Validationf("jiraBaseUrl must be an absolute http(s) URL")
		}
	}

	row := models.Setting{Key: models.SettingJiraBaseURL, Value: base}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return Settings{}, fmt.Errorf("jira: save settings: %w", err)
	}
	return Settings{JiraBaseURL: base}, nil
}

// ListCaseLinks returns the links of a test case, oldest first.
func ListCaseLinks(db *gorm.DB, testCaseID uint) ([]models.JiraLink, error) {
	if testCaseID == 0 {
		return nil, apperr.Validationf("testCaseId is required")
	}
	links := []models.JiraLink{}
	if err := db.Where("test_case_id = ?", testCaseID).Order("created_at ASC, id ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("jira: list links of test case %d: %w", testCaseID, err)
	}
	base, err := baseURL(db)
	if err != nil {
		return nil, err
	}
	for i := range links {
		links[i].URL = IssueURL(base, links[i].JiraIssueKey)
	}
	return links, nil
}

// CreateCaseLink links key to a test case. Linking the same key twice is a
// conflict.
func CreateCaseLink(db *gorm.DB, testCaseID uint, key string) (*models.JiraLink, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	if testCaseID == 0 {
		return nil, apperr.Validationf("testCaseId is required")
	}

	link := models.JiraLink{TestCaseID: testCaseID, JiraIssueKey: key}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.TestCase{}, testCaseID, "test case"); err != nil {
			return err
		}
		var dup int64
		if err := tx.Model(&models.JiraLink{}).Where("test_case_id = ? AND jira_issue_key = ?", testCaseID, key).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("jira: check link: %w", err)
		}
		if dup > 0 {
			return apperr.Conflictf("%s is already linked to test case %d", key, testCaseID)
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("jira: create link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	base, err := baseURL(db)
	if err != nil {
		return nil, err
	}
	link.URL = IssueURL(base, key)
	return &link, nil
}

// DeleteCaseLink removes a test case link.
func DeleteCaseLink(db *gorm.DB, id uint) error {
	res := db.Delete(&models.JiraLink{}, id)
	if res.Error != nil {
		return fmt.Errorf("jira: delete link %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("jira link not found: %d", id)
	}
	return nil
}

// ListRunLinks returns the links of a test run, oldest first.
func ListRunLinks(db *gorm.DB, testRunID uint) ([]models.JiraRunLink, error) {
	if testRunID == 0 {
		return nil, apperr.Validationf("testRunId is required")
	}
	links := []models.JiraRunLink{}
	if err := db.Where("test_run_id = ?", testRunID).Order("created_at ASC, id ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("jira: list links of test run %d: %w", testRunID, err)
	}
	base, err := baseURL(db)
	if err != nil {
		return nil, err
	}
	for i := range links {
		links[i].URL = IssueURL(base, links[i].JiraIssueKey)
	}
	return links, nil
}

// CreateRunLink links key to a test run. Linking the same key twice is a
// conflict. Links can be added to locked runs.
func CreateRunLink(db *gorm.DB, testRunID uint, key string) (*models.JiraRunLink, error) {
	key, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	if testRunID == 0 {
		return nil, apperr.Validationf("testRunId is required")
	}

	link := models.JiraRunLink{TestRunID: testRunID, JiraIssueKey: key}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.TestRun{}, testRunID, "test run"); err != nil {
			return err
		}
		var dup int64
		if err := tx.Model(&models.JiraRunLink{}).Where("test_run_id = ? AND jira_issue_key = ?", testRunID, key).
			Count(&dup).Error; err != nil {
			return fmt.Errorf("jira: check run link: %w", err)
		}
		if dup > 0 {
			return apperr.Conflictf("%s is already linked to test run %d", key, testRunID)
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("jira: create run link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	base, err := baseURL(db)
	if err != nil {
		return nil, err
	}
	link.URL = IssueURL(base, key)
	return &link, nil
}

// DeleteRunLink removes a test run link.
func DeleteRunLink(db *gorm.DB, id uint) error {
	res := db.Delete(&models.JiraRunLink{}, id)
	if res.Error != nil {
		return fmt.Errorf("jira: delete run link %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFoundf("jira run link not found: %d", id)
	}
	return nil
}

// baseURL reads the stored base URL; a missing row means none is set.
func baseURL(db *gorm.DB) (string, error) {
	var s models.Setting
	err := db.Where(&models.Setting{Key: models.SettingJiraBaseURL}).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("jira: read settings: %w", err)
	}
	return s.Value, nil
}

func mustExist(tx *gorm.DB, model interface{}, id uint, what string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("jira: check %s %d: %w", what, id, err)
	}
	if count == 0 {
		return apperr.NotFoundf("%s not found: %d", what, id)
	}
	return nil
}
