package models

// Setting is one app-wide configuration value.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text"`
}

// SettingJiraBaseURL is the key of the Jira base URL setting.
const SettingJiraBaseURL = "jira_base_url"
