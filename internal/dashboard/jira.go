package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testdeck/internal/jira"
	"gorm.io/gorm"
)

func handleCaseLinkList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		caseID, ok := requiredQueryID(c, "testCaseId")
		if !ok {
			return
		}
		links, err := jira.ListCaseLinks(db, caseID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

func handleCaseLinkCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TestCaseID   uint   `json:"testCaseId"`
			JiraIssueKey string `json:"jiraIssueKey"`
		}
		if !bindJSON(c, &req) {
			return
		}
		link, err := jira.CreateCaseLink(db, req.TestCaseID, req.JiraIssueKey)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, link)
	}
}

func handleCaseLinkDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := jira.DeleteCaseLink(db, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleRunLinkList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID, ok := requiredQueryID(c, "testRunId")
		if !ok {
			return
		}
		links, err := jira.ListRunLinks(db, runID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

func handleRunLinkCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TestRunID    uint   `json:"testRunId"`
			JiraIssueKey string `json:"jiraIssueKey"`
		}
		if !bindJSON(c, &req) {
			return
		}
		link, err := jira.CreateRunLink(db, req.TestRunID, req.JiraIssueKey)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, link)
	}
}

func handleRunLinkDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := jira.DeleteRunLink(db, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleSettingsGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := jira.GetSettings(db)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func handleSettingsPut(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req jira.Settings
		if !bindJSON(c, &req) {
			return
		}
		s, err := jira.PutSettings(db, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}
