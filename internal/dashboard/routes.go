package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testdeck/internal/folder"
	"github.com/zulandar/testdeck/internal/project"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	db, files := opts.DB, opts.Files
	api := router.Group(opts.BasePath)

	api.GET("/healthz", handleHealth(db))

	// Projects.
	api.GET("/projects", handleProjectList(db))
	api.POST("/projects", handleProjectCreate(db))
	api.GET("/projects/:id", handleProjectGet(db))
	api.PUT("/projects/:id", handleProjectRename(db))
	api.DELETE("/projects/:id", handleProjectDelete(db))
	api.GET("/projects/:id/summary", handleProjectSummary(db))

	// Folders.
	registerFolderRoutes(api.Group("/test-case-folders"), db, folder.TestCases)
	registerFolderRoutes(api.Group("/test-run-folders"), db, folder.TestRuns)

	// Test cases.
	api.GET("/test-cases", handleCaseList(db))
	api.POST("/test-cases", handleCaseCreate(db))
	api.GET("/test-cases/:id", handleCaseGet(db))
	api.PUT("/test-cases/:id", handleCaseUpdate(db))
	api.DELETE("/test-cases/:id", handleCaseDelete(db, files))
	api.PATCH("/test-cases/:id/folder", handleCaseFolder(db))

	// Test runs.
	api.GET("/test-runs", handleRunList(db))
	api.POST("/test-runs", handleRunCreate(db, files))
	api.GET("/test-runs/:id", handleRunGet(db))
	api.PUT("/test-runs/:id", handleRunUpdate(db, opts.Notifier))
	api.DELETE("/test-runs/:id", handleRunDelete(db, files))
	api.PATCH("/test-runs/:id/folder", handleRunFolder(db))

	// Jira links and settings.
	api.GET("/jira/links", handleCaseLinkList(db))
	api.POST("/jira/links", handleCaseLinkCreate(db))
	api.DELETE("/jira/links/:id", handleCaseLinkDelete(db))
	api.GET("/jira/run-links", handleRunLinkList(db))
	api.POST("/jira/run-links", handleRunLinkCreate(db))
	api.DELETE("/jira/run-links/:id", handleRunLinkDelete(db))
	api.GET("/settings", handleSettingsGet(db))
	api.PUT("/settings", handleSettingsPut(db))

	// Attachments.
	api.POST("/attachments", handleAttachmentUpload(files))
	api.DELETE("/attachments/:id", handleAttachmentDelete(files))
	api.GET("/uploads/:filename", handleUpload(files))

	// Live run updates.
	api.GET("/events", handleSSE(db))
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type nameRequest struct {
	Name string `json:"name"`
}

func handleProjectList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := project.List(db)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
	}
}

func handleProjectCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req nameRequest
		if !bindJSON(c, &req) {
			return
		}
		p, err := project.Create(db, req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func handleProjectGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		p, err := project.Get(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleProjectRename(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req nameRequest
		if !bindJSON(c, &req) {
			return
		}
		p, err := project.Rename(db, id, req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleProjectDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := project.Delete(db, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleProjectSummary(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		summary, err := ProjectSummary(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// registerFolderRoutes wires list/create/rename/delete for one folder kind.
func registerFolderRoutes(g *gin.RouterGroup, db *gorm.DB, kind folder.Kind) {
	g.GET("", func(c *gin.Context) {
		projectID, ok := requiredQueryID(c, "projectId")
		if !ok {
			return
		}
		folders, err := folder.List(db, kind, projectID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, folders)
	})

	g.POST("", func(c *gin.Context) {
		var req struct {
			Name      string `json:"name"`
			ProjectID uint   `json:"projectId"`
		}
		if !bindJSON(c, &req) {
			return
		}
		f, err := folder.Create(db, kind, req.ProjectID, req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, f)
	})

	g.PUT("/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req nameRequest
		if !bindJSON(c, &req) {
			return
		}
		f, err := folder.Rename(db, kind, id, req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, f)
	})

	g.DELETE("/:id", func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := folder.Delete(db, kind, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
