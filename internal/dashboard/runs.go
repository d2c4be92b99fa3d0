package dashboard

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/notify"
	"github.com/zulandar/testdeck/internal/testrun"
	"gorm.io/gorm"
)

// notifyTimeout bounds one run notification, retries included.
const notifyTimeout = 30 * time.Second

func handleRunList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := queryID(c, "projectId")
		if !ok {
			return
		}
		folderID, ok := queryID(c, "folderId")
		if !ok {
			return
		}
		filters := testrun.ListFilters{FolderID: folderID, Status: c.Query("status")}
		if projectID != nil {
			filters.ProjectID = *projectID
		}
		runs, err := testrun.List(db, filters)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

func handleRunCreate(db *gorm.DB, files testrun.Files) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req testrun.CreateOpts
		if !bindJSON(c, &req) {
			return
		}
		run, err := testrun.Create(db, files, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, run)
	}
}

func handleRunGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		run, err := testrun.Get(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func handleRunUpdate(db *gorm.DB, notifier notify.Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req testrun.UpdateRequest
		if !bindJSON(c, &req) {
			return
		}
		res, err := testrun.Update(db, id, req)
		if err != nil {
			writeError(c, err)
			return
		}
		if notifier != nil && res.BecameLocked() {
			go sendRunFinished(notifier, res.Run)
		}
		c.JSON(http.StatusOK, res.Run)
	}
}

// sendRunFinished posts the run outcome. Failures are logged only.
func sendRunFinished(notifier notify.Sender, run *models.TestRun) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	evt := notify.RunFinished(run, testrun.StepCounts(run))
	if err := notifier.Send(ctx, evt); err != nil {
		log.Printf("dashboard: notify run %d: %v", run.ID, err)
	}
}

func handleRunDelete(db *gorm.DB, files testrun.Files) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := testrun.Delete(db, files, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleRunFolder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req folderRequest
		if !bindJSON(c, &req) {
			return
		}
		run, err := testrun.SetFolder(db, id, req.FolderID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}
