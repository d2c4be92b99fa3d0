package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/testcase"
	"gorm.io/gorm"
)

// folderRequest is the body of the folder reassignment endpoints. A null or
// missing folderId moves the entity out of any folder.
type folderRequest struct {
	FolderID *uint `json:"folderId"`
}

func handleCaseList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := queryID(c, "projectId")
		if !ok {
			return
		}
		folderID, ok := queryID(c, "folderId")
		if !ok {
			return
		}
		filters := testcase.ListFilters{FolderID: folderID}
		if projectID != nil {
			filters.ProjectID = *projectID
		}
		cases, err := testcase.List(db, filters)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cases)
	}
}

func handleCaseCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req testcase.SaveOpts
		if !bindJSON(c, &req) {
			return
		}
		tc, err := testcase.Create(db, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, tc)
	}
}

func handleCaseGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		tc, err := testcase.Get(db, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tc)
	}
}

func handleCaseUpdate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req testcase.SaveOpts
		if !bindJSON(c, &req) {
			return
		}
		tc, err := testcase.Update(db, id, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tc)
	}
}

func handleCaseDelete(db *gorm.DB, files testcase.FileRemover) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		force := false
		if raw := c.Query("force"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(c, apperr.Validationf("invalid force %q", raw))
				return
			}
			force = v
		}
		if err := testcase.Delete(db, files, id, force); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleCaseFolder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req folderRequest
		if !bindJSON(c, &req) {
			return
		}
		tc, err := testcase.SetFolder(db, id, req.FolderID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tc)
	}
}
