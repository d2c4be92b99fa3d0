package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/attachment"
)

// multipartOverhead is allowed on top of the file size limit for the
// multipart framing and other form fields.
const multipartOverhead = 64 << 10

func handleAttachmentUpload(files *attachment.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, files.MaxBytes()+multipartOverhead)

		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(c, apperr.Validationf("file exceeds the upload size limit"))
				return
			}
			writeError(c, apperr.Validationf("multipart field \"file\" is required"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, err)
			return
		}
		defer f.Close()

		a, err := files.Save(fh.Filename, f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func handleAttachmentDelete(files *attachment.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := files.Delete(c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleUpload(files *attachment.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := files.Path(c.Param("filename"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.File(path)
	}
}
