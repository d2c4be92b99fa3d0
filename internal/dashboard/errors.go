package dashboard

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testdeck/internal/apperr"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as {"error": "..."}. Unclassified errors are logged
// and the caller only sees a generic message.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Unexpected {
		log.Printf("dashboard: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"error": apperr.Message(err)})
}

// bindJSON decodes the request body into v, writing a 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(c, apperr.Validationf("request body is required"))
			return false
		}
		writeError(c, apperr.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(c, apperr.Validationf("invalid id %q", raw))
		return 0, false
	}
	return uint(id), true
}

// queryID parses an optional numeric query parameter. The returned pointer is
// nil when the parameter is absent.
func queryID(c *gin.Context, name string) (*uint, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(c, apperr.Validationf("invalid %s %q", name, raw))
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// requiredQueryID parses a numeric query parameter that must be present.
func requiredQueryID(c *gin.Context, name string) (uint, bool) {
	id, ok := queryID(c, name)
	if !ok {
		return 0, false
	}
	if id == nil {
		writeError(c, apperr.Validationf("%s is required", name))
		return 0, false
	}
	return *id, true
}
