package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/testrun"
	"gorm.io/gorm"
)

// Polling cadence of the event stream; tests shorten these.
var (
	ssePollInterval      = 3 * time.Second
	sseHeartbeatInterval = 15 * time.Second
)

// runUpdatedEvent is sent whenever a run's updatedAt moves forward.
type runUpdatedEvent struct {
	ID        uint      `json:"id"`
	ProjectID uint      `json:"projectId"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Locked    bool      `json:"locked"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// handleSSE streams run updates by polling for runs whose updatedAt is newer
// than the last one sent. Changes made outside this process (the CLI, another
// server) are picked up too. An optional projectId narrows the stream.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := queryID(c, "projectId")
		if !ok {
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		scope := func() *gorm.DB {
			q := db.Model(&models.TestRun{}).Select("id", "project_id", "name", "status", "updated_at")
			if projectID != nil {
				q = q.Where("project_id = ?", *projectID)
			}
			return q
		}

		// Only runs changed after connecting are reported.
		var lastSeen time.Time
		var latest models.TestRun
		if err := scope().Order("updated_at DESC").Limit(1).First(&latest).Error; err == nil {
			lastSeen = latest.UpdatedAt
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(ssePollInterval)
		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var changed []models.TestRun
				if err := scope().Where("updated_at > ?", lastSeen).
					Order("updated_at ASC, id ASC").Find(&changed).Error; err != nil {
					continue
				}
				if len(changed) == 0 {
					continue
				}
				lastSeen = changed[len(changed)-1].UpdatedAt

				for _, r := range changed {
					writeSSE(c.Writer, "run-updated", runUpdatedEvent{
						ID:        r.ID,
						ProjectID: r.ProjectID,
						Name:      r.Name,
						Status:    r.Status,
						Locked:    testrun.IsLocked(r.Status),
						UpdatedAt: r.UpdatedAt,
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
