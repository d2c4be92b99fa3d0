package dashboard

import (
	"fmt"

	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/project"
	"github.com/zulandar/testdeck/internal/testrun"
	"gorm.io/gorm"
)

// Summary holds the counts shown on a project's overview.
type Summary struct {
	ProjectID uint           `json:"projectId"`
	TestCases int64          `json:"testCases"`
	TestRuns  int            `json:"testRuns"`
	Locked    int            `json:"locked"`
	ByStatus  map[string]int `json:"byStatus"`
}

// ProjectSummary returns test case and run counts for a project. ByStatus
// carries every run status, zero included.
func ProjectSummary(db *gorm.DB, projectID uint) (*Summary, error) {
	if _, err := project.Get(db, projectID); err != nil {
		return nil, err
	}

	s := &Summary{ProjectID: projectID, ByStatus: make(map[string]int, len(testrun.Statuses))}
	for _, status := range testrun.Statuses {
		s.ByStatus[status] = 0
	}

	if err := db.Model(&models.TestCase{}).Where("project_id = ?", projectID).Count(&s.TestCases).Error; err != nil {
		return nil, fmt.Errorf("dashboard: count test cases of %d: %w", projectID, err)
	}

	counts, err := testrun.Summary(db, projectID)
	if err != nil {
		return nil, err
	}
	for _, sc := range counts {
		s.ByStatus[sc.Status] = sc.Count
		s.TestRuns += sc.Count
		if testrun.IsLocked(sc.Status) {
			s.Locked += sc.Count
		}
	}
	return s, nil
}
