package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/testdeck/internal/models"
)

type recordingSender struct {
	events []Event
	err    error
}

func (r *recordingSender) Send(_ context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestMulti_SendsToAll(t *testing.T) {
	a := &recordingSender{err: errors.New("slack down")}
	b := &recordingSender{}

	err := Multi{a, b}.Send(context.Background(), Event{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "slack down") {
		t.Errorf("err = %v, want joined slack error", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events = %d/%d, want 1/1", len(a.events), len(b.events))
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := (Multi{}).Send(context.Background(), Event{}); err != nil {
		t.Errorf("empty Multi.Send = %v, want nil", err)
	}
}

func TestRunFinished(t *testing.T) {
	run := &models.TestRun{ID: 7, Name: "Smoke", Status: models.RunStatusFailed, SourceTestCaseName: "Login"}
	evt := RunFinished(run, map[string]int{
		models.StepStatusPassed: 2,
		models.StepStatusFailed: 1,
		models.StepStatusNA:     0,
	})

	if evt.Title != `Test run "Smoke" failed` {
		t.Errorf("Title = %q", evt.Title)
	}
	if evt.Color != ColorFailed {
		t.Errorf("Color = %q, want %q", evt.Color, ColorFailed)
	}
	if evt.Body != "Test case: Login" {
		t.Errorf("Body = %q", evt.Body)
	}
	var names []string
	for _, f := range evt.Fields {
		names = append(names, f.Name)
	}
	if got := strings.Join(names, ","); got != "Run,Status,failed,passed" {
		t.Errorf("fields = %s, want Run,Status,failed,passed", got)
	}
}

func TestRunFinished_Passed(t *testing.T) {
	evt := RunFinished(&models.TestRun{Name: "R", Status: models.RunStatusPassed}, nil)
	if evt.Color != ColorPassed {
		t.Errorf("Color = %q, want %q", evt.Color, ColorPassed)
	}
	if evt.Body != "" {
		t.Errorf("Body = %q, want empty without source case", evt.Body)
	}
}
