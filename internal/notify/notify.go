// Package notify posts test run outcomes to chat platforms (Slack, Discord).
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zulandar/testdeck/internal/models"
)

// Sidebar colors by outcome.
const (
	ColorPassed = "#36a64f"
	ColorFailed = "#d00000"
	ColorInfo   = "#439fe0"
)

// Event is a platform-neutral message with a title, body and metadata.
type Event struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Field is a key-value pair displayed with an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Sender delivers events to one chat destination.
type Sender interface {
	Send(ctx context.Context, evt Event) error
}

// Multi fans an event out to every sender. All senders are tried; their
// errors are joined.
type Multi []Sender

// Send implements Sender.
func (m Multi) Send(ctx context.Context, evt Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunFinished builds the event posted when a run is locked as passed or
// failed. stepCounts maps step status to the number of steps in it.
func RunFinished(run *models.TestRun, stepCounts map[string]int) Event {
	color := ColorInfo
	verb := "finished"
	switch run.Status {
	case models.RunStatusPassed:
		color, verb = ColorPassed, "passed"
	case models.RunStatusFailed:
		color, verb = ColorFailed, "failed"
	}

	evt := Event{
		Title: fmt.Sprintf("Test run %q %s", run.Name, verb),
		Color: color,
		Fields: []Field{
			{Name: "Run", Value: fmt.Sprintf("#%d", run.ID), Short: true},
			{Name: "Status", Value: run.Status, Short: true},
		},
	}
	if run.SourceTestCaseName != "" {
		evt.Body = "Test case: " + run.SourceTestCaseName
	}

	statuses := make([]string, 0, len(stepCounts))
	for s, n := range stepCounts {
		if n > 0 {
			statuses = append(statuses, s)
		}
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		evt.Fields = append(evt.Fields, Field{Name: s, Value: fmt.Sprintf("%d", stepCounts[s]), Short: true})
	}
	return evt
}
