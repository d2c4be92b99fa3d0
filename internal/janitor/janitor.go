// Package janitor removes attachment files that no step references any more,
// on a cron schedule or on demand.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/attachment"
	"github.com/zulandar/testdeck/internal/models"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Files is the part of the attachment store the janitor needs.
type Files interface {
	List() ([]attachment.File, error)
	Delete(id string) error
}

// SweepOpts controls a sweep.
type SweepOpts struct {
	// Grace keeps unreferenced files younger than this; a fresh upload is
	// unreferenced until the step that uses it is saved.
	Grace  time.Duration
	DryRun bool
	Now    time.Time // zero means time.Now()
}

// Result summarizes a sweep.
type Result struct {
	Scanned  int
	Orphaned int   // unreferenced and older than the grace period
	Deleted  int   // orphaned files actually removed (0 on a dry run)
	Bytes    int64 // size of the orphaned files
	Orphans  []attachment.File
}

// Referenced returns the ids of every attachment referenced by a test case
// step or a test run step.
func Referenced(db *gorm.DB) (map[string]bool, error) {
	refs, err := models.ReferencedAttachments(db)
	if err != nil {
		return nil, fmt.Errorf("janitor: %w", err)
	}
	return refs, nil
}

// Sweep deletes stored files that are unreferenced and older than the grace
// period.
func Sweep(ctx context.Context, db *gorm.DB, files Files, opts SweepOpts) (Result, error) {
	var res Result
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	refs, err := Referenced(db.WithContext(ctx))
	if err != nil {
		return res, err
	}
	stored, err := files.List()
	if err != nil {
		return res, fmt.Errorf("janitor: list files: %w", err)
	}

	res.Scanned = len(stored)
	for _, f := range stored {
		if refs[f.ID] || now.Sub(f.ModTime) < opts.Grace {
			continue
		}
		res.Orphaned++
		res.Bytes += f.Size
		res.Orphans = append(res.Orphans, f)
		if opts.DryRun {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := files.Delete(f.ID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			log.Printf("janitor: delete %s: %v", f.Name, err)
			continue
		}
		res.Deleted++
	}
	return res, nil
}

// Janitor runs Sweep on a cron schedule.
type Janitor struct {
	db       *gorm.DB
	files    Files
	schedule cron.Schedule
	grace    time.Duration
}

// New parses a 5-field cron expression and returns a Janitor.
func New(db *gorm.DB, files Files, spec string, grace time.Duration) (*Janitor, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("janitor: parse schedule %q: %w", spec, err)
	}
	return &Janitor{db: db, files: files, schedule: sched, grace: grace}, nil
}

// Next returns the next fire time after t.
func (j *Janitor) Next(t time.Time) time.Time {
	return j.schedule.Next(t)
}

// Run sweeps at every scheduled time until ctx is cancelled. Sweep failures
// are logged and do not stop the loop.
func (j *Janitor) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Until(j.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			res, err := Sweep(ctx, j.db, j.files, SweepOpts{Grace: j.grace})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("janitor: sweep: %v", err)
			} else if res.Deleted > 0 {
				log.Printf("janitor: removed %d orphaned attachment(s) (%d bytes)", res.Deleted, res.Bytes)
			}
			timer.Reset(time.Until(j.Next(time.Now())))
		}
	}
}
