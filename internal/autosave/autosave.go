// Package autosave keeps a client-side editing session for one test run.
//
// Step edits are applied to the local copy immediately and merged per field
// into a pending batch, which is saved once no edit has arrived for the
// debounce delay. A status change flushes the pending batch in the same
// request, so the last step edit is saved together with a status that locks
// the run.
package autosave

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/zulandar/testdeck/internal/apperr"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/testrun"
)

// DefaultDelay is the debounce delay between the last edit and the save.
const DefaultDelay = 800 * time.Millisecond

// saveTimeout bounds a save started by the debounce timer.
const saveTimeout = 30 * time.Second

// Saver persists run updates. *client.Client satisfies it.
type Saver interface {
	GetRun(ctx context.Context, id uint) (*models.TestRun, error)
	UpdateRun(ctx context.Context, id uint, req testrun.UpdateRequest) (*models.TestRun, error)
}

// AttachmentDeleter removes stored attachment files.
type AttachmentDeleter interface {
	DeleteAttachment(ctx context.Context, id string) error
}

// Options configures a Session.
type Options struct {
	Delay   time.Duration     // zero means DefaultDelay
	Files   AttachmentDeleter // optional; used by RemoveAttachment
	OnError func(error)       // called when a debounced save fails
}

// Session is the editing state of one run.
type Session struct {
	saver   Saver
	files   AttachmentDeleter
	delay   time.Duration
	onError func(error)

	// saveMu serializes saves so responses are applied in request order.
	saveMu sync.Mutex

	mu      sync.Mutex
	run     *models.TestRun
	pending map[uint]testrun.StepPatch
	order   []uint
	timer   *time.Timer
	closed  bool
}

// New starts a session on run, typically as returned by GetRun.
func New(saver Saver, run *models.TestRun, opts Options) *Session {
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Session{
		saver:   saver,
		files:   opts.Files,
		delay:   delay,
		onError: opts.OnError,
		run:     cloneRun(run),
		pending: make(map[uint]testrun.StepPatch),
	}
}

// Run returns a copy of the local run, pending edits included.
func (s *Session) Run() *models.TestRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRun(s.run)
}

// Locked reports whether the local run is in a locked status.
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return testrun.IsLocked(s.run.Status)
}

// Pending returns the number of steps with unsaved edits.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// EditStep records a step edit and (re)starts the debounce timer. Only the
// non-nil fields of p are changed.
func (s *Session) EditStep(p testrun.StepPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editLocked(p)
}

// AddAttachment appends an uploaded file to a step's actual results.
func (s *Session) AddAttachment(stepID uint, a models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.stepLocked(stepID)
	if step == nil {
		return apperr.NotFoundf("step %d is not part of test run %d", stepID, s.run.ID)
	}
	list := append(slices.Clone(step.ActualResultAttachments), a)
	return s.editLocked(testrun.StepPatch{ID: stepID, ActualResultAttachments: &list})
}

// RemoveAttachment drops a file from a step's actual results and deletes the
// stored file. Only actual result attachments can be removed; the step's
// snapshot attachments belong to the run. A failed file delete is logged and
// otherwise ignored.
func (s *Session) RemoveAttachment(ctx context.Context, stepID uint, attachmentID string) error {
	s.mu.Lock()
	step := s.stepLocked(stepID)
	if step == nil {
		s.mu.Unlock()
		return apperr.NotFoundf("step %d is not part of test run %d", stepID, s.run.ID)
	}
	list := slices.DeleteFunc(slices.Clone(step.ActualResultAttachments), func(a models.Attachment) bool {
		return a.ID == attachmentID
	})
	if len(list) == len(step.ActualResultAttachments) {
		s.mu.Unlock()
		return apperr.NotFoundf("attachment %s is not an actual result of step %d", attachmentID, stepID)
	}
	list = models.NonNil(list)
	err := s.editLocked(testrun.StepPatch{ID: stepID, ActualResultAttachments: &list})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.files != nil {
		if err := s.files.DeleteAttachment(ctx, attachmentID); err != nil {
			log.Printf("autosave: delete attachment %s: %v", attachmentID, err)
		}
	}
	return nil
}

// Flush saves pending edits now. On failure the edits stay pending and the
// error is returned, unless the run turned out to be locked: then the edits
// are dropped and the session adopts the server's copy of the run.
func (s *Session) Flush(ctx context.Context) error {
	return s.save(ctx, nil)
}

// SetStatus saves a status change together with any pending step edits.
func (s *Session) SetStatus(ctx context.Context, status string) error {
	if !testrun.ValidStatus(status) {
		return apperr.Validationf("invalid status %q", status)
	}
	return s.save(ctx, &status)
}

// Close flushes pending edits and ends the session. Later edits fail.
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()
	return err
}

func (s *Session) editLocked(p testrun.StepPatch) error {
	if s.closed {
		return apperr.Conflictf("session for test run %d is closed", s.run.ID)
	}
	if testrun.IsLocked(s.run.Status) {
		return apperr.Conflictf("test run is locked (status %s); step results can no longer be changed", s.run.Status)
	}
	if s.stepLocked(p.ID) == nil {
		return apperr.NotFoundf("step %d is not part of test run %d", p.ID, s.run.ID)
	}
	if p.StepStatus != nil && !testrun.ValidStepStatus(*p.StepStatus) {
		return apperr.Validationf("invalid step status %q", *p.StepStatus)
	}

	s.queueLocked(p)
	s.applyLocked(p)

	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.delay, s.saveFromTimer)
	return nil
}

// queueLocked merges p into the pending batch; fields set in p win.
func (s *Session) queueLocked(p testrun.StepPatch) {
	cur, ok := s.pending[p.ID]
	if !ok {
		s.order = append(s.order, p.ID)
		cur = testrun.StepPatch{ID: p.ID}
	}
	merge(&cur, p)
	s.pending[p.ID] = cur
}

func (s *Session) saveFromTimer() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if err := s.save(ctx, nil); err != nil {
		if s.onError != nil {
			s.onError(err)
		} else {
			log.Printf("autosave: save test run: %v", err)
		}
	}
}

func (s *Session) save(ctx context.Context, status *string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.stopTimerLocked()
	runID := s.run.ID
	batch := s.takePendingLocked()
	s.mu.Unlock()

	if status == nil && len(batch) == 0 {
		return nil
	}

	run, err := s.saver.UpdateRun(ctx, runID, testrun.UpdateRequest{Status: status, Steps: batch})

	// A conflict with steps in the request means the run was locked by
	// someone else. The step edits are rejected for good; the status change
	// is still applied on its own.
	conflict := err != nil && len(batch) > 0 && errors.Is(err, apperr.ErrConflict)
	if conflict {
		log.Printf("autosave: test run %d was locked elsewhere, discarding %d step edit(s)", runID, len(batch))
		if status != nil {
			run, err = s.saver.UpdateRun(ctx, runID, testrun.UpdateRequest{Status: status})
		} else if fresh, getErr := s.saver.GetRun(ctx, runID); getErr == nil {
			run = fresh
		} else {
			log.Printf("autosave: reload test run %d: %v", runID, getErr)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil && !conflict {
		s.restoreLocked(batch)
		return err
	}
	if run != nil {
		s.run = cloneRun(run)
		if testrun.IsLocked(s.run.Status) {
			s.pending = make(map[uint]testrun.StepPatch)
			s.order = nil
		}
		// Edits made while the request was in flight stay visible.
		for _, id := range s.order {
			s.applyLocked(s.pending[id])
		}
	}
	return err
}

func (s *Session) takePendingLocked() []testrun.StepPatch {
	if len(s.order) == 0 {
		return nil
	}
	batch := make([]testrun.StepPatch, 0, len(s.order))
	for _, id := range s.order {
		batch = append(batch, s.pending[id])
	}
	s.pending = make(map[uint]testrun.StepPatch)
	s.order = nil
	return batch
}

// restoreLocked puts a failed batch back. Edits queued since then are newer
// and win field by field.
func (s *Session) restoreLocked(batch []testrun.StepPatch) {
	newer := s.pending
	newerOrder := s.order
	s.pending = make(map[uint]testrun.StepPatch, len(batch)+len(newer))
	s.order = nil
	for _, p := range batch {
		s.queueLocked(p)
	}
	for _, id := range newerOrder {
		s.queueLocked(newer[id])
	}
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) stepLocked(id uint) *models.TestRunStep {
	for i := range s.run.Steps {
		if s.run.Steps[i].ID == id {
			return &s.run.Steps[i]
		}
	}
	return nil
}

// applyLocked writes p into the local copy of its step.
func (s *Session) applyLocked(p testrun.StepPatch) {
	step := s.stepLocked(p.ID)
	if step == nil {
		return
	}
	if p.ActualResults != nil {
		step.ActualResults = *p.ActualResults
	}
	if p.ActualResultAttachments != nil {
		step.ActualResultAttachments = slices.Clone(*p.ActualResultAttachments)
	}
	if p.Checked != nil {
		step.Checked = *p.Checked
	}
	if p.StepStatus != nil {
		step.StepStatus = *p.StepStatus
	}
}

// merge copies the set fields of src into dst.
func merge(dst *testrun.StepPatch, src testrun.StepPatch) {
	if src.ActualResults != nil {
		v := *src.ActualResults
		dst.ActualResults = &v
	}
	if src.ActualResultAttachments != nil {
		v := models.NonNil(slices.Clone(*src.ActualResultAttachments))
		dst.ActualResultAttachments = &v
	}
	if src.Checked != nil {
		v := *src.Checked
		dst.Checked = &v
	}
	if src.StepStatus != nil {
		v := *src.StepStatus
		dst.StepStatus = &v
	}
}

func cloneRun(run *models.TestRun) *models.TestRun {
	c := *run
	c.Steps = make([]models.TestRunStep, len(run.Steps))
	for i, st := range run.Steps {
		st.Attachments = slices.Clone(st.Attachments)
		st.ActualResultAttachments = slices.Clone(st.ActualResultAttachments)
		c.Steps[i] = st
	}
	return &c
}
