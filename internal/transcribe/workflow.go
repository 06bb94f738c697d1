// Package transcribe drives one audio submission at a time: file selection,
// upload, and classification of the backend response.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"quicknote/internal/api"
	"quicknote/internal/domain"
	"quicknote/internal/jobs"
)

// ErrDiscarded is returned by Submit when the workflow was reset while the
// request was in flight. The response was not applied.
var ErrDiscarded = errors.New("submission discarded")

// Uploader sends an audio file to the backend.
type Uploader interface {
	Transcribe(ctx context.Context, path string) (*api.Response, error)
}

// State is a snapshot of the workflow for rendering.
type State struct {
	JobID      string           `json:"jobId,omitempty"`
	Status     domain.JobStatus `json:"status"`
	File       string           `json:"file,omitempty"`
	FileName   string           `json:"fileName,omitempty"`
	Segments   []domain.Segment `json:"segments,omitempty"`
	Summary    string           `json:"summary,omitempty"`
	Message    string           `json:"message,omitempty"`
	Kind       domain.ErrorKind `json:"kind,omitempty"`
	HTTPStatus int              `json:"httpStatus,omitempty"`
}

// Busy reports whether submit must be disabled.
func (s State) Busy() bool {
	return s.Status == domain.JobStatusValidating || s.Status == domain.JobStatusSubmitting
}

// CanSubmit reports whether a submission may start now.
func (s State) CanSubmit() bool {
	return s.File != "" && !s.Busy()
}

// ShowTranscript reports whether the transcript panel renders.
func (s State) ShowTranscript() bool {
	return s.Status == domain.JobStatusSucceeded && len(s.Segments) > 0
}

// ShowSummary reports whether the summary panel renders.
func (s State) ShowSummary() bool {
	return s.Status == domain.JobStatusSucceeded && strings.TrimSpace(s.Summary) != ""
}

// SuggestHistory reports whether the message should link to the history view.
func (s State) SuggestHistory() bool {
	return s.Status == domain.JobStatusFailedSoft
}

// Controller owns the workflow state machine.
type Controller struct {
	uploader Uploader
	manager  *jobs.Manager
	events   *jobs.EventBus
	log      logger.Logger

	detect func(path string) (string, error)
	stat   func(name string) (os.FileInfo, error)
	newID  func() string

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
}

// NewController creates an idle workflow.
func NewController(uploader Uploader, events *jobs.EventBus, log logger.Logger) *Controller {
	if events == nil {
		events = jobs.NewEventBus(0)
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Controller{
		uploader: uploader,
		manager:  jobs.NewManager(),
		events:   events,
		log:      log,
		detect:   DetectMediaType,
		stat:     os.Stat,
		newID:    uuid.NewString,
		state:    State{Status: domain.JobStatusIdle},
	}
}

// State returns a copy of the current workflow state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Events exposes the bus carrying workflow events.
func (c *Controller) Events() *jobs.EventBus {
	return c.events
}

// Select replaces the chosen file and returns the workflow to idle.
// Non-audio files are rejected and nothing is retained.
func (c *Controller) Select(path string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manager.IsRunning() {
		return c.state, jobs.ErrJobAlreadyRunning
	}
	c.manager.Reset()

	path = strings.TrimSpace(path)
	if path == "" {
		c.state = State{Status: domain.JobStatusIdle}
		return c.state, nil
	}

	var selErr *domain.Error
	mediaType, err := c.detect(path)
	switch {
	case err != nil:
		selErr = &domain.Error{Kind: domain.KindInputValidation, Message: MsgUnreadableFile, Err: err}
	case !IsAudio(path, mediaType):
		selErr = domain.NewError(domain.KindInvalidFileType, MsgInvalidFileType)
	}
	if selErr != nil {
		c.state = State{Status: domain.JobStatusIdle, Message: selErr.Message, Kind: selErr.Kind}
		return c.state, selErr
	}

	c.state = State{Status: domain.JobStatusIdle, File: path, FileName: filepath.Base(path)}
	c.log.Debug(fmt.Sprintf("transcribe: selected %s (%s)", c.state.FileName, mediaType))
	return c.state, nil
}

// Clear de-selects the file and returns to idle.
func (c *Controller) Clear() error {
	_, err := c.Select("")
	return err
}

// Reset discards any in-flight submission and clears all workflow state.
// A pending response is dropped when it arrives.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if err := c.manager.Discard(); err == nil {
		c.log.Info(fmt.Sprintf("transcribe: discarded job %s", c.state.JobID))
	}
	c.manager.Reset()
	c.state = State{Status: domain.JobStatusIdle}
}

// Submit uploads the selected file and blocks until it is classified.
// The returned error is the classified failure, if any.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	jobID, path, ctx, err := c.begin(ctx)
	if err != nil {
		return c.State(), err
	}

	if err := c.validate(jobID, path); err != nil {
		return c.State(), err
	}

	resp, transportErr := c.uploader.Transcribe(ctx, path)
	status, body := 0, []byte(nil)
	if resp != nil {
		status, body = resp.Status, resp.Body
	}
	outcome := Classify(status, body, transportErr)
	return c.finish(jobID, outcome)
}

// begin moves idle or terminal state to validating and clears stale results.
func (c *Controller) begin(parent context.Context) (string, string, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.File == "" {
		c.state.Message = MsgNoFile
		c.state.Kind = domain.KindNoFileSelected
		return "", "", nil, domain.NewError(domain.KindNoFileSelected, MsgNoFile)
	}

	jobID := c.newID()
	if err := c.manager.Start(jobID); err != nil {
		return "", "", nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.state = State{
		JobID:    jobID,
		Status:   domain.JobStatusValidating,
		File:     c.state.File,
		FileName: c.state.FileName,
	}
	c.publish(jobs.Event{Type: jobs.EventTypeStatus, Status: domain.JobStatusValidating, File: c.state.FileName})
	return jobID, c.state.File, ctx, nil
}

// validate re-checks the file right before upload.
func (c *Controller) validate(jobID, path string) error {
	_, statErr := c.stat(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if statErr != nil {
		if err := c.manager.TransitionJob(jobID, domain.JobStatusIdle); err != nil {
			return ErrDiscarded
		}
		c.releaseLocked()
		derr := &domain.Error{Kind: domain.KindInputValidation, Message: MsgUnreadableFile, Err: statErr}
		c.state.Status = domain.JobStatusIdle
		c.state.Message = derr.Message
		c.state.Kind = derr.Kind
		c.publish(jobs.Event{Type: jobs.EventTypeError, Status: domain.JobStatusIdle, Kind: derr.Kind, Message: derr.Message})
		return derr
	}

	if err := c.manager.TransitionJob(jobID, domain.JobStatusSubmitting); err != nil {
		return ErrDiscarded
	}
	c.state.Status = domain.JobStatusSubmitting
	c.publish(jobs.Event{Type: jobs.EventTypeStatus, Status: domain.JobStatusSubmitting, File: c.state.FileName})
	return nil
}

// finish applies the outcome unless the job was discarded meanwhile.
func (c *Controller) finish(jobID string, outcome Outcome) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.manager.TransitionJob(jobID, outcome.Status); err != nil {
		c.log.Debug(fmt.Sprintf("transcribe: dropping response for job %s: %v", jobID, err))
		return c.state, ErrDiscarded
	}
	c.releaseLocked()

	c.state.Status = outcome.Status
	c.state.Segments = outcome.Segments
	c.state.Summary = outcome.Summary
	c.state.Message = outcome.Message
	c.state.Kind = outcome.Kind
	c.state.HTTPStatus = outcome.HTTPStatus

	switch {
	case outcome.Kind == "":
		c.log.Info(fmt.Sprintf("transcribe: job %s succeeded with %d segments", jobID, len(outcome.Segments)))
		c.publish(jobs.Event{Type: jobs.EventTypeResult, Status: outcome.Status, Message: outcome.Message, Segments: len(outcome.Segments), HTTPCode: outcome.HTTPStatus})
	case outcome.Kind.Soft():
		c.log.Warning(fmt.Sprintf("transcribe: job %s soft failure (%d): %s", jobID, outcome.HTTPStatus, outcome.Detail))
		c.publish(jobs.Event{Type: jobs.EventTypeError, Status: outcome.Status, Kind: outcome.Kind, Message: outcome.Message, HTTPCode: outcome.HTTPStatus})
	default:
		c.log.Error(fmt.Sprintf("transcribe: job %s failed (%d): %s", jobID, outcome.HTTPStatus, outcome.Detail))
		c.publish(jobs.Event{Type: jobs.EventTypeError, Status: outcome.Status, Kind: outcome.Kind, Message: outcome.Message, HTTPCode: outcome.HTTPStatus})
	}
	return c.state, outcome.Err()
}

func (c *Controller) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// publish stamps the current job id; callers hold c.mu.
func (c *Controller) publish(event jobs.Event) {
	event.JobID = c.state.JobID
	c.events.Publish(event)
}
