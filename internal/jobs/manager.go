package jobs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"quicknote/internal/domain"
)

var (
	// ErrJobAlreadyRunning is returned when starting a second active submission.
	ErrJobAlreadyRunning = errors.New("job already running")
	// ErrNoRunningJob is returned when discard is requested with nothing in flight.
	ErrNoRunningJob = errors.New("no running job")
	// ErrStaleJob is returned when a transition names a job that is no longer current.
	ErrStaleJob = errors.New("job is no longer current")
)

// Manager tracks the single allowed submission and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{current: domain.Job{Status: domain.JobStatusIdle}}
}

// Start creates a new job and moves it to validating state.
func (m *Manager) Start(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrJobAlreadyRunning
	}
	m.current = domain.Job{ID: jobID, Status: domain.JobStatusValidating}
	return nil
}

// Transition validates and applies state transitions for the current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(status)
}

// TransitionJob applies a transition only while jobID is still current.
// Responses for discarded jobs get ErrStaleJob and change nothing.
func (m *Manager) TransitionJob(jobID string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID != jobID {
		return ErrStaleJob
	}
	return m.transitionLocked(status)
}

func (m *Manager) transitionLocked(status domain.JobStatus) error {
	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears job metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Status: domain.JobStatusIdle}
}

// IsRunning reports whether a submission is validating or in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// Discard drops an active job so its eventual response is ignored.
func (m *Manager) Discard() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isRunning(m.current.Status) {
		return ErrNoRunningJob
	}
	m.current = domain.Job{Status: domain.JobStatusIdle}
	return nil
}

func isRunning(status domain.JobStatus) bool {
	return status == domain.JobStatusValidating || status == domain.JobStatusSubmitting
}

// transitions lists the allowed edges of the submission state machine.
var transitions = map[domain.JobStatus][]domain.JobStatus{
	domain.JobStatusIdle:       {domain.JobStatusValidating},
	domain.JobStatusValidating: {domain.JobStatusSubmitting, domain.JobStatusIdle},
	domain.JobStatusSubmitting: {domain.JobStatusSucceeded, domain.JobStatusFailedHard, domain.JobStatusFailedSoft},
	domain.JobStatusSucceeded:  {domain.JobStatusValidating, domain.JobStatusIdle},
	domain.JobStatusFailedHard: {domain.JobStatusValidating, domain.JobStatusIdle},
	domain.JobStatusFailedSoft: {domain.JobStatusValidating, domain.JobStatusIdle},
}

func isValidTransition(from, to domain.JobStatus) bool {
	return lo.Contains(transitions[from], to)
}
