package jobs

import (
	"testing"

	"quicknote/internal/domain"
)

// TestManagerLifecycle verifies normal progression to succeeded state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}
	if err := m.Start("job-2"); err != ErrJobAlreadyRunning {
		t.Fatalf("second start error = %v, want %v", err, ErrJobAlreadyRunning)
	}

	for _, status := range []domain.JobStatus{
		domain.JobStatusSubmitting,
		domain.JobStatusSucceeded,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.JobStatusSucceeded || current.ID != "job-1" {
		t.Fatalf("current = %+v, want job-1 succeeded", current)
	}
	if m.IsRunning() {
		t.Fatal("terminal job should not be running")
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Transition(domain.JobStatusSubmitting); err == nil {
		t.Fatal("expected error without active job")
	}
	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Transition(domain.JobStatusSucceeded); err == nil {
		t.Fatal("expected invalid transition error")
	}
}

// TestManagerRestartFromTerminal verifies a finished job can be resubmitted.
func TestManagerRestartFromTerminal(t *testing.T) {
	for _, terminal := range []domain.JobStatus{domain.JobStatusSucceeded, domain.JobStatusFailedHard, domain.JobStatusFailedSoft} {
		m := NewManager()
		_ = m.Start("job-1")
		_ = m.Transition(domain.JobStatusSubmitting)
		if err := m.Transition(terminal); err != nil {
			t.Fatalf("transition to %s: %v", terminal, err)
		}
		if err := m.Start("job-2"); err != nil {
			t.Fatalf("restart after %s: %v", terminal, err)
		}
		if m.Current().Status != domain.JobStatusValidating {
			t.Fatalf("status = %s, want validating", m.Current().Status)
		}
	}
}

// TestManagerDiscard verifies discard behavior and stale transitions.
func TestManagerDiscard(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = m.Transition(domain.JobStatusSubmitting)

	if err := m.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if m.Current().Status != domain.JobStatusIdle {
		t.Fatalf("status = %s, want idle", m.Current().Status)
	}
	if err := m.TransitionJob("job-1", domain.JobStatusSucceeded); err != ErrStaleJob {
		t.Fatalf("stale transition error = %v, want %v", err, ErrStaleJob)
	}

	if err := m.Discard(); err != ErrNoRunningJob {
		t.Fatalf("second discard error = %v, want %v", err, ErrNoRunningJob)
	}
}
