package domain

import (
	"encoding/json"
	"time"
)

// JobStatus tracks the submission state of the single transcription job.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusValidating JobStatus = "validating"
	JobStatusSubmitting JobStatus = "submitting"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailedHard JobStatus = "failed_hard"
	JobStatusFailedSoft JobStatus = "failed_soft"
)

// Terminal reports whether the status is a classification outcome.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailedHard, JobStatusFailedSoft:
		return true
	default:
		return false
	}
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ServerURL             string `json:"serverUrl"`
	DownloadDir           string `json:"downloadDir"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds,omitempty"`
}

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

// UserIdentity is the opaque identity returned by the session probe.
// Email and ID are extracted for display when the backend provides them.
type UserIdentity struct {
	ID    string          `json:"id,omitempty"`
	Email string          `json:"email,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// Session is the process-wide authentication state.
type Session struct {
	Identity  *UserIdentity `json:"identity,omitempty"`
	IsLoading bool          `json:"isLoading"`
}

// Authenticated reports whether the probe finished with an identity.
func (s Session) Authenticated() bool {
	return !s.IsLoading && s.Identity != nil
}

// Credentials are submitted to the login endpoint.
type Credentials struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// Registration is submitted to the register endpoint.
type Registration struct {
	Email           string `validate:"required,email"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// Timestamp is a segment boundary normalized from the backend's number or string forms.
type Timestamp struct {
	Seconds float64 `json:"seconds"`
	Known   bool    `json:"known"`
	Raw     string  `json:"raw,omitempty"`
}

// Segment is one speaker-attributed span of transcript text.
type Segment struct {
	SpeakerID string    `json:"speakerId"`
	Start     Timestamp `json:"start"`
	End       Timestamp `json:"end"`
	Text      string    `json:"text"`
	Malformed bool      `json:"malformed,omitempty"`
}

// HistoryRecord is one summary row of the user's past transcriptions.
type HistoryRecord struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt string    `json:"createdAt"`
	Created   time.Time `json:"-"`
	Status    string    `json:"status"`
}

// TranscriptionDetail is a full transcription record.
type TranscriptionDetail struct {
	HistoryRecord
	Segments    []Segment `json:"segments"`
	SummaryText string    `json:"summaryText"`
}

// ExportFormat is a document format offered by the export endpoint.
type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportDOCX ExportFormat = "docx"
)

// ExportFormats lists formats in display order.
var ExportFormats = []ExportFormat{ExportPDF, ExportDOCX}

// MediaType returns the Accept header used when requesting the format.
func (f ExportFormat) MediaType() string {
	switch f {
	case ExportPDF:
		return "application/pdf"
	case ExportDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// Valid reports whether the format is supported by the backend.
func (f ExportFormat) Valid() bool {
	return f == ExportPDF || f == ExportDOCX
}
