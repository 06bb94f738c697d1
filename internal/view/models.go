package view

import (
	"strings"
	"time"

	"quicknote/internal/domain"
	"quicknote/internal/guard"
	"quicknote/internal/history"
	"quicknote/internal/transcribe"
)

// Display copy for empty states.
const (
	NoTextTranscribed = "(No text transcribed)"
	InvalidSegment    = "(Invalid segment data)"
	NoSummary         = "No summary is available for this transcription."
	NoSegments        = "No transcribed segments were found in this result."
	DefaultTitle      = "Transcription Result"
)

// Message tones.
const (
	ToneInfo  = "info"
	ToneError = "error"
)

// SegmentRow is one rendered transcript line.
type SegmentRow struct {
	Speaker   string `json:"speaker"`
	Color     string `json:"color"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Text      string `json:"text"`
	Malformed bool   `json:"malformed,omitempty"`
}

// Segments renders segments in server order.
func Segments(segments []domain.Segment) []SegmentRow {
	rows := make([]SegmentRow, 0, len(segments))
	for _, seg := range segments {
		row := SegmentRow{
			Speaker: SpeakerLabel(seg.SpeakerID),
			Color:   SpeakerColor(seg.SpeakerID),
			Start:   FormatTime(seg.Start),
			End:     FormatTime(seg.End),
			Text:    strings.TrimSpace(seg.Text),
		}
		switch {
		case seg.Malformed:
			row.Text = InvalidSegment
			row.Malformed = true
		case row.Text == "":
			row.Text = NoTextTranscribed
		}
		rows = append(rows, row)
	}
	return rows
}

// Workflow is the transcribe screen model.
type Workflow struct {
	Status          domain.JobStatus `json:"status"`
	StatusLabel     string           `json:"statusLabel"`
	FileName        string           `json:"fileName,omitempty"`
	CanSubmit       bool             `json:"canSubmit"`
	Busy            bool             `json:"busy"`
	Message         string           `json:"message,omitempty"`
	Tone            string           `json:"tone,omitempty"`
	ShowHistoryLink bool             `json:"showHistoryLink"`
	Summary         string           `json:"summary,omitempty"`
	Segments        []SegmentRow     `json:"segments,omitempty"`
}

// NewWorkflow applies the panel rules: data renders only on success,
// soft failures link to history, hard failures show the message only.
func NewWorkflow(s transcribe.State) Workflow {
	w := Workflow{
		Status:          s.Status,
		StatusLabel:     StatusLabel(string(s.Status)),
		FileName:        s.FileName,
		CanSubmit:       s.CanSubmit(),
		Busy:            s.Busy(),
		Message:         s.Message,
		ShowHistoryLink: s.SuggestHistory(),
	}
	if w.Message != "" {
		w.Tone = ToneError
		if s.SuggestHistory() {
			w.Tone = ToneInfo
		}
	}
	if s.ShowSummary() {
		w.Summary = s.Summary
	}
	if s.ShowTranscript() {
		w.Segments = Segments(s.Segments)
	}
	return w
}

// HistoryRow is one line of the history list.
type HistoryRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"createdAt"`
	StatusLabel string `json:"statusLabel"`
	Route       string `json:"route"`
}

// History renders records in the order given.
func History(records []domain.HistoryRecord, loc *time.Location) []HistoryRow {
	rows := make([]HistoryRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, HistoryRow{
			ID:          r.ID,
			Name:        history.DisplayName(r),
			CreatedAt:   FormatCreatedAt(r, loc),
			StatusLabel: StatusLabel(r.Status),
			Route:       guard.ResultRoute(r.ID),
		})
	}
	return rows
}

// ExportAction is the state of one export button.
type ExportAction struct {
	Format  domain.ExportFormat `json:"format"`
	Label   string              `json:"label"`
	Enabled bool                `json:"enabled"`
	Busy    bool                `json:"busy"`
	Error   string              `json:"error,omitempty"`
}

// Result is the result screen model.
type Result struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	StatusLabel  string         `json:"statusLabel"`
	CreatedAt    string         `json:"createdAt"`
	Summary      string         `json:"summary,omitempty"`
	SummaryEmpty string         `json:"summaryEmpty,omitempty"`
	Segments     []SegmentRow   `json:"segments"`
	SegmentEmpty string         `json:"segmentEmpty,omitempty"`
	Exports      []ExportAction `json:"exports"`
}

// ExportState reports per-format export state for a loaded record.
type ExportState interface {
	CanExport(format domain.ExportFormat) bool
	Exporting(format domain.ExportFormat) bool
	ExportErr(format domain.ExportFormat) error
}

// NewResult renders a loaded record with its export actions.
func NewResult(d domain.TranscriptionDetail, exports ExportState, loc *time.Location) Result {
	r := Result{
		ID:          d.ID,
		Title:       strings.TrimSpace(d.Filename),
		StatusLabel: StatusLabel(d.Status),
		CreatedAt:   FormatCreatedAt(d.HistoryRecord, loc),
		Segments:    Segments(d.Segments),
	}
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	if strings.TrimSpace(d.SummaryText) != "" {
		r.Summary = d.SummaryText
	} else {
		r.SummaryEmpty = NoSummary
	}
	if len(r.Segments) == 0 {
		r.SegmentEmpty = NoSegments
	}

	for _, f := range domain.ExportFormats {
		action := ExportAction{Format: f, Label: "Export " + strings.ToUpper(string(f))}
		if exports != nil {
			action.Enabled = exports.CanExport(f)
			action.Busy = exports.Exporting(f)
			action.Error = domain.MessageOf(exports.ExportErr(f))
		}
		r.Exports = append(r.Exports, action)
	}
	return r
}
