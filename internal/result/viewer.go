// Package result loads one transcription record and exports its summary.
package result

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/logger"

	"quicknote/internal/api"
	"quicknote/internal/domain"
)

// ErrExportInProgress is returned when the same format is already exporting.
var ErrExportInProgress = errors.New("export already in progress")

const (
	msgMissingID       = "No transcription ID provided."
	msgUnreachable     = "Could not connect to the server. Please try again later."
	msgAuthFailed      = "Authentication failed. Please log in."
	msgViewDenied      = "Access denied. You don't have permission to view this."
	msgExportDenied    = "Access denied. You don't have permission to export this."
	msgNotFound        = "Transcription not found."
	msgInvalidFormat   = "Invalid data format received from server."
	msgMissingRecordID = "Invalid data format received from server (missing ID)."
	msgBadSegments     = "Invalid transcription segment data received."
	msgNoSummary       = "Cannot export: No summary available for this transcription."
)

// Backend is the subset of api.Client the viewer uses.
type Backend interface {
	Transcription(ctx context.Context, id string) (*api.Response, error)
	Export(ctx context.Context, id, format, accept string) (*api.Response, error)
}

// Download describes a saved export.
type Download struct {
	Format   domain.ExportFormat `json:"format"`
	Filename string              `json:"filename"`
	Path     string              `json:"path"`
	Size     int                 `json:"size"`
	Fallback bool                `json:"fallback"`
}

// Viewer holds the loaded record and per-format export state.
type Viewer struct {
	backend Backend
	sink    Sink
	log     logger.Logger

	mu        sync.Mutex
	detail    *domain.TranscriptionDetail
	loadErr   error
	loads     uint64
	exporting map[domain.ExportFormat]bool
	exportErr map[domain.ExportFormat]error
}

// NewViewer creates a viewer that saves exports through sink.
func NewViewer(backend Backend, sink Sink, log logger.Logger) *Viewer {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Viewer{
		backend:   backend,
		sink:      sink,
		log:       log,
		exporting: make(map[domain.ExportFormat]bool),
		exportErr: make(map[domain.ExportFormat]error),
	}
}

// Load fetches one record. Malformed records are rejected, never partially shown.
func (v *Viewer) Load(ctx context.Context, id string) (domain.TranscriptionDetail, error) {
	v.mu.Lock()
	v.loads++
	load := v.loads
	v.detail = nil
	v.loadErr = nil
	v.exportErr = make(map[domain.ExportFormat]error)
	v.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return v.applyLoad(load, nil, domain.NewError(domain.KindInputValidation, msgMissingID))
	}

	resp, err := v.backend.Transcription(ctx, id)
	if err != nil {
		return v.applyLoad(load, nil, &domain.Error{Kind: domain.KindUnreachable, Message: msgUnreachable, Err: err})
	}
	if !resp.OK() {
		return v.applyLoad(load, nil, classifyLoad(resp))
	}

	detail, err := api.DecodeDetail(resp.Body)
	if err != nil {
		message := msgInvalidFormat
		switch {
		case errors.Is(err, api.ErrMissingID):
			message = msgMissingRecordID
		case errors.Is(err, api.ErrSegmentsNotArray):
			message = msgBadSegments
		}
		return v.applyLoad(load, nil, &domain.Error{Kind: domain.KindInvalidPayload, Message: message, Status: resp.Status, Err: err})
	}
	return v.applyLoad(load, &detail, nil)
}

func (v *Viewer) applyLoad(load uint64, detail *domain.TranscriptionDetail, err error) (domain.TranscriptionDetail, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if load == v.loads {
		v.detail = detail
		v.loadErr = err
	}
	if err != nil {
		v.log.Warning(fmt.Sprintf("result: load failed: %v", err))
		return domain.TranscriptionDetail{}, err
	}
	return *detail, nil
}

// Detail returns the loaded record, if any.
func (v *Viewer) Detail() (domain.TranscriptionDetail, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.detail == nil {
		return domain.TranscriptionDetail{}, false
	}
	return *v.detail, true
}

// LoadErr returns the error of the last load.
func (v *Viewer) LoadErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadErr
}

// CanExport reports whether the export action for format is enabled.
func (v *Viewer) CanExport(format domain.ExportFormat) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return format.Valid() && v.hasSummaryLocked() && !v.exporting[format]
}

// Exporting reports whether format has a request in flight.
func (v *Viewer) Exporting(format domain.ExportFormat) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exporting[format]
}

// ExportErr returns the last failure for format.
func (v *Viewer) ExportErr(format domain.ExportFormat) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exportErr[format]
}

// Export downloads the summary of record id as format and saves it.
// The record is loaded first when it is not the current one.
func (v *Viewer) Export(ctx context.Context, id string, format domain.ExportFormat) (Download, error) {
	if !format.Valid() {
		return Download{}, domain.NewError(domain.KindInputValidation, fmt.Sprintf("Unsupported export format: %s", format))
	}

	if current, ok := v.Detail(); !ok || current.ID != id {
		if _, err := v.Load(ctx, id); err != nil {
			return Download{}, err
		}
	}

	detail, err := v.beginExport(format)
	if err != nil {
		return Download{}, err
	}
	dl, err := v.export(ctx, detail, format)
	v.endExport(format, err)
	return dl, err
}

func (v *Viewer) beginExport(format domain.ExportFormat) (domain.TranscriptionDetail, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.hasSummaryLocked() {
		err := domain.NewError(domain.KindNoSummary, msgNoSummary)
		v.exportErr[format] = err
		return domain.TranscriptionDetail{}, err
	}
	if v.exporting[format] {
		return domain.TranscriptionDetail{}, ErrExportInProgress
	}
	v.exporting[format] = true
	v.exportErr[format] = nil
	return *v.detail, nil
}

func (v *Viewer) endExport(format domain.ExportFormat, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exporting[format] = false
	v.exportErr[format] = err
}

func (v *Viewer) export(ctx context.Context, detail domain.TranscriptionDetail, format domain.ExportFormat) (Download, error) {
	resp, err := v.backend.Export(ctx, detail.ID, string(format), format.MediaType())
	if err != nil {
		return Download{}, &domain.Error{Kind: domain.KindUnreachable, Message: msgUnreachable, Err: err}
	}
	if !resp.OK() {
		derr := classifyExport(resp, format)
		v.log.Warning(fmt.Sprintf("result: export %s of %s failed: %v", format, detail.ID, derr))
		return Download{}, derr
	}

	dl := Download{Format: format, Size: len(resp.Body)}
	dl.Filename = api.AttachmentFilename(resp.Header)
	if dl.Filename == "" {
		dl.Filename = FallbackFilename(detail.Filename, format)
		dl.Fallback = true
		v.log.Warning(fmt.Sprintf("result: export %s has no Content-Disposition filename, using %s", format, dl.Filename))
	}

	path, err := v.sink.Save(dl.Filename, resp.Body)
	if err != nil {
		return Download{}, &domain.Error{Kind: domain.KindUnknown, Message: fmt.Sprintf("Could not save %s: %v", dl.Filename, err), Err: err}
	}
	dl.Path = path
	v.log.Info(fmt.Sprintf("result: saved %s export to %s", format, path))
	return dl, nil
}

func (v *Viewer) hasSummaryLocked() bool {
	return v.detail != nil && strings.TrimSpace(v.detail.SummaryText) != ""
}

// FallbackFilename is used when the server does not name the download.
func FallbackFilename(recordFilename string, format domain.ExportFormat) string {
	base := strings.TrimSpace(recordFilename)
	if base == "" {
		base = "transcription"
	}
	return fmt.Sprintf("%s_summary.%s", base, format)
}

func classifyLoad(resp *api.Response) *domain.Error {
	out := &domain.Error{Status: resp.Status}
	switch resp.Status {
	case http.StatusUnauthorized:
		out.Kind, out.Message = domain.KindAuthRequired, msgAuthFailed
	case http.StatusForbidden:
		out.Kind, out.Message = domain.KindForbidden, msgViewDenied
	case http.StatusNotFound:
		out.Kind, out.Message = domain.KindNotFound, msgNotFound
	default:
		out.Kind = domain.KindUnknown
		out.Message = api.ErrorDetail(resp.Body)
		if out.Message == "" {
			out.Message = fmt.Sprintf("Error fetching data (Status: %d)", resp.Status)
		}
	}
	return out
}

func classifyExport(resp *api.Response, format domain.ExportFormat) *domain.Error {
	label := strings.ToUpper(string(format))
	out := &domain.Error{Status: resp.Status}
	switch resp.Status {
	case http.StatusUnauthorized:
		out.Kind, out.Message = domain.KindAuthRequired, msgAuthFailed
	case http.StatusForbidden:
		out.Kind, out.Message = domain.KindForbidden, msgExportDenied
	case http.StatusNotFound:
		out.Kind = domain.KindNotFound
		out.Message = fmt.Sprintf("%s export failed: Transcription not found or no summary available.", label)
	default:
		out.Kind = domain.KindUnknown
		out.Message = api.ErrorDetail(resp.Body)
		if out.Message == "" {
			out.Message = fmt.Sprintf("Error exporting as %s (Status: %d)", label, resp.Status)
		}
	}
	return out
}
