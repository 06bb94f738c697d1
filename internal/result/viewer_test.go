package result

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quicknote/internal/api"
	"quicknote/internal/domain"
	"quicknote/internal/fakebackend"
)

func strPtr(s string) *string { return &s }

func newViewer(t *testing.T) (*fakebackend.Backend, *Viewer, string) {
	t.Helper()
	backend := fakebackend.New()
	backend.AddUser("a@b.c", "pw")
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	if _, err := client.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	dir := t.TempDir()
	return backend, NewViewer(client, NewDirSink(func() string { return dir }), nil), dir
}

// TestLoadDetail verifies segments and summary are decoded.
func TestLoadDetail(t *testing.T) {
	backend, v, _ := newViewer(t)
	id := backend.AddRecord(fakebackend.Record{
		Owner:    "a@b.c",
		Filename: "talk.mp3",
		Summary:  strPtr("A summary"),
		Segments: []map[string]any{{"speaker_id": 2, "start_time": 1.5, "end_time": 3, "transcript": "hey"}},
	})

	detail, err := v.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if detail.ID != id || detail.Filename != "talk.mp3" || detail.SummaryText != "A summary" {
		t.Fatalf("detail = %+v", detail)
	}
	if len(detail.Segments) != 1 || detail.Segments[0].Start.Seconds != 1.5 || detail.Segments[0].Text != "hey" {
		t.Fatalf("segments = %+v", detail.Segments)
	}
	if !v.CanExport(domain.ExportPDF) || !v.CanExport(domain.ExportDOCX) {
		t.Fatalf("export should be enabled with a summary")
	}
}

// TestLoadFailures verifies distinct kinds and messages per status.
func TestLoadFailures(t *testing.T) {
	backend, v, _ := newViewer(t)
	foreign := backend.AddRecord(fakebackend.Record{Owner: "z@z.z"})

	_, err := v.Load(context.Background(), foreign)
	if domain.KindOf(err) != domain.KindForbidden || domain.MessageOf(err) != msgViewDenied {
		t.Fatalf("forbidden error = %v", err)
	}

	_, err = v.Load(context.Background(), "missing")
	if domain.KindOf(err) != domain.KindNotFound || domain.MessageOf(err) != msgNotFound {
		t.Fatalf("not found error = %v", err)
	}
	if _, ok := v.Detail(); ok {
		t.Fatalf("detail should be cleared after failure")
	}

	_, err = v.Load(context.Background(), " ")
	if domain.KindOf(err) != domain.KindInputValidation {
		t.Fatalf("empty id kind = %s", domain.KindOf(err))
	}
}

type stubBackend struct {
	detail func() (*api.Response, error)
	export func(format, accept string) (*api.Response, error)
}

func (s *stubBackend) Transcription(context.Context, string) (*api.Response, error) {
	return s.detail()
}

func (s *stubBackend) Export(_ context.Context, _ string, format, accept string) (*api.Response, error) {
	return s.export(format, accept)
}

// TestLoadRejectsMalformedRecords verifies invalid payloads are not partially rendered.
func TestLoadRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing id", body: `{"filename":"a.mp3"}`, want: msgMissingRecordID},
		{name: "segments not array", body: `{"id":"1","result":{"transcriptions":{"a":1}}}`, want: msgBadSegments},
		{name: "result not object", body: `{"id":"1","result":[]}`, want: msgBadSegments},
		{name: "not json", body: `<html>`, want: msgInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubBackend{detail: func() (*api.Response, error) {
				return &api.Response{Status: 200, Body: []byte(tt.body)}, nil
			}}
			v := NewViewer(stub, NewDirSink(t.TempDir), nil)
			_, err := v.Load(context.Background(), "1")
			if domain.KindOf(err) != domain.KindInvalidPayload || domain.MessageOf(err) != tt.want {
				t.Fatalf("error = %v", err)
			}
			if _, ok := v.Detail(); ok {
				t.Fatalf("detail should not be stored")
			}
		})
	}
}

// TestExportDisabledWithoutSummary verifies the precondition even with segments present.
func TestExportDisabledWithoutSummary(t *testing.T) {
	backend, v, _ := newViewer(t)
	id := backend.AddRecord(fakebackend.Record{
		Owner:    "a@b.c",
		Summary:  strPtr("   "),
		Segments: []map[string]any{{"speaker_id": 0, "text_transcript": "words"}},
	})
	if _, err := v.Load(context.Background(), id); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.CanExport(domain.ExportPDF) {
		t.Fatalf("export enabled without summary")
	}

	_, err := v.Export(context.Background(), id, domain.ExportPDF)
	if domain.KindOf(err) != domain.KindNoSummary {
		t.Fatalf("kind = %s, want no_summary", domain.KindOf(err))
	}
	if backend.Calls("GET /api/transcription/:id/export/:format") != 0 {
		t.Fatalf("export request was sent")
	}
}

// TestExportSavesServerFilename verifies Content-Disposition naming and the saved bytes.
func TestExportSavesServerFilename(t *testing.T) {
	backend, v, dir := newViewer(t)
	id := backend.AddRecord(fakebackend.Record{Owner: "a@b.c", Filename: "talk.mp3", Summary: strPtr("S")})

	dl, err := v.Export(context.Background(), id, domain.ExportPDF)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if dl.Filename != "talk_summary.pdf" || dl.Fallback {
		t.Fatalf("download = %+v", dl)
	}
	data, err := os.ReadFile(filepath.Join(dir, "talk_summary.pdf"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "pdf:S" {
		t.Fatalf("content = %q", data)
	}

	second, err := v.Export(context.Background(), id, domain.ExportPDF)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if filepath.Base(second.Path) != "talk_summary (1).pdf" {
		t.Fatalf("second path = %s", second.Path)
	}
}

// TestExportFallbackFilename verifies the name when the server omits one.
func TestExportFallbackFilename(t *testing.T) {
	backend, v, _ := newViewer(t)
	backend.ExportWithoutFilename = true
	id := backend.AddRecord(fakebackend.Record{Owner: "a@b.c", Summary: strPtr("S")})

	dl, err := v.Export(context.Background(), id, domain.ExportDOCX)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if dl.Filename != "transcription_summary.docx" || !dl.Fallback {
		t.Fatalf("download = %+v", dl)
	}
	if got := FallbackFilename("call.wav", domain.ExportPDF); got != "call.wav_summary.pdf" {
		t.Fatalf("FallbackFilename() = %q", got)
	}
}

// TestExportSingleFlightPerFormat verifies duplicates are refused while the other format proceeds.
func TestExportSingleFlightPerFormat(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	var accepts sync.Map
	stub := &stubBackend{
		detail: func() (*api.Response, error) {
			return &api.Response{Status: 200, Body: []byte(`{"id":"1","filename":"a.mp3","summarized_text":"s"}`)}, nil
		},
		export: func(format, accept string) (*api.Response, error) {
			accepts.Store(format, accept)
			entered <- struct{}{}
			if format == "pdf" {
				<-release
			}
			return &api.Response{Status: 200, Body: []byte(format)}, nil
		},
	}
	v := NewViewer(stub, NewDirSink(t.TempDir), nil)
	if _, err := v.Load(context.Background(), "1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := v.Export(context.Background(), "1", domain.ExportPDF)
		done <- err
	}()
	<-entered

	if !v.Exporting(domain.ExportPDF) || v.CanExport(domain.ExportPDF) {
		t.Fatalf("pdf should be in flight")
	}
	if _, err := v.Export(context.Background(), "1", domain.ExportPDF); !errors.Is(err, ErrExportInProgress) {
		t.Fatalf("duplicate export error = %v, want %v", err, ErrExportInProgress)
	}
	if _, err := v.Export(context.Background(), "1", domain.ExportDOCX); err != nil {
		t.Fatalf("docx export error = %v", err)
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("pdf export error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pdf export did not finish")
	}

	if a, _ := accepts.Load("pdf"); a != "application/pdf" {
		t.Fatalf("pdf Accept = %v", a)
	}
	if a, _ := accepts.Load("docx"); a != domain.ExportDOCX.MediaType() {
		t.Fatalf("docx Accept = %v", a)
	}
}

// TestExportFailuresArePerFormat verifies one format's error does not block the other.
func TestExportFailuresArePerFormat(t *testing.T) {
	stub := &stubBackend{
		detail: func() (*api.Response, error) {
			return &api.Response{Status: 200, Body: []byte(`{"id":"1","summarized_text":"s"}`)}, nil
		},
		export: func(format, _ string) (*api.Response, error) {
			if format == "pdf" {
				return &api.Response{Status: 404, Body: []byte(`{"detail":"gone"}`)}, nil
			}
			return &api.Response{Status: 200, Body: []byte("ok")}, nil
		},
	}
	v := NewViewer(stub, NewDirSink(t.TempDir), nil)

	_, err := v.Export(context.Background(), "1", domain.ExportPDF)
	if domain.KindOf(err) != domain.KindNotFound || domain.MessageOf(err) != "PDF export failed: Transcription not found or no summary available." {
		t.Fatalf("pdf error = %v", err)
	}
	if v.ExportErr(domain.ExportPDF) == nil {
		t.Fatalf("pdf error not recorded")
	}
	if _, err := v.Export(context.Background(), "1", domain.ExportDOCX); err != nil {
		t.Fatalf("docx export error = %v", err)
	}
	if v.ExportErr(domain.ExportDOCX) != nil || !v.CanExport(domain.ExportPDF) {
		t.Fatalf("per-format state leaked")
	}
}

// TestExportRejectsUnknownFormat verifies format validation.
func TestExportRejectsUnknownFormat(t *testing.T) {
	v := NewViewer(&stubBackend{}, NewDirSink(t.TempDir), nil)
	if _, err := v.Export(context.Background(), "1", domain.ExportFormat("txt")); domain.KindOf(err) != domain.KindInputValidation {
		t.Fatalf("kind = %s, want input_validation", domain.KindOf(err))
	}
}
