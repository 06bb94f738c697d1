package diagnostics

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"quicknote/internal/domain"
	"quicknote/internal/fakebackend"
)

func reachable(context.Context, string) (int, error) { return 401, nil }

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(reachable, os.MkdirAll, os.CreateTemp, os.Remove)

	report := checker.Run(domain.Settings{
		ServerURL:   "http://localhost:8000",
		DownloadDir: filepath.Join(root, "downloads"),
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if _, err := os.Stat(filepath.Join(root, "downloads")); err != nil {
		t.Fatalf("download dir not created: %v", err)
	}
}

// TestCheckerRunInvalidSettings validates failure reporting.
func TestCheckerRunInvalidSettings(t *testing.T) {
	probed := false
	checker := NewCheckerForTests(
		func(context.Context, string) (int, error) { probed = true; return 200, nil },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		ServerURL:   "localhost:8000",
		DownloadDir: "",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	assertStatusByID(t, report, CheckServerURL, domain.DiagnosticStatusFail)
	assertStatusByID(t, report, CheckDownloadDir, domain.DiagnosticStatusFail)
	assertStatusByID(t, report, CheckBackend, domain.DiagnosticStatusFail)
	if probed {
		t.Fatal("backend should not be probed with an invalid URL")
	}
}

// TestCheckerRunUnreachableBackend validates transport failures.
func TestCheckerRunUnreachableBackend(t *testing.T) {
	checker := NewCheckerForTests(
		func(context.Context, string) (int, error) { return 0, errors.New("connection refused") },
		os.MkdirAll,
		os.CreateTemp,
		os.Remove,
	)
	report := checker.Run(domain.Settings{ServerURL: "http://127.0.0.1:1", DownloadDir: t.TempDir()})

	assertStatusByID(t, report, CheckServerURL, domain.DiagnosticStatusPass)
	assertStatusByID(t, report, CheckBackend, domain.DiagnosticStatusFail)
}

// TestCheckerRunUnwritableDir validates write checks.
func TestCheckerRunUnwritableDir(t *testing.T) {
	checker := NewCheckerForTests(
		reachable,
		os.MkdirAll,
		func(string, string) (*os.File, error) { return nil, os.ErrPermission },
		os.Remove,
	)
	report := checker.Run(domain.Settings{ServerURL: "https://notes.example.com", DownloadDir: t.TempDir()})

	assertStatusByID(t, report, CheckDownloadDir, domain.DiagnosticStatusFail)
}

// TestProbeSessionAgainstBackend validates the real probe counts 401 as reachable.
func TestProbeSessionAgainstBackend(t *testing.T) {
	srv := httptest.NewServer(fakebackend.New().Handler())
	defer srv.Close()

	status, err := probeSession(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("probeSession() error = %v", err)
	}
	if status != 401 {
		t.Fatalf("status = %d, want 401", status)
	}
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
