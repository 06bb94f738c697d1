package diagnostics

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"quicknote/internal/api"
	"quicknote/internal/domain"
)

// Check identifiers.
const (
	CheckServerURL   = "server_url"
	CheckDownloadDir = "download_dir"
	CheckBackend     = "backend"
)

const probeTimeout = 5 * time.Second

// Checker validates settings and backend reachability.
type Checker struct {
	probe      func(ctx context.Context, serverURL string) (int, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS and network dependencies.
func NewChecker() *Checker {
	return &Checker{
		probe:      probeSession,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	urlItem := c.checkServerURL(settings.ServerURL)
	items := []domain.DiagnosticItem{
		urlItem,
		c.checkDownloadDir(settings.DownloadDir),
		c.checkBackend(settings.ServerURL, urlItem.Status == domain.DiagnosticStatusPass),
	}

	return domain.NewDiagnosticReport(items, time.Now())
}

// checkServerURL requires an absolute http or https URL.
func (c *Checker) checkServerURL(raw string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:      CheckServerURL,
		Name:    "Server URL",
		Fixable: true,
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Server URL is empty."
		item.Hint = "Set the address of the transcription server, for example http://localhost:8000."
		return item
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Server URL is not a valid http(s) address: %s", raw)
		item.Hint = "Use a full address including the scheme, or reset it to the default."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", raw)
	return item
}

// checkDownloadDir validates download directory existence and write access.
func (c *Checker) checkDownloadDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:      CheckDownloadDir,
		Name:    "Download directory",
		Fixable: true,
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Download directory is empty."
		item.Hint = "Set a directory where exported summaries can be saved."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create download directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Download directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory for exports."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkBackend performs one session probe. Any HTTP status counts as reachable.
func (c *Checker) checkBackend(serverURL string, urlValid bool) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   CheckBackend,
		Name: "Backend",
	}
	if !urlValid {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Skipped: server URL is invalid."
		item.Hint = "Fix the server URL first."
		return item
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	status, err := c.probe(ctx, serverURL)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot reach %s: %v", serverURL, err)
		item.Hint = "Start the transcription server or check the address and your network."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Reachable (session probe returned %d)", status)
	return item
}

func probeSession(ctx context.Context, serverURL string) (int, error) {
	client, err := api.New(serverURL, api.WithTimeout(probeTimeout))
	if err != nil {
		return 0, err
	}
	resp, err := client.Session(ctx)
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	probe func(ctx context.Context, serverURL string) (int, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		probe:      probe,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
