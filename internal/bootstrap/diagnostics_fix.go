package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quicknote/internal/config"
	"quicknote/internal/diagnostics"
	"quicknote/internal/domain"
)

// InstallOrFixDiagnostic applies the remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.CheckServerURL:
		settings, settingsChanged = fixServerURL(settings)
	case diagnostics.CheckDownloadDir:
		settings, settingsChanged, fixErr = fixDownloadDir(settings)
	case diagnostics.CheckBackend:
		fixErr = fmt.Errorf("the backend at %s must be started outside the app", settings.ServerURL)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if _, saveErr := a.SaveSettings(settings); saveErr != nil {
			return a.GetDiagnostics(), fmt.Errorf("save settings after fix: %w", saveErr)
		}
		return a.GetDiagnostics(), fixErr
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	checker := a.checker
	a.mu.Unlock()

	// The backend probe does network I/O; run it outside the lock.
	var report domain.DiagnosticReport
	if checker != nil {
		report = checker.Run(settings)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if checker != nil {
		a.Diagnostics = report
	}
	return a.Diagnostics
}

// fixServerURL restores the default backend address.
func fixServerURL(settings domain.Settings) (domain.Settings, bool) {
	if settings.ServerURL == config.DefaultServerURL {
		return settings, false
	}
	settings.ServerURL = config.DefaultServerURL
	return settings, true
}

// fixDownloadDir creates the configured directory, falling back to the default.
func fixDownloadDir(settings domain.Settings) (domain.Settings, bool, error) {
	dir := strings.TrimSpace(settings.DownloadDir)
	if dir != "" {
		if err := ensureWritableDir(dir); err == nil {
			return settings, false, nil
		}
	}

	fallback := config.DefaultDownloadDir()
	if err := ensureWritableDir(fallback); err != nil {
		return settings, false, fmt.Errorf("create download directory %s: %w", fallback, err)
	}
	settings.DownloadDir = fallback
	return settings, filepath.Clean(dir) != filepath.Clean(fallback), nil
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".quicknote-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
