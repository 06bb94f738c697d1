package config

import (
	"os"
	"path/filepath"

	"quicknote/internal/domain"
)

// DefaultServerURL is the backend used when nothing else is configured.
const DefaultServerURL = "http://localhost:8000"

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ServerURL:   DefaultServerURL,
		DownloadDir: DefaultDownloadDir(),
	}
}

// DefaultDownloadDir is where exported summaries land when unset.
func DefaultDownloadDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, "Downloads", "QuickNote")
}

// Dir returns the per-user state directory.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".quicknote"), nil
}
