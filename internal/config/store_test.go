package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quicknote/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.ServerURL != DefaultServerURL {
		t.Fatalf("server url = %q, want %q", cfg.ServerURL, DefaultServerURL)
	}
	if cfg.DownloadDir == "" {
		t.Fatal("expected non-empty download dir")
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ServerURL != DefaultServerURL {
		t.Fatalf("server url = %q, want default", got.ServerURL)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		ServerURL:             "https://api.example.com",
		DownloadDir:           "/out",
		RequestTimeoutSeconds: 30,
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestNormalizeTrimsTrailingSlash keeps URL joins predictable.
func TestNormalizeTrimsTrailingSlash(t *testing.T) {
	got := Normalize(domain.Settings{ServerURL: " https://api.example.com/ ", RequestTimeoutSeconds: -5})
	if got.ServerURL != "https://api.example.com" {
		t.Fatalf("server url = %q", got.ServerURL)
	}
	if got.RequestTimeoutSeconds != 0 {
		t.Fatalf("timeout = %d, want 0", got.RequestTimeoutSeconds)
	}
	if got.DownloadDir == "" {
		t.Fatal("expected default download dir")
	}
}

// TestApplyEnvOverridesServer checks environment precedence over the file.
func TestApplyEnvOverridesServer(t *testing.T) {
	t.Setenv(EnvServerURL, "https://env.example.com/")
	t.Setenv(EnvDownloadDir, "/env/downloads")

	got := ApplyEnv(domain.Settings{ServerURL: "https://file.example.com"})
	if got.ServerURL != "https://env.example.com" {
		t.Fatalf("server url = %q", got.ServerURL)
	}
	if got.DownloadDir != "/env/downloads" {
		t.Fatalf("download dir = %q", got.DownloadDir)
	}
}

// TestLoadEnvFilesKeepsExistingValues checks .env loading does not clobber the shell.
func TestLoadEnvFilesKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("QUICKNOTE_SERVER=https://dotenv.example.com\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvServerURL, "https://shell.example.com")

	LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env"))
	if got := os.Getenv(EnvServerURL); got != "https://shell.example.com" {
		t.Fatalf("env = %q, want shell value", got)
	}
}

// TestCookieStoreRoundTripDropsExpired checks cookie persistence.
func TestCookieStoreRoundTripDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cookies.json")
	store := NewCookieStore(path)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	err := store.Save([]*http.Cookie{
		{Name: "session", Value: "abc"},
		{Name: "old", Value: "x", Expires: now.Add(-time.Hour)},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "session" || got[0].Value != "abc" {
		t.Fatalf("cookies = %+v", got)
	}

	if err := store.Save(nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected cookie file removed, stat err = %v", err)
	}
}
