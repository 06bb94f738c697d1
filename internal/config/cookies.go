package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// CookieStore persists the backend session cookies between launches.
type CookieStore struct {
	path string
	now  func() time.Time
}

// NewCookieStore creates a JSON-backed cookie store.
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// Load returns unexpired cookies, or nil when none were saved.
func (s *CookieStore) Load() ([]*http.Cookie, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var saved []*http.Cookie
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if c == nil || c.Name == "" {
			continue
		}
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Save writes cookies with owner-only permissions. An empty slice clears the file.
func (s *CookieStore) Save(cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
