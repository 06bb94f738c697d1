package result

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink stores downloaded export payloads.
type Sink interface {
	Save(name string, data []byte) (string, error)
}

// DirSink writes downloads into a directory without overwriting existing files.
type DirSink struct {
	Dir func() string
}

// NewDirSink creates a sink rooted at the directory returned by dir,
// re-evaluated on each save so setting changes apply.
func NewDirSink(dir func() string) *DirSink {
	return &DirSink{Dir: dir}
}

// Save writes data as name and returns the final path.
func (s *DirSink) Save(name string, data []byte) (string, error) {
	dir := strings.TrimSpace(s.Dir())
	if dir == "" {
		return "", errors.New("download directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "download"
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
}
