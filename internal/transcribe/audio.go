package transcribe

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

// AudioExtensions is the extension allow-list, lower case with the dot.
var AudioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".aac"}

// IsAudio reports whether a file is acceptable by declared media type or extension.
func IsAudio(name, mediaType string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "audio/") {
		return true
	}
	return lo.Contains(AudioExtensions, strings.ToLower(filepath.Ext(name)))
}

// DetectMediaType sniffs the media type of a local file.
func DetectMediaType(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mt.String(), nil
}
