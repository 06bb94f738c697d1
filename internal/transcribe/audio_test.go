package transcribe

import (
	"os"
	"path/filepath"
	"testing"
)

// TestIsAudio verifies media type prefix and extension allow-list.
func TestIsAudio(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		want      bool
	}{
		{name: "talk.MP3", want: true},
		{name: "a.wav", want: true},
		{name: "a.m4a", want: true},
		{name: "a.ogg", want: true},
		{name: "a.flac", want: true},
		{name: "a.aac", want: true},
		{name: "recording", mediaType: "audio/webm", want: true},
		{name: "notes.txt", mediaType: "text/plain; charset=utf-8", want: false},
		{name: "movie.mp4", mediaType: "video/mp4", want: false},
		{name: "noext", want: false},
	}

	for _, tt := range tests {
		if got := IsAudio(tt.name, tt.mediaType); got != tt.want {
			t.Fatalf("IsAudio(%q, %q) = %v, want %v", tt.name, tt.mediaType, got, tt.want)
		}
	}
}

// TestDetectMediaTypeSniffsContent verifies content sniffing ignores the extension.
func TestDetectMediaTypeSniffsContent(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "clip.bin")
	header := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	if err := os.WriteFile(wav, header, 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}

	mediaType, err := DetectMediaType(wav)
	if err != nil {
		t.Fatalf("DetectMediaType() error = %v", err)
	}
	if !IsAudio(wav, mediaType) {
		t.Fatalf("media type %q not accepted as audio", mediaType)
	}

	if _, err := DetectMediaType(filepath.Join(dir, "missing.wav")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
