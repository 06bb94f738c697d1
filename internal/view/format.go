// Package view turns workflow, history and result state into display models
// shared by the desktop shell and the CLI.
package view

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"quicknote/internal/domain"
)

// UnknownTime is shown for a missing or unparseable boundary.
const UnknownTime = "??:??"

// SpeakerPalette lists speaker colors in assignment order.
var SpeakerPalette = []string{"cyan", "pink", "lime", "yellow", "orange", "purple", "teal", "indigo"}

// FallbackColor is used for unknown speakers.
const FallbackColor = "gray"

var (
	digits    = regexp.MustCompile(`\d+`)
	titleCase = cases.Title(language.English)
)

// FormatTime renders a boundary as MM:SS.ss, or HH:MM:SS.ss past one hour.
// Both backend field spellings normalize to the same display.
func FormatTime(ts domain.Timestamp) string {
	if !ts.Known || ts.Seconds < 0 || math.IsNaN(ts.Seconds) || math.IsInf(ts.Seconds, 0) {
		return UnknownTime
	}
	centis := int64(math.Round(ts.Seconds * 100))
	h := centis / 360000
	m := (centis / 6000) % 60
	s := float64(centis%6000) / 100
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%05.2f", h, m, s)
	}
	return fmt.Sprintf("%02d:%05.2f", m, s)
}

// SpeakerLabel names a speaker for display.
func SpeakerLabel(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "UNKNOWN"
	}
	return "Speaker " + id
}

// SpeakerColorIndex returns a stable palette index for a speaker, or -1 for
// the fallback color. Ids containing digits use the first number.
func SpeakerColorIndex(id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	if m := digits.FindString(id); m != "" {
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return -1
		}
		return int(n % int64(len(SpeakerPalette)))
	}
	if strings.Contains(strings.ToLower(id), "unknown") {
		return -1
	}

	var hash int32
	for _, r := range id {
		hash = (hash << 5) - hash + int32(r)
	}
	n := int64(hash)
	if n < 0 {
		n = -n
	}
	return int(n % int64(len(SpeakerPalette)))
}

// SpeakerColor returns the palette color for a speaker.
func SpeakerColor(id string) string {
	if i := SpeakerColorIndex(id); i >= 0 {
		return SpeakerPalette[i]
	}
	return FallbackColor
}

// StatusLabel capitalizes a backend status, or "N/A" when empty.
func StatusLabel(status string) string {
	status = strings.TrimSpace(strings.ReplaceAll(status, "_", " "))
	if status == "" {
		return "N/A"
	}
	return titleCase.String(status)
}

// FormatCreatedAt renders a record time like "Jan 2, 2006, 3:04 PM" in loc.
// Unparseable values are shown as received.
func FormatCreatedAt(r domain.HistoryRecord, loc *time.Location) string {
	if r.Created.IsZero() {
		if r.CreatedAt == "" {
			return "N/A"
		}
		return r.CreatedAt
	}
	if loc == nil {
		loc = time.Local
	}
	return r.Created.In(loc).Format("Jan 2, 2006, 3:04 PM")
}
