package view

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a result as a markdown document for the terminal.
func RenderMarkdown(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "- ID: `%s`\n", r.ID)
	fmt.Fprintf(&b, "- Status: %s\n", r.StatusLabel)
	fmt.Fprintf(&b, "- Created: %s\n", r.CreatedAt)
	b.WriteString("\n## Summary\n\n")
	if r.Summary != "" {
		b.WriteString(strings.TrimSpace(r.Summary))
	} else {
		b.WriteString("_" + r.SummaryEmpty + "_")
	}
	b.WriteString("\n\n## Transcript\n\n")
	if len(r.Segments) == 0 {
		b.WriteString("_" + r.SegmentEmpty + "_\n")
		return b.String()
	}
	writeSegments(&b, r.Segments)
	return b.String()
}

// RenderWorkflow renders the transcribe outcome for the terminal.
func RenderWorkflow(w Workflow) string {
	var b strings.Builder
	if w.Message != "" {
		b.WriteString(w.Message + "\n\n")
	}
	if w.Summary != "" {
		b.WriteString("## Summary\n\n" + strings.TrimSpace(w.Summary) + "\n\n")
	}
	if len(w.Segments) > 0 {
		b.WriteString("## Transcript\n\n")
		writeSegments(&b, w.Segments)
	}
	return b.String()
}

func writeSegments(b *strings.Builder, rows []SegmentRow) {
	for _, s := range rows {
		if s.Malformed {
			fmt.Fprintf(b, "%s\n\n", s.Text)
			continue
		}
		fmt.Fprintf(b, "[%s-%s] %s: %s\n\n", s.Start, s.End, s.Speaker, s.Text)
	}
}
