package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"quicknote/internal/domain"
)

// Payload shape errors reported by the decoders.
var (
	ErrNotJSON          = errors.New("response body is not valid JSON")
	ErrMissingID        = errors.New("record is missing its id")
	ErrSegmentsNotArray = errors.New("transcriptions is not an array")
	ErrNotArray         = errors.New("response body is not an array")
	ErrNotObject        = errors.New("response body is not an object")
)

// Field-name variants used by the backend for the same segment values.
var (
	startKeys   = []string{"start_timestamp", "start_time"}
	endKeys     = []string{"end_timestamp", "end_time"}
	textKeys    = []string{"text_transcript", "transcript"}
	speakerKeys = []string{"speaker_id"}
)

// TranscribeResult is the normalized body of a successful upload.
type TranscribeResult struct {
	Segments    []domain.Segment
	Summary     string
	HasSegments bool
	HasSummary  bool
}

// DecodeTranscribeResult normalizes {transcriptions:[...], summarized_text?}.
// Fields with the wrong type are treated as absent, and so is a JSON body
// that is not an object. Only a body that is not JSON is an error.
func DecodeTranscribeResult(body []byte) (TranscribeResult, error) {
	obj, err := decodeObject(body)
	if errors.Is(err, ErrNotObject) {
		return TranscribeResult{}, nil
	}
	if err != nil {
		return TranscribeResult{}, err
	}

	var out TranscribeResult
	if raw, ok := obj["transcriptions"]; ok {
		if segments, err := DecodeSegments(raw); err == nil && segments != nil {
			out.Segments = segments
			out.HasSegments = true
		}
	}
	if raw, ok := obj["summarized_text"]; ok {
		var summary string
		if json.Unmarshal(raw, &summary) == nil {
			out.Summary = summary
			out.HasSummary = true
		}
	}
	return out, nil
}

// DecodeSegments maps a JSON array of backend segments to canonical segments.
// A null value yields nil; any other non-array yields ErrSegmentsNotArray.
func DecodeSegments(raw json.RawMessage) ([]domain.Segment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return nil, ErrSegmentsNotArray
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, ErrSegmentsNotArray
	}

	segments := make([]domain.Segment, 0, len(items))
	for _, item := range items {
		segments = append(segments, normalizeSegment(item))
	}
	return segments, nil
}

// normalizeSegment resolves field aliases into one canonical segment.
func normalizeSegment(raw json.RawMessage) domain.Segment {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.Segment{SpeakerID: "UNKNOWN", Malformed: true}
	}

	seg := domain.Segment{
		Start: parseTimestamp(firstPresent(fields, startKeys)),
		End:   parseTimestamp(firstPresent(fields, endKeys)),
	}
	if id, ok := scalarString(firstPresent(fields, speakerKeys)); ok {
		seg.SpeakerID = id
	}
	if text, ok := scalarString(firstPresent(fields, textKeys)); ok {
		seg.Text = text
	}
	return seg
}

// firstPresent returns the first non-null value among keys.
func firstPresent(fields map[string]json.RawMessage, keys []string) json.RawMessage {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || isNull(raw) {
			continue
		}
		return raw
	}
	return nil
}

// parseTimestamp accepts seconds as a number or numeric string, or clock
// strings like "01:02" and "00:01:02.5".
func parseTimestamp(raw json.RawMessage) domain.Timestamp {
	if len(raw) == 0 {
		return domain.Timestamp{}
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err == nil {
		return domain.Timestamp{Seconds: seconds, Known: true}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Timestamp{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Timestamp{}
	}
	if v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64); err == nil {
		return domain.Timestamp{Seconds: v, Known: true, Raw: s}
	}
	if v, ok := parseClock(s); ok {
		return domain.Timestamp{Seconds: v, Known: true, Raw: s}
	}
	return domain.Timestamp{Raw: s}
}

// parseClock parses [HH:]MM:SS[.fff] with "." or "," as decimal separator.
func parseClock(s string) (float64, bool) {
	parts := strings.Split(strings.ReplaceAll(s, ",", "."), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	total := 0.0
	for i, part := range parts {
		last := i == len(parts)-1
		var v float64
		var err error
		if last {
			v, err = strconv.ParseFloat(part, 64)
		} else {
			var n int
			n, err = strconv.Atoi(part)
			v = float64(n)
		}
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}

// DecodeIdentity reads the session probe body as an opaque identity.
func DecodeIdentity(body []byte) (domain.UserIdentity, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) || len(trimmed) == 0 {
		return domain.UserIdentity{}, ErrNotJSON
	}

	identity := domain.UserIdentity{Raw: append(json.RawMessage(nil), trimmed...)}
	var fields map[string]json.RawMessage
	if json.Unmarshal(trimmed, &fields) == nil {
		identity.ID, _ = scalarString(fields["id"])
		identity.Email, _ = scalarString(fields["email"])
		if identity.Email == "" {
			identity.Email, _ = scalarString(fields["username"])
		}
	}
	return identity, nil
}

// DecodeHistory reads the history array.
func DecodeHistory(body []byte) ([]domain.HistoryRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, ErrNotJSON
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, ErrNotArray
	}

	records := make([]domain.HistoryRecord, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		records = append(records, decodeRecord(fields))
	}
	return records, nil
}

// DecodeDetail reads one transcription record and validates its shape.
func DecodeDetail(body []byte) (domain.TranscriptionDetail, error) {
	obj, err := decodeObject(body)
	if err != nil {
		if errors.Is(err, ErrNotJSON) {
			return domain.TranscriptionDetail{}, err
		}
		return domain.TranscriptionDetail{}, ErrMissingID
	}

	detail := domain.TranscriptionDetail{HistoryRecord: decodeRecord(obj)}
	if detail.ID == "" {
		return domain.TranscriptionDetail{}, ErrMissingID
	}

	if raw, ok := obj["result"]; ok && !isNull(raw) {
		var result map[string]json.RawMessage
		if err := json.Unmarshal(raw, &result); err != nil {
			return domain.TranscriptionDetail{}, ErrSegmentsNotArray
		}
		segments, err := DecodeSegments(result["transcriptions"])
		if err != nil {
			return domain.TranscriptionDetail{}, err
		}
		detail.Segments = segments
	}
	if raw, ok := obj["summarized_text"]; ok {
		_ = json.Unmarshal(raw, &detail.SummaryText)
	}
	return detail, nil
}

// decodeRecord maps the summary row fields shared by history and detail.
func decodeRecord(fields map[string]json.RawMessage) domain.HistoryRecord {
	rec := domain.HistoryRecord{}
	rec.ID, _ = scalarString(fields["id"])
	rec.Filename, _ = scalarString(fields["filename"])
	rec.CreatedAt, _ = scalarString(fields["created_at"])
	rec.Status, _ = scalarString(fields["status"])
	rec.Created = ParseCreatedAt(rec.CreatedAt)
	return rec
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

// ParseCreatedAt parses backend timestamps; zone-less values are UTC.
// Unparseable values yield the zero time.
func ParseCreatedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ErrorDetail extracts the backend-supplied message from an error body.
// It understands {"detail": "..."}, {"detail": [{"msg": ...}]},
// {"detail": {"code": ..., "reason": ...}} and {"message": "..."}.
func ErrorDetail(body []byte) string {
	obj, err := decodeObject(body)
	if err != nil {
		return ""
	}

	if raw, ok := obj["detail"]; ok && !isNull(raw) {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			return list[0].Msg
		}
		var coded struct {
			Code   string `json:"code"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(raw, &coded) == nil {
			if coded.Reason != "" {
				return coded.Reason
			}
			return coded.Code
		}
	}
	if raw, ok := obj["message"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return ""
}

// ErrorCode returns the machine code from {"detail": "CODE"} or
// {"detail": {"code": "CODE"}}.
func ErrorCode(body []byte) string {
	obj, err := decodeObject(body)
	if err != nil {
		return ""
	}
	raw, ok := obj["detail"]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var coded struct {
		Code string `json:"code"`
	}
	if json.Unmarshal(raw, &coded) == nil {
		return coded.Code
	}
	return ""
}

// FieldErrors maps a 422 validation body to field -> message, keyed by the
// last element of each error's loc.
func FieldErrors(body []byte) map[string]string {
	var payload struct {
		Detail []struct {
			Loc []json.RawMessage `json:"loc"`
			Msg string            `json:"msg"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	fields := make(map[string]string, len(payload.Detail))
	for _, d := range payload.Detail {
		field := "_"
		if len(d.Loc) > 0 {
			if name, ok := scalarString(d.Loc[len(d.Loc)-1]); ok {
				field = name
			}
		}
		if _, exists := fields[field]; !exists {
			fields[field] = d.Msg
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

var quotedFilename = regexp.MustCompile(`filename="(.+)"`)

// AttachmentFilename returns the filename from Content-Disposition, or "".
func AttachmentFilename(h http.Header) string {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}
	if m := quotedFilename.FindStringSubmatch(cd); len(m) == 2 {
		return m[1]
	}
	return ""
}

// decodeObject decodes a JSON object body.
func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, ErrNotJSON
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return nil, ErrNotObject
	}
	return obj, nil
}

// scalarString renders a JSON string or number as a string.
func scalarString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || isNull(raw) {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String(), true
	}
	return "", false
}

// isNull reports a JSON null literal.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
