package transcribe

import (
	"fmt"
	"net/http"

	"quicknote/internal/api"
	"quicknote/internal/domain"
)

// User-facing submission messages.
const (
	MsgNoFile          = "No file selected."
	MsgInvalidFileType = "Invalid file type. Please select a common audio file (MP3, WAV, M4A, OGG, FLAC, AAC)."
	MsgUnreadableFile  = "Cannot read the selected file."
	MsgBadRequest      = "Bad request. Please check the input file."
	MsgAuthRequired    = "Authentication error. Please log in again."
	MsgFileTooLarge    = "File is too large. Please upload a smaller audio file."
	MsgProcessing      = "Audio processing may take a moment. Please check the history tab for updates."
	MsgGatewayTimeout  = "The server took too long to respond. Your file might still be processing. Please check the history page later for results."
	MsgUnreachable     = "Could not connect to the server. It might be busy or unavailable. Please check the history page later, as the process might have started."
	MsgNoData          = "Received successful response, but no valid transcription or summary data was found."
	MsgInvalidPayload  = "Received an invalid response from the server."
)

// Outcome is the terminal classification of one submission.
type Outcome struct {
	Status     domain.JobStatus
	Kind       domain.ErrorKind
	Message    string
	HTTPStatus int
	Segments   []domain.Segment
	Summary    string
	// Detail is the backend-supplied reason, kept for logs.
	Detail string
}

// Err returns the classified error, or nil for a success.
func (o Outcome) Err() error {
	if o.Kind == "" {
		return nil
	}
	return &domain.Error{Kind: o.Kind, Message: o.Message, Status: o.HTTPStatus}
}

// Classify maps an upload result to its terminal outcome. A non-nil
// transportErr means no response was received; status and body are ignored.
func Classify(status int, body []byte, transportErr error) Outcome {
	if transportErr != nil {
		return Outcome{
			Status:  domain.JobStatusFailedSoft,
			Kind:    domain.KindUnreachable,
			Message: MsgUnreachable,
			Detail:  transportErr.Error(),
		}
	}

	out := Outcome{HTTPStatus: status, Detail: api.ErrorDetail(body)}
	switch {
	case status >= 200 && status < 300:
		result, err := api.DecodeTranscribeResult(body)
		if err != nil {
			out.Status = domain.JobStatusFailedHard
			out.Kind = domain.KindInvalidPayload
			out.Message = MsgInvalidPayload
			out.Detail = err.Error()
			return out
		}
		out.Status = domain.JobStatusSucceeded
		out.Segments = result.Segments
		out.Summary = result.Summary
		if len(out.Segments) == 0 && out.Summary == "" {
			out.Message = MsgNoData
		}
		return out
	case status == http.StatusBadRequest:
		return hard(out, domain.KindBadRequest, MsgBadRequest)
	case status == http.StatusUnauthorized:
		return hard(out, domain.KindAuthRequired, MsgAuthRequired)
	case status == http.StatusRequestEntityTooLarge:
		return hard(out, domain.KindFileTooLarge, MsgFileTooLarge)
	case status == http.StatusInternalServerError:
		return soft(out, MsgProcessing)
	case status == http.StatusGatewayTimeout:
		return soft(out, MsgGatewayTimeout)
	case status > 500 && status < 600:
		return soft(out, fmt.Sprintf("The server encountered an error (%d). Please check the history page later for results.", status))
	default:
		message := out.Detail
		if message == "" {
			message = fmt.Sprintf("Request failed with status %d.", status)
		}
		return hard(out, domain.KindUnknown, message)
	}
}

func hard(out Outcome, kind domain.ErrorKind, message string) Outcome {
	out.Status = domain.JobStatusFailedHard
	out.Kind = kind
	out.Message = message
	return out
}

func soft(out Outcome, message string) Outcome {
	out.Status = domain.JobStatusFailedSoft
	out.Kind = domain.KindServerBusy
	out.Message = message
	return out
}
