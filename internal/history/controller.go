// Package history lists and deletes the current user's past transcriptions.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"quicknote/internal/api"
	"quicknote/internal/domain"
	"quicknote/internal/session"
)

// ErrDeleteCancelled is returned when the user declines the confirmation.
var ErrDeleteCancelled = errors.New("delete cancelled")

const (
	msgAuthRequired   = "Authentication error. Please log in again."
	msgUnreachable    = "Could not connect to the server. Please try again later."
	msgInvalidHistory = "Received an invalid history response from the server."
	msgDeleteAuth     = "Authentication error."
	msgDeleteDenied   = "You don't have permission to delete this."
	msgDeleteNotFound = "Transcription not found."
	deletePrefix      = "Delete failed: "

	// UntitledName is shown for records without a filename.
	UntitledName = "Untitled Transcription"
)

// Backend is the subset of api.Client the controller uses.
type Backend interface {
	History(ctx context.Context) (*api.Response, error)
	DeleteTranscription(ctx context.Context, id string) (*api.Response, error)
}

// ConfirmFunc asks the user to approve deleting record. prompt names the file.
type ConfirmFunc func(record domain.HistoryRecord, prompt string) (bool, error)

// Controller holds the in-memory history list.
type Controller struct {
	backend Backend
	session session.Reader
	log     logger.Logger

	mu      sync.RWMutex
	records []domain.HistoryRecord
	err     error
	loads   uint64
}

// NewController creates an empty history list.
func NewController(backend Backend, sess session.Reader, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Controller{backend: backend, session: sess, log: log}
}

// Records returns a copy of the current list.
func (c *Controller) Records() []domain.HistoryRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.HistoryRecord(nil), c.records...)
}

// Err returns the error from the last load or delete, if any.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Load fetches the list and sorts it newest first. On failure the list is cleared.
func (c *Controller) Load(ctx context.Context) ([]domain.HistoryRecord, error) {
	c.mu.Lock()
	c.loads++
	load := c.loads
	c.mu.Unlock()

	if c.session != nil && !c.session.Snapshot().Authenticated() {
		return c.applyLoad(load, nil, domain.NewError(domain.KindAuthRequired, msgAuthRequired))
	}

	resp, err := c.backend.History(ctx)
	if err != nil {
		return c.applyLoad(load, nil, &domain.Error{Kind: domain.KindUnreachable, Message: msgUnreachable, Err: err})
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		return c.applyLoad(load, nil, &domain.Error{Kind: domain.KindAuthRequired, Message: msgAuthRequired, Status: resp.Status})
	case !resp.OK():
		message := api.ErrorDetail(resp.Body)
		if message == "" {
			message = fmt.Sprintf("Failed to fetch history (Status: %d)", resp.Status)
		}
		return c.applyLoad(load, nil, &domain.Error{Kind: domain.KindUnknown, Message: message, Status: resp.Status})
	}

	records, err := api.DecodeHistory(resp.Body)
	if err != nil {
		return c.applyLoad(load, nil, &domain.Error{Kind: domain.KindInvalidPayload, Message: msgInvalidHistory, Status: resp.Status, Err: err})
	}
	SortNewestFirst(records)
	return c.applyLoad(load, records, nil)
}

// applyLoad stores a load result unless a newer load has started.
func (c *Controller) applyLoad(load uint64, records []domain.HistoryRecord, err error) ([]domain.HistoryRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if load != c.loads {
		return append([]domain.HistoryRecord(nil), c.records...), err
	}
	if err != nil {
		c.log.Warning(fmt.Sprintf("history: load failed: %v", err))
	}
	c.records = records
	c.err = err
	return append([]domain.HistoryRecord(nil), records...), err
}

// Delete removes one record after confirmation. A nil confirm counts as a
// decline. Only a confirmed server delete changes the list, and then only the
// matching record.
func (c *Controller) Delete(ctx context.Context, id string, confirm ConfirmFunc) error {
	record, ok := c.find(id)
	if !ok {
		record = domain.HistoryRecord{ID: id}
	}

	if confirm == nil {
		return ErrDeleteCancelled
	}
	approved, err := confirm(record, ConfirmPrompt(record))
	if err != nil {
		return err
	}
	if !approved {
		return ErrDeleteCancelled
	}

	resp, err := c.backend.DeleteTranscription(ctx, id)
	if err != nil {
		return c.deleteFailed(&domain.Error{Kind: domain.KindUnreachable, Message: deletePrefix + msgUnreachable, Err: err})
	}
	if !resp.OK() {
		return c.deleteFailed(classifyDelete(resp))
	}

	c.mu.Lock()
	c.records = lo.Reject(c.records, func(r domain.HistoryRecord, _ int) bool { return r.ID == id })
	c.err = nil
	c.mu.Unlock()

	c.log.Info(fmt.Sprintf("history: deleted %s", id))
	return nil
}

func (c *Controller) deleteFailed(err *domain.Error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.log.Warning(fmt.Sprintf("history: %v", err))
	return err
}

func (c *Controller) find(id string) (domain.HistoryRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Find(c.records, func(r domain.HistoryRecord) bool { return r.ID == id })
}

func classifyDelete(resp *api.Response) *domain.Error {
	out := &domain.Error{Status: resp.Status}
	switch resp.Status {
	case http.StatusUnauthorized:
		out.Kind, out.Message = domain.KindAuthRequired, msgDeleteAuth
	case http.StatusForbidden:
		out.Kind, out.Message = domain.KindForbidden, msgDeleteDenied
	case http.StatusNotFound:
		out.Kind, out.Message = domain.KindNotFound, msgDeleteNotFound
	default:
		out.Kind = domain.KindUnknown
		out.Message = api.ErrorDetail(resp.Body)
		if out.Message == "" {
			out.Message = fmt.Sprintf("Failed to delete (Status: %d)", resp.Status)
		}
	}
	out.Message = deletePrefix + out.Message
	return out
}

// SortNewestFirst orders records by creation time, most recent first.
// Records with unparseable times keep their relative order at the end.
func SortNewestFirst(records []domain.HistoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Created, records[j].Created
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}

// DisplayName returns the filename or the untitled placeholder.
func DisplayName(r domain.HistoryRecord) string {
	if name := strings.TrimSpace(r.Filename); name != "" {
		return name
	}
	return UntitledName
}

// ConfirmPrompt is the confirmation text naming the record to delete.
func ConfirmPrompt(r domain.HistoryRecord) string {
	name := strings.TrimSpace(r.Filename)
	if name == "" {
		name = "this item"
	}
	return fmt.Sprintf("Are you sure you want to delete the transcription for %q? This action cannot be undone.", name)
}
