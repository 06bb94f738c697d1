package history

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"quicknote/internal/api"
	"quicknote/internal/domain"
	"quicknote/internal/fakebackend"
)

type staticSession struct {
	state domain.Session
}

func (s staticSession) Snapshot() domain.Session {
	return s.state
}

var signedIn = staticSession{state: domain.Session{Identity: &domain.UserIdentity{ID: "a@b.c"}}}

func newBackend(t *testing.T) (*fakebackend.Backend, *api.Client) {
	t.Helper()
	backend := fakebackend.New()
	backend.AddUser("a@b.c", "pw")
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	if _, err := client.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return backend, client
}

func approve(domain.HistoryRecord, string) (bool, error) { return true, nil }

// TestLoadSortsNewestFirst verifies ordering is independent of server order.
func TestLoadSortsNewestFirst(t *testing.T) {
	backend, client := newBackend(t)
	backend.AddRecord(fakebackend.Record{ID: "t1", Owner: "a@b.c", Filename: "one.mp3", CreatedAt: "2024-01-01T10:00:00"})
	backend.AddRecord(fakebackend.Record{ID: "t3", Owner: "a@b.c", Filename: "three.mp3", CreatedAt: "2024-03-01T10:00:00Z"})
	backend.AddRecord(fakebackend.Record{ID: "t2", Owner: "a@b.c", Filename: "two.mp3", CreatedAt: "2024-02-01 10:00:00"})
	backend.AddRecord(fakebackend.Record{ID: "other", Owner: "z@z.z", CreatedAt: "2025-01-01T00:00:00"})

	c := NewController(client, signedIn, nil)
	records, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "t3" || ids[1] != "t2" || ids[2] != "t1" {
		t.Fatalf("order = %v, want [t3 t2 t1]", ids)
	}
}

// TestLoadWithoutSessionSkipsNetwork verifies the auth gate.
func TestLoadWithoutSessionSkipsNetwork(t *testing.T) {
	backend, client := newBackend(t)
	c := NewController(client, staticSession{}, nil)

	_, err := c.Load(context.Background())
	if domain.KindOf(err) != domain.KindAuthRequired {
		t.Fatalf("kind = %s, want auth_required", domain.KindOf(err))
	}
	if backend.Calls("GET /api/history") != 0 {
		t.Fatalf("history calls = %d, want 0", backend.Calls("GET /api/history"))
	}
}

// TestLoadFailureClearsList verifies a failed reload never shows a stale list.
func TestLoadFailureClearsList(t *testing.T) {
	backend, client := newBackend(t)
	backend.AddRecord(fakebackend.Record{Owner: "a@b.c", Filename: "a.mp3"})

	c := NewController(client, signedIn, nil)
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if len(c.Records()) != 1 {
		t.Fatalf("records = %d, want 1", len(c.Records()))
	}

	backend.HistoryStatus = 500
	_, err := c.Load(context.Background())
	if domain.KindOf(err) != domain.KindUnknown || domain.MessageOf(err) != "history unavailable" {
		t.Fatalf("error = %v", err)
	}
	if len(c.Records()) != 0 || c.Err() == nil {
		t.Fatalf("records = %+v err = %v, want cleared with error", c.Records(), c.Err())
	}
}

// TestLoadClassifiesUnauthorized verifies a 401 from an expired session.
func TestLoadClassifiesUnauthorized(t *testing.T) {
	_, client := newBackend(t)
	client.ClearCookies()

	_, err := NewController(client, signedIn, nil).Load(context.Background())
	if domain.KindOf(err) != domain.KindAuthRequired || domain.MessageOf(err) != msgAuthRequired {
		t.Fatalf("error = %v", err)
	}
}

// TestDeleteRemovesOnlyMatchingRecord verifies local removal after server success.
func TestDeleteRemovesOnlyMatchingRecord(t *testing.T) {
	backend, client := newBackend(t)
	for _, id := range []string{"a", "b", "c"} {
		backend.AddRecord(fakebackend.Record{ID: id, Owner: "a@b.c", Filename: id + ".mp3"})
	}
	c := NewController(client, signedIn, nil)
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	var prompt string
	err := c.Delete(context.Background(), "b", func(r domain.HistoryRecord, p string) (bool, error) {
		prompt = p
		return r.ID == "b", nil
	})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if prompt != `Are you sure you want to delete the transcription for "b.mp3"? This action cannot be undone.` {
		t.Fatalf("prompt = %q", prompt)
	}
	if backend.HasRecord("b") {
		t.Fatalf("server still has record b")
	}
	remaining := c.Records()
	if len(remaining) != 2 {
		t.Fatalf("remaining = %+v", remaining)
	}
	for _, r := range remaining {
		if r.ID == "b" {
			t.Fatalf("record b still listed")
		}
	}
}

// TestDeleteNotFoundLeavesList verifies a 404 changes nothing locally.
func TestDeleteNotFoundLeavesList(t *testing.T) {
	backend, client := newBackend(t)
	backend.AddRecord(fakebackend.Record{ID: "a", Owner: "a@b.c"})
	c := NewController(client, signedIn, nil)
	_, _ = c.Load(context.Background())

	err := c.Delete(context.Background(), "ghost", approve)
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("kind = %s, want not_found", domain.KindOf(err))
	}
	if domain.MessageOf(err) != "Delete failed: Transcription not found." {
		t.Fatalf("message = %q", domain.MessageOf(err))
	}
	if len(c.Records()) != 1 {
		t.Fatalf("records = %+v, want unchanged", c.Records())
	}
}

// TestDeleteForbidden verifies deleting another user's record.
func TestDeleteForbidden(t *testing.T) {
	backend, client := newBackend(t)
	backend.AddRecord(fakebackend.Record{ID: "x", Owner: "z@z.z"})

	err := NewController(client, signedIn, nil).Delete(context.Background(), "x", approve)
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("kind = %s, want forbidden", domain.KindOf(err))
	}
	if !backend.HasRecord("x") {
		t.Fatalf("record was deleted")
	}
}

// TestDeleteDeclinedMakesNoCall verifies confirmation precedes the request.
func TestDeleteDeclinedMakesNoCall(t *testing.T) {
	backend, client := newBackend(t)
	backend.AddRecord(fakebackend.Record{ID: "a", Owner: "a@b.c"})
	c := NewController(client, signedIn, nil)

	var prompt string
	err := c.Delete(context.Background(), "a", func(_ domain.HistoryRecord, p string) (bool, error) {
		prompt = p
		return false, nil
	})
	if !errors.Is(err, ErrDeleteCancelled) {
		t.Fatalf("error = %v, want %v", err, ErrDeleteCancelled)
	}
	if prompt != `Are you sure you want to delete the transcription for "this item"? This action cannot be undone.` {
		t.Fatalf("prompt = %q", prompt)
	}
	if err := c.Delete(context.Background(), "a", nil); !errors.Is(err, ErrDeleteCancelled) {
		t.Fatalf("nil confirm error = %v, want %v", err, ErrDeleteCancelled)
	}
	if backend.Calls("DELETE /api/transcription/:id") != 0 {
		t.Fatalf("delete calls = %d, want 0", backend.Calls("DELETE /api/transcription/:id"))
	}
	if !backend.HasRecord("a") {
		t.Fatal("expected record to survive")
	}
}

// TestSortNewestFirstKeepsUnparsedLast verifies stable ordering of unknown times.
func TestSortNewestFirstKeepsUnparsedLast(t *testing.T) {
	records := []domain.HistoryRecord{
		{ID: "bad1", Created: api.ParseCreatedAt("garbage")},
		{ID: "old", Created: api.ParseCreatedAt("2023-01-01")},
		{ID: "bad2"},
		{ID: "new", Created: api.ParseCreatedAt("2024-01-01T00:00:00Z")},
	}
	SortNewestFirst(records)

	want := []string{"new", "old", "bad1", "bad2"}
	for i, id := range want {
		if records[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, records[i].ID, id)
		}
	}
}

// TestDisplayName verifies the untitled fallback.
func TestDisplayName(t *testing.T) {
	if got := DisplayName(domain.HistoryRecord{}); got != UntitledName {
		t.Fatalf("DisplayName() = %q", got)
	}
	if got := DisplayName(domain.HistoryRecord{Filename: "a.wav"}); got != "a.wav" {
		t.Fatalf("DisplayName() = %q", got)
	}
}
