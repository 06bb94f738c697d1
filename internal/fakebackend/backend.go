// Package fakebackend is an in-process implementation of the transcription
// backend contract, used by tests and local demos.
package fakebackend

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie is the name of the session cookie the fake backend issues.
const SessionCookie = "quicknote_session"

// Record is a stored transcription.
type Record struct {
	ID        string
	Owner     string
	Filename  string
	CreatedAt string
	Status    string
	Summary   *string
	Segments  []map[string]any
}

// Backend holds users, sessions and records. Exported knobs force statuses.
type Backend struct {
	// TranscribeStatus forces the upload response status when non-zero.
	TranscribeStatus int
	// TranscribeBody replaces the upload response body when non-empty.
	TranscribeBody string
	// HistoryStatus forces the history response status when non-zero.
	HistoryStatus int
	// LogoutStatus forces the logout response status when non-zero.
	LogoutStatus int
	// ExportWithoutFilename omits Content-Disposition from exports.
	ExportWithoutFilename bool
	// ExportDelay holds export responses to exercise in-flight guards.
	ExportDelay time.Duration

	mu       sync.Mutex
	users    map[string]string
	sessions map[string]string
	records  map[string]*Record
	order    []string
	calls    map[string]int
	nextID   int
}

// New creates an empty backend.
func New() *Backend {
	gin.SetMode(gin.TestMode)
	return &Backend{
		users:    make(map[string]string),
		sessions: make(map[string]string),
		records:  make(map[string]*Record),
		calls:    make(map[string]int),
	}
}

// AddUser registers an account directly.
func (b *Backend) AddUser(email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = password
}

// AddRecord stores a record and returns its id. Empty ids are assigned.
func (b *Backend) AddRecord(r Record) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addRecordLocked(r)
}

// HasRecord reports whether id is still stored.
func (b *Backend) HasRecord(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.records[id]
	return ok
}

// Calls returns how many times a route key ("POST /api/transcribe") was hit.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Handler returns the gin engine serving the /api routes.
func (b *Backend) Handler() http.Handler {
	r := gin.New()
	r.Use(b.countCalls())

	api := r.Group("/api")
	{
		api.POST("/auth/login", b.login)
		api.POST("/auth/register", b.register)
		api.GET("/auth/session", b.session)
		api.POST("/auth/logout", b.logout)
		api.POST("/transcribe", b.transcribe)
		api.GET("/history", b.history)
		api.GET("/transcription/:id", b.detail)
		api.DELETE("/transcription/:id", b.remove)
		api.GET("/transcription/:id/export/:format", b.export)
	}
	return r
}

func (b *Backend) countCalls() gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		b.calls[c.Request.Method+" "+c.FullPath()]++
		b.mu.Unlock()
		c.Next()
	}
}

func (b *Backend) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"loc": []string{"body", "username"}, "msg": "field required"}}})
		return
	}

	b.mu.Lock()
	want, ok := b.users[username]
	var token string
	if ok && want == password {
		token = uuid.NewString()
		b.sessions[token] = username
	}
	b.mu.Unlock()

	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "LOGIN_BAD_CREDENTIALS"})
		return
	}
	c.SetCookie(SessionCookie, token, 3600, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (b *Backend) register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"loc": []string{"body"}, "msg": "invalid body"}}})
		return
	}
	if !strings.Contains(req.Email, "@") {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"loc": []string{"body", "email"}, "msg": "value is not a valid email address"}}})
		return
	}
	if len(req.Password) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": gin.H{"code": "REGISTER_INVALID_PASSWORD", "reason": "Password should be at least 3 characters"}})
		return
	}

	b.mu.Lock()
	_, exists := b.users[req.Email]
	if !exists {
		b.users[req.Email] = req.Password
	}
	b.mu.Unlock()

	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "REGISTER_USER_ALREADY_EXISTS"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": uuid.NewString(), "email": req.Email})
}

func (b *Backend) session(c *gin.Context) {
	user, ok := b.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user, "email": user, "is_active": true})
}

func (b *Backend) logout(c *gin.Context) {
	if b.LogoutStatus != 0 {
		c.JSON(b.LogoutStatus, gin.H{"detail": "logout failed"})
		return
	}
	if token, err := c.Cookie(SessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, token)
		b.mu.Unlock()
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (b *Backend) transcribe(c *gin.Context) {
	user, ok := b.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
		return
	}
	if b.TranscribeStatus != 0 {
		if b.TranscribeBody != "" {
			c.Data(b.TranscribeStatus, "application/json", []byte(b.TranscribeBody))
			return
		}
		c.JSON(b.TranscribeStatus, gin.H{"detail": fmt.Sprintf("forced status %d", b.TranscribeStatus)})
		return
	}

	file, err := c.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "audio_file is required"})
		return
	}
	if b.TranscribeBody != "" {
		c.Data(http.StatusOK, "application/json", []byte(b.TranscribeBody))
		return
	}

	summary := "## Summary\n\nDiscussed " + file.Filename
	segments := []map[string]any{
		{"speaker_id": 0, "start_timestamp": 0.0, "end_timestamp": 2.5, "text_transcript": "Hello there."},
		{"speaker_id": 1, "start_timestamp": 2.5, "end_timestamp": 4.0, "text_transcript": "Hi."},
	}
	b.mu.Lock()
	b.addRecordLocked(Record{Owner: user, Filename: file.Filename, Status: "completed", Summary: &summary, Segments: segments})
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"transcriptions": segments, "summarized_text": summary})
}

func (b *Backend) history(c *gin.Context) {
	user, ok := b.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
		return
	}
	if b.HistoryStatus != 0 {
		c.JSON(b.HistoryStatus, gin.H{"detail": "history unavailable"})
		return
	}

	b.mu.Lock()
	items := make([]gin.H, 0, len(b.order))
	for _, id := range b.order {
		r := b.records[id]
		if r == nil || r.Owner != user {
			continue
		}
		items = append(items, gin.H{"id": r.ID, "filename": r.Filename, "created_at": r.CreatedAt, "status": r.Status})
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, items)
}

func (b *Backend) detail(c *gin.Context) {
	r, ok := b.ownedRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              r.ID,
		"filename":        r.Filename,
		"created_at":      r.CreatedAt,
		"status":          r.Status,
		"result":          gin.H{"transcriptions": r.Segments},
		"summarized_text": r.Summary,
	})
}

func (b *Backend) remove(c *gin.Context) {
	r, ok := b.ownedRecord(c)
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.records, r.ID)
	b.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (b *Backend) export(c *gin.Context) {
	r, ok := b.ownedRecord(c)
	if !ok {
		return
	}
	format := c.Param("format")
	if format != "pdf" && format != "docx" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unsupported format"})
		return
	}
	if r.Summary == nil || strings.TrimSpace(*r.Summary) == "" {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No summary available"})
		return
	}
	if b.ExportDelay > 0 {
		time.Sleep(b.ExportDelay)
	}

	if !b.ExportWithoutFilename {
		base := strings.TrimSuffix(r.Filename, "."+lastExt(r.Filename))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_summary.%s"`, base, format))
	}
	c.Data(http.StatusOK, "application/octet-stream", []byte(format+":"+*r.Summary))
}

// ownedRecord resolves :id for the session user, writing 401/403/404 itself.
func (b *Backend) ownedRecord(c *gin.Context) (*Record, bool) {
	user, ok := b.currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
		return nil, false
	}

	b.mu.Lock()
	r, found := b.records[c.Param("id")]
	b.mu.Unlock()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Transcription not found"})
		return nil, false
	}
	if r.Owner != user {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Not the owner"})
		return nil, false
	}
	return r, true
}

func (b *Backend) currentUser(c *gin.Context) (string, bool) {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.sessions[token]
	return user, ok
}

func (b *Backend) addRecordLocked(r Record) string {
	if r.ID == "" {
		b.nextID++
		r.ID = fmt.Sprintf("%d", b.nextID)
	}
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().UTC().Format("2006-01-02T15:04:05")
	}
	if r.Status == "" {
		r.Status = "completed"
	}
	stored := r
	b.records[r.ID] = &stored
	b.order = append(b.order, r.ID)
	return r.ID
}

func lastExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return ""
}
