// Package api is the transport to the transcription backend. It returns raw
// status/body pairs; callers classify them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"golang.org/x/net/publicsuffix"
)

// AudioField is the multipart field carrying the uploaded audio.
const AudioField = "audio_file"

// Response is a completed HTTP exchange. Any status is a Response; only
// transport failures are returned as errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Client talks to the backend under the /api prefix with a cookie session.
type Client struct {
	base *url.URL
	http *http.Client
	log  logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets a client-wide timeout; zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithTransport replaces the round tripper, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https: %q", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		base: base,
		http: &http.Client{Jar: jar},
		log:  logger.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured server root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Cookies returns the session cookies held for the server.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

// SetCookies restores previously saved session cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.http.Jar.SetCookies(c.base, cookies)
}

// ClearCookies drops the local copy of the session cookie.
func (c *Client) ClearCookies() {
	current := c.http.Jar.Cookies(c.base)
	expired := make([]*http.Cookie, 0, len(current))
	for _, ck := range current {
		expired = append(expired, &http.Cookie{Name: ck.Name, Value: "", Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(c.base, expired)
}

// Login posts form-encoded credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*Response, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	return c.do(ctx, http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", "application/json")
}

// Register posts a JSON registration payload.
func (c *Client) Register(ctx context.Context, email, password string) (*Response, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/api/auth/register", bytes.NewReader(payload), "application/json", "application/json")
}

// Session probes the current session.
func (c *Client) Session(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/api/auth/session", nil, "", "application/json")
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, "", "")
}

// Transcribe uploads an audio file as multipart form data.
// The file is streamed; it is never fully buffered in memory.
func (c *Client) Transcribe(ctx context.Context, path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		fw, err := mw.CreateFormFile(AudioField, filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(fw, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	resp, err := c.do(ctx, http.MethodPost, "/api/transcribe", pr, mw.FormDataContentType(), "application/json")
	// Unblocks the writer goroutine when the server answered before reading the body.
	_ = pr.Close()
	return resp, err
}

// History lists the user's transcription records.
func (c *Client) History(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/api/history", nil, "", "application/json")
}

// Transcription fetches one record.
func (c *Client) Transcription(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/api/transcription/"+url.PathEscape(id), nil, "", "application/json")
}

// DeleteTranscription deletes one record.
func (c *Client) DeleteTranscription(ctx context.Context, id string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, "/api/transcription/"+url.PathEscape(id), nil, "", "application/json")
}

// Export downloads the summary of one record in the given format.
func (c *Client) Export(ctx context.Context, id, format, accept string) (*Response, error) {
	path := fmt.Sprintf("/api/transcription/%s/export/%s", url.PathEscape(id), url.PathEscape(format))
	return c.do(ctx, http.MethodGet, path, nil, "", accept)
}

// do executes one request and reads the whole body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType, accept string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug(fmt.Sprintf("api: %s %s [%s] transport error: %v", method, path, requestID, err))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	c.log.Debug(fmt.Sprintf("api: %s %s [%s] -> %d in %s", method, path, requestID, resp.StatusCode, time.Since(started).Truncate(time.Millisecond)))

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}
