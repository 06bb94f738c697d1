// Package guard decides redirects from the route and the session snapshot.
package guard

import (
	"strings"

	"quicknote/internal/domain"
)

// Routes known to the shell.
const (
	RouteHome       = "/"
	RouteLogin      = "/login"
	RouteRegister   = "/register"
	RouteTranscribe = "/transcribe"
	RouteHistory    = "/history"
	RouteResult     = "/result/"

	// Landing is where signed-in users are sent from anonymous-only routes.
	Landing = RouteTranscribe
)

// Access is the audience a route is meant for.
type Access int

const (
	Public Access = iota
	AnonymousOnly
	Protected
)

// Decision is the outcome of evaluating one route.
type Decision struct {
	// Wait is set while the session probe is still running; nothing renders.
	Wait     bool   `json:"wait"`
	Redirect string `json:"redirect,omitempty"`
	Render   bool   `json:"render"`
}

// AccessFor classifies a route path.
func AccessFor(path string) Access {
	path = normalize(path)
	switch {
	case path == RouteLogin || path == RouteRegister:
		return AnonymousOnly
	case path == RouteTranscribe || path == RouteHistory || strings.HasPrefix(path, RouteResult):
		return Protected
	default:
		return Public
	}
}

// Evaluate applies the redirect policy. Protected routes never render while
// loading, and redirects never fire until loading has finished.
func Evaluate(path string, s domain.Session) Decision {
	access := AccessFor(path)
	if s.IsLoading {
		return Decision{Wait: true, Render: access == Public}
	}

	switch {
	case access == Protected && s.Identity == nil:
		return Decision{Redirect: RouteLogin}
	case access == AnonymousOnly && s.Identity != nil:
		return Decision{Redirect: Landing}
	default:
		return Decision{Render: true}
	}
}

// ResultRoute builds the route of one transcription record.
func ResultRoute(id string) string {
	return RouteResult + id
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return RouteHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && path != RouteResult {
		path = strings.TrimRight(path, "/")
		if path == strings.TrimRight(RouteResult, "/") {
			return RouteResult
		}
	}
	return path
}
