package guard

import (
	"testing"

	"quicknote/internal/domain"
)

var (
	loading   = domain.Session{IsLoading: true}
	anonymous = domain.Session{}
	signedIn  = domain.Session{Identity: &domain.UserIdentity{ID: "1"}}
)

// TestEvaluate covers the redirect table for every audience and session state.
func TestEvaluate(t *testing.T) {
	tests := []struct {
		path    string
		session domain.Session
		want    Decision
	}{
		{path: "/history", session: loading, want: Decision{Wait: true}},
		{path: "/login", session: loading, want: Decision{Wait: true}},
		{path: "/", session: loading, want: Decision{Wait: true, Render: true}},
		{path: "/history", session: anonymous, want: Decision{Redirect: RouteLogin}},
		{path: "/transcribe", session: anonymous, want: Decision{Redirect: RouteLogin}},
		{path: "/result/42", session: anonymous, want: Decision{Redirect: RouteLogin}},
		{path: "/login", session: anonymous, want: Decision{Render: true}},
		{path: "/register", session: anonymous, want: Decision{Render: true}},
		{path: "/", session: anonymous, want: Decision{Render: true}},
		{path: "/login", session: signedIn, want: Decision{Redirect: Landing}},
		{path: "/register?registered=true", session: signedIn, want: Decision{Redirect: Landing}},
		{path: "/history/", session: signedIn, want: Decision{Render: true}},
		{path: "/result/42", session: signedIn, want: Decision{Render: true}},
	}

	for _, tt := range tests {
		if got := Evaluate(tt.path, tt.session); got != tt.want {
			t.Fatalf("Evaluate(%q, %+v) = %+v, want %+v", tt.path, tt.session, got, tt.want)
		}
	}
}

// TestAccessFor verifies route classification and normalization.
func TestAccessFor(t *testing.T) {
	tests := map[string]Access{
		"":            Public,
		"/":           Public,
		"about":       Public,
		"login":       AnonymousOnly,
		"/login/":     AnonymousOnly,
		"/transcribe": Protected,
		"/history#x":  Protected,
		"/result":     Protected,
		"/result/abc": Protected,
	}
	for path, want := range tests {
		if got := AccessFor(path); got != want {
			t.Fatalf("AccessFor(%q) = %v, want %v", path, got, want)
		}
	}
	if ResultRoute("7") != "/result/7" {
		t.Fatalf("ResultRoute() = %q", ResultRoute("7"))
	}
}
