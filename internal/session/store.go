// Package session owns the process-wide authentication state. Identity is
// written only by Refresh, Login and Logout; everything else reads snapshots.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/logger"
	"golang.org/x/sync/singleflight"

	"quicknote/internal/domain"
)

// Reader is the read-only view handed to guards and controllers.
type Reader interface {
	Snapshot() domain.Session
}

// Gateway is the auth surface the store drives.
type Gateway interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.UserIdentity, error)
	Register(ctx context.Context, reg domain.Registration) error
	Session(ctx context.Context) (*domain.UserIdentity, error)
	Logout(ctx context.Context) error
}

// Store holds identity and the loading flag.
type Store struct {
	gateway Gateway
	log     logger.Logger

	mu       sync.RWMutex
	state    domain.Session
	onChange []func(domain.Session)
	// gen advances on Login and Logout.
	gen uint64

	refresh singleflight.Group
}

// NewStore creates a store in the loading state. Call Refresh once at startup.
func NewStore(gateway Gateway, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Store{
		gateway: gateway,
		log:     log,
		state:   domain.Session{IsLoading: true},
	}
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnChange registers a listener called after every state change.
func (s *Store) OnChange(fn func(domain.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Refresh probes the server session. Concurrent callers share one request,
// which runs to completion even if the caller that started it gives up. Any
// failure clears identity; loading always ends. A probe that was overtaken by
// Login or Logout is discarded and the caller gets the current state.
func (s *Store) Refresh(ctx context.Context) domain.Session {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	probe := context.WithoutCancel(ctx)
	ch := s.refresh.DoChan(fmt.Sprintf("session-%d", gen), func() (any, error) {
		identity, err := s.gateway.Session(probe)
		switch {
		case err == nil:
			s.log.Debug("session: probe succeeded")
		case domain.KindOf(err) == domain.KindAuthRequired:
			s.log.Debug("session: no active session")
		default:
			s.log.Warning(fmt.Sprintf("session: probe failed: %v", err))
		}
		if err != nil {
			identity = nil
		}
		return s.commit(gen, domain.Session{Identity: identity}), nil
	})

	select {
	case res := <-ch:
		return res.Val.(domain.Session)
	case <-ctx.Done():
		return s.Snapshot()
	}
}

// Login authenticates and then refreshes from the session probe.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) (domain.Session, error) {
	if _, err := s.gateway.Login(ctx, creds); err != nil {
		return s.Snapshot(), err
	}
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	return s.Refresh(ctx), nil
}

// Register creates an account. It does not sign in.
func (s *Store) Register(ctx context.Context, reg domain.Registration) error {
	return s.gateway.Register(ctx, reg)
}

// Logout clears identity immediately and then notifies the backend.
// Backend failures are logged only.
func (s *Store) Logout(ctx context.Context) {
	s.advance(domain.Session{})
	if err := s.gateway.Logout(ctx); err != nil {
		s.log.Warning(fmt.Sprintf("session: backend logout failed: %v", err))
		return
	}
	s.log.Debug("session: backend logout succeeded")
}

// commit stores a probe result unless Login or Logout has started a newer
// generation since gen was read.
func (s *Store) commit(gen uint64, next domain.Session) domain.Session {
	s.mu.Lock()
	if gen != s.gen {
		current := s.state
		s.mu.Unlock()
		s.log.Debug("session: dropped probe result from before the last sign-in change")
		return current
	}
	return s.publishLocked(next)
}

// advance starts a new generation and stores next.
func (s *Store) advance(next domain.Session) domain.Session {
	s.mu.Lock()
	s.gen++
	return s.publishLocked(next)
}

// publishLocked stores next, releases mu and notifies listeners.
func (s *Store) publishLocked(next domain.Session) domain.Session {
	s.state = next
	listeners := slices.Clone(s.onChange)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}
