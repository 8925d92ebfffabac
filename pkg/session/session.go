// Package session gates access to the management surface.
//
// A Session is an explicit client-local value (authenticated flag plus
// username) kept in a pluggable Store, with a subscription channel replacing
// ad hoc storage/focus event listeners. The guard never caches: every
// IsAuthenticated call re-reads the store, so a session established or torn
// down elsewhere is honored on the next check.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Gimmick12-DYY/ADRD-KG/pkg/apiclient"
)

// ErrBackendUnavailable is returned when the auth exchange cannot complete
// at all. Callers show it as-is; it deliberately carries no protocol detail.
var ErrBackendUnavailable = errors.New("cannot reach the backend; check that the server is running")

// Session is the client-local record of a completed login. Username is only
// meaningful while Authenticated is true.
type Session struct {
	Authenticated bool
	Username      string
}

// Store persists a Session between runs. Load must treat absent or
// malformed state as a zero Session, never as an error worth surfacing.
type Store interface {
	Load() Session
	Save(Session) error
	Clear() error
}

// Authenticator performs the credential exchange with the backend.
// *apiclient.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*apiclient.LoginResponse, error)
	Logout(ctx context.Context) error
}

// Guard decides whether protected content is reachable.
type Guard struct {
	store Store
	auth  Authenticator

	mu       sync.Mutex
	subs     []chan Session
	lastSeen Session
}

func NewGuard(store Store, auth Authenticator) *Guard {
	return &Guard{store: store, auth: auth, lastSeen: store.Load()}
}

// Current re-reads the persisted session.
func (g *Guard) Current() Session {
	return g.store.Load()
}

// IsAuthenticated reports whether a valid session is persisted. No network
// call is made; local state is trusted until a mutation clears it.
func (g *Guard) IsAuthenticated() bool {
	return g.Current().Authenticated
}

// Username returns the logged-in identity, or "" when unauthenticated.
func (g *Guard) Username() string {
	s := g.Current()
	if !s.Authenticated {
		return ""
	}
	return s.Username
}

// Login authenticates against the backend and persists the session on
// success. A rejected credential returns the server's message and persists
// nothing; connectivity and protocol failures come back as
// ErrBackendUnavailable.
func (g *Guard) Login(ctx context.Context, username, password string) error {
	resp, err := g.auth.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("%w", ErrBackendUnavailable)
	}
	if !resp.Success {
		return &DeniedError{Message: resp.Message}
	}
	s := Session{Authenticated: true, Username: resp.Username}
	if err := g.store.Save(s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	g.notify(s)
	return nil
}

// Logout tells the backend best-effort and unconditionally clears the
// persisted session. It never fails: a dead backend must not keep a client
// logged in.
func (g *Guard) Logout(ctx context.Context) {
	_ = g.auth.Logout(ctx)
	_ = g.store.Clear()
	g.notify(Session{})
}

// Refresh re-reads the store and notifies subscribers when the session
// changed underneath the guard (the cross-tab analogue). UI layers call it
// on their liveness triggers instead of listening to storage events.
func (g *Guard) Refresh() Session {
	s := g.store.Load()
	g.mu.Lock()
	changed := s != g.lastSeen
	g.mu.Unlock()
	if changed {
		g.notify(s)
	}
	return s
}

// Subscribe returns a channel receiving the session after every change.
// Slow receivers see only the most recent value.
func (g *Guard) Subscribe() <-chan Session {
	ch := make(chan Session, 1)
	g.mu.Lock()
	g.subs = append(g.subs, ch)
	g.mu.Unlock()
	return ch
}

func (g *Guard) notify(s Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen = s
	for _, ch := range g.subs {
		// keep only the freshest value for laggards
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// DeniedError is a credential rejection with the backend's human-readable
// message.
type DeniedError struct {
	Message string
}

func (e *DeniedError) Error() string {
	if e.Message == "" {
		return "login failed"
	}
	return e.Message
}
