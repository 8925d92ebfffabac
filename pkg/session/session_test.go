package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gimmick12-DYY/ADRD-KG/pkg/apiclient"
)

type stubAuth struct {
	resp       *apiclient.LoginResponse
	loginErr   error
	logoutErr  error
	logoutSeen bool
}

func (s *stubAuth) Login(ctx context.Context, username, password string) (*apiclient.LoginResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.resp, nil
}

func (s *stubAuth) Logout(ctx context.Context) error {
	s.logoutSeen = true
	return s.logoutErr
}

func TestLoginPersistsSession(t *testing.T) {
	store := NewMemStore()
	auth := &stubAuth{resp: &apiclient.LoginResponse{Success: true, Username: "admin"}}
	g := NewGuard(store, auth)

	require.False(t, g.IsAuthenticated())
	require.NoError(t, g.Login(context.Background(), "admin", "admin123"))

	assert.True(t, g.IsAuthenticated())
	assert.Equal(t, "admin", g.Username())
	assert.Equal(t, Session{Authenticated: true, Username: "admin"}, store.Load())
}

func TestLoginDeniedKeepsStoreClean(t *testing.T) {
	store := NewMemStore()
	auth := &stubAuth{resp: &apiclient.LoginResponse{Success: false, Message: "Invalid credentials"}}
	g := NewGuard(store, auth)

	err := g.Login(context.Background(), "admin", "wrong")
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "Invalid credentials", denied.Message)
	assert.False(t, g.IsAuthenticated())
}

func TestLoginUnreachableBackend(t *testing.T) {
	g := NewGuard(NewMemStore(), &stubAuth{loginErr: errors.New("connection refused")})

	err := g.Login(context.Background(), "admin", "admin123")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.False(t, g.IsAuthenticated())
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	store := NewMemStore()
	require.NoError(t, store.Save(Session{Authenticated: true, Username: "admin"}))
	auth := &stubAuth{logoutErr: errors.New("connection refused")}
	g := NewGuard(store, auth)

	g.Logout(context.Background())

	assert.True(t, auth.logoutSeen)
	assert.False(t, g.IsAuthenticated())
	assert.Equal(t, "", g.Username())
}

func TestRefreshNotifiesOnExternalChange(t *testing.T) {
	store := NewMemStore()
	g := NewGuard(store, &stubAuth{})
	sub := g.Subscribe()

	// nothing changed yet
	g.Refresh()
	select {
	case s := <-sub:
		t.Fatalf("unexpected notification: %+v", s)
	default:
	}

	// session established outside the guard
	require.NoError(t, store.Save(Session{Authenticated: true, Username: "admin"}))
	got := g.Refresh()
	assert.True(t, got.Authenticated)

	select {
	case s := <-sub:
		assert.Equal(t, Session{Authenticated: true, Username: "admin"}, s)
	default:
		t.Fatal("expected a notification after external change")
	}
}

func TestSubscribeKeepsFreshestValue(t *testing.T) {
	store := NewMemStore()
	auth := &stubAuth{resp: &apiclient.LoginResponse{Success: true, Username: "admin"}}
	g := NewGuard(store, auth)
	sub := g.Subscribe()

	require.NoError(t, g.Login(context.Background(), "admin", "admin123"))
	g.Logout(context.Background())

	// the login notification was superseded by the logout one
	select {
	case s := <-sub:
		assert.Equal(t, Session{}, s)
	default:
		t.Fatal("expected a notification")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewFileStore(path)

	assert.Equal(t, Session{}, store.Load())

	require.NoError(t, store.Save(Session{Authenticated: true, Username: "admin"}))
	assert.Equal(t, Session{Authenticated: true, Username: "admin"}, store.Load())

	require.NoError(t, store.Clear())
	assert.Equal(t, Session{}, store.Load())

	// clearing an absent file is not an error
	require.NoError(t, store.Clear())
}

func TestFileStoreIgnoresMalformedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	writeFile(t, path, `{not json`)
	assert.Equal(t, Session{}, store.Load())

	writeFile(t, path, `{"auth":"nope","username":"admin"}`)
	assert.Equal(t, Session{}, store.Load())

	writeFile(t, path, `{"auth":"authenticated","username":""}`)
	assert.Equal(t, Session{}, store.Load())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
