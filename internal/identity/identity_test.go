// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/safechat-tui/internal/backendtest"
	"github.com/jeranaias/safechat-tui/internal/tokenstore"
)

func TestResolveOnStartup_NoToken(t *testing.T) {
	srv := backendtest.New(t)
	c := New(srv.Client(), tokenstore.NewMemoryStore(""))

	id := c.ResolveOnStartup(context.Background())
	assert.Equal(t, Anonymous, id.State)
	assert.Equal(t, 0, srv.Calls(backendtest.RouteMe))
}

func TestResolveOnStartup_ValidToken(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("mia", "pw", 14)
	c := New(srv.Client(), tokenstore.NewMemoryStore(token))

	id := c.ResolveOnStartup(context.Background())
	require.Equal(t, Authenticated, id.State)
	assert.Equal(t, token, id.Token)
	assert.Equal(t, "mia", id.Username)
	assert.Equal(t, 14, id.Age)
	assert.True(t, id.Authenticated())
}

func TestResolveOnStartup_InvalidTokenClearsEverything(t *testing.T) {
	srv := backendtest.New(t)
	store := tokenstore.NewMemoryStore("tok-expired")
	c := New(srv.Client(), store)

	id := c.ResolveOnStartup(context.Background())
	assert.Equal(t, Identity{State: Anonymous}, id)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestResolveOnStartup_UnreadableStore(t *testing.T) {
	srv := backendtest.New(t)
	store := tokenstore.NewMemoryStore("tok")
	store.FailWith(errors.New("disk on fire"))
	c := New(srv.Client(), store)

	id := c.ResolveOnStartup(context.Background())
	assert.Equal(t, Anonymous, id.State)
	assert.Equal(t, 0, srv.Calls(backendtest.RouteMe))
}

func TestLogin_PersistsAndResolves(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("sam", "pw", 0)
	store := tokenstore.NewMemoryStore("")
	c := New(srv.Client(), store)

	var seen []State
	var mu sync.Mutex
	c.Subscribe(func(id Identity) {
		mu.Lock()
		seen = append(seen, id.State)
		mu.Unlock()
		if id.Token == "" {
			assert.Empty(t, id.Username)
			assert.Zero(t, id.Age)
		}
	})

	id, err := c.Login(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "sam", id.Username)
	assert.Zero(t, id.Age, "backend reported no age")

	persisted, _ := store.Load()
	assert.Equal(t, token, persisted)

	mu.Lock()
	assert.Equal(t, []State{Resolving, Authenticated}, seen)
	mu.Unlock()
}

func TestLogin_EmptyToken(t *testing.T) {
	srv := backendtest.New(t)
	c := New(srv.Client(), tokenstore.NewMemoryStore(""))
	_, err := c.Login(context.Background(), "")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestLogin_RejectedTokenDemotes(t *testing.T) {
	srv := backendtest.New(t)
	store := tokenstore.NewMemoryStore("")
	c := New(srv.Client(), store)

	id, err := c.Login(context.Background(), "tok-bogus")
	require.Error(t, err)
	assert.Equal(t, Anonymous, id.State)
	assert.Empty(t, c.Token())
	persisted, _ := store.Load()
	assert.Empty(t, persisted)
}

func TestLogout_ClearsEvenWhenBackendFails(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("ana", "pw", 20)
	store := tokenstore.NewMemoryStore(token)
	c := New(srv.Client(), store)
	require.True(t, c.ResolveOnStartup(context.Background()).Authenticated())

	srv.FailNext(backendtest.RouteLogout, http.StatusInternalServerError, "boom")
	c.Logout(context.Background())

	assert.Equal(t, Identity{State: Anonymous}, c.Current())
	persisted, _ := store.Load()
	assert.Empty(t, persisted)
	assert.Equal(t, 1, srv.Calls(backendtest.RouteLogout))
}

func TestLogout_AnonymousSkipsBackend(t *testing.T) {
	srv := backendtest.New(t)
	c := New(srv.Client(), tokenstore.NewMemoryStore(""))
	c.Logout(context.Background())
	assert.Equal(t, 0, srv.Calls(backendtest.RouteLogout))
}

func TestStaleResolutionIsDiscarded(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("kai", "pw", 16)
	c := New(srv.Client(), tokenstore.NewMemoryStore(""))

	release := srv.Hold(backendtest.RouteMe)
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := c.Login(context.Background(), token)
		done <- err
	}()
	require.Eventually(t, func() bool { return srv.Calls(backendtest.RouteMe) == 1 },
		2*time.Second, 5*time.Millisecond)

	c.Logout(context.Background())
	release()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("login did not return")
	}
	assert.Equal(t, Identity{State: Anonymous}, c.Current())
}

func TestReload_FollowsExternalChanges(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("lee", "pw", 30)
	store := tokenstore.NewMemoryStore("")
	c := New(srv.Client(), store)

	require.NoError(t, store.Save(token))
	id := c.Reload(context.Background())
	assert.Equal(t, "lee", id.Username)

	calls := srv.Calls(backendtest.RouteMe)
	c.Reload(context.Background())
	assert.Equal(t, calls, srv.Calls(backendtest.RouteMe), "unchanged token is not re-resolved")

	require.NoError(t, store.Clear())
	id = c.Reload(context.Background())
	assert.Equal(t, Anonymous, id.State)
	assert.Equal(t, 0, srv.Calls(backendtest.RouteLogout))
}

func TestWatchStore_BlocksUntilCancelled(t *testing.T) {
	srv := backendtest.New(t)
	token := srv.AddUser("lee", "pw", 30)
	path := filepath.Join(t.TempDir(), "token")
	c := New(srv.Client(), tokenstore.NewFileStore(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.WatchStore(ctx, tokenstore.NewFileStore(path), 20*time.Millisecond) }()

	// Writes made before the watch is armed are not seen, so keep writing.
	other := tokenstore.NewFileStore(path)
	require.Eventually(t, func() bool {
		_ = other.Save(token)
		return c.Current().Username == "lee"
	}, 3*time.Second, 50*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("WatchStore returned before cancel: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WatchStore did not return after cancel")
	}

	require.NoError(t, other.Clear())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "lee", c.Current().Username, "no reload after WatchStore returned")
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	srv := backendtest.New(t)
	c := New(srv.Client(), tokenstore.NewMemoryStore(""))
	n := 0
	unsub := c.Subscribe(func(Identity) { n++ })
	c.Logout(context.Background())
	unsub()
	c.Logout(context.Background())
	assert.Equal(t, 1, n)
}
