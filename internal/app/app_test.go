package app

import (
	"context"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/devserver"
	"github.com/Laisky/laisky-cms-admin/internal/liststate"
	"github.com/Laisky/laisky-cms-admin/internal/notify"
	"github.com/Laisky/laisky-cms-admin/internal/router"
	"github.com/Laisky/laisky-cms-admin/library/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newBackend(t *testing.T) (*devserver.Server, string) {
	t.Helper()
	backend, err := devserver.New(devserver.Config{
		Secret:        "app-test",
		AdminEmail:    "admin@example.com",
		AdminPassword: "secret123",
	})
	require.NoError(t, err)
	require.NoError(t, backend.Seed())

	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)
	return backend, ts.URL
}

func testSettings(t *testing.T, origin string) *config.Settings {
	t.Helper()
	return &config.Settings{
		Mode:      config.ModeDevelop,
		APIDev:    origin,
		APIPrefix: "/api",
		Timeout:   5 * time.Second,
		Session: config.SessionSettings{
			Backend: config.SessionBackendFile,
			Path:    filepath.Join(t.TempDir(), "session.json"),
		},
	}
}

func TestNew_RequiresSettings(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	s := testSettings(t, "")
	_, err := New(context.Background(), s)
	require.Error(t, err)
}

func TestUnauthorizedRedirectsToLogin(t *testing.T) {
	ctx := context.Background()
	backend, origin := newBackend(t)
	settings := testSettings(t, origin)

	a, err := New(ctx, settings)
	require.NoError(t, err)
	defer a.Close() // nolint: errcheck

	m, err := a.Router.Navigate("/category?page=1")
	require.NoError(t, err)
	require.Equal(t, router.PathLogin, m.Location.Path)

	_, err = a.Auth.Login(ctx, "admin@example.com", "secret123")
	require.NoError(t, err)
	m, err = a.Router.Navigate("/category?limit=2")
	require.NoError(t, err)
	require.Equal(t, "category", m.Route.Resource)

	_, err = a.Catalog.Categories.List(ctx, url.Values{"limit": {"2"}})
	require.NoError(t, err)
	_, err = os.Stat(settings.Session.Path)
	require.NoError(t, err)

	backend.RevokeAll()
	_, err = a.Catalog.Categories.List(ctx, url.Values{"limit": {"5"}})
	require.True(t, api.IsUnauthorized(err))

	require.False(t, a.Sessions.IsAuthenticated())
	_, err = os.Stat(settings.Session.Path)
	require.True(t, os.IsNotExist(err))

	cur, ok := a.Router.Current()
	require.True(t, ok)
	require.Equal(t, router.PathLogin, cur.Location.Path)
	require.Equal(t, "/category?limit=2", cur.RedirectedFrom.String())

	notices := a.Notices.Drain()
	require.Len(t, notices, 1)
	require.Equal(t, notify.Toast, notices[0].Kind)
	require.Equal(t, SessionExpiredMessage, notices[0].Message)

	m = a.Router.Resolve(cur.Location)
	require.Equal(t, router.PathLogin, m.Location.Path)
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	_, origin := newBackend(t)
	settings := testSettings(t, origin)

	a, err := New(ctx, settings)
	require.NoError(t, err)
	_, err = a.Auth.Login(ctx, "admin@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := New(ctx, settings)
	require.NoError(t, err)
	defer b.Close() // nolint: errcheck
	require.True(t, b.Sessions.IsAuthenticated())

	page, err := b.Catalog.Posts.List(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 36, page.TotalCount)

	require.NoError(t, b.Auth.Logout(ctx))
	m := b.Router.Resolve(mustLocation(t, "/post"))
	require.Equal(t, router.PathLogin, m.Location.Path)
	require.Empty(t, b.Notices.Drain())
}

func mustLocation(t *testing.T, raw string) liststate.Location {
	t.Helper()
	l, err := liststate.ParseLocation(raw)
	require.NoError(t, err)
	return l
}
