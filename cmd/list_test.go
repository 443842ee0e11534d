package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-cms-admin/internal/app"
	"github.com/Laisky/laisky-cms-admin/internal/devserver"
	"github.com/Laisky/laisky-cms-admin/library/config"
)

func newListApp(t *testing.T, signedIn bool) *app.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend, err := devserver.New(devserver.Config{
		Secret:        "cmd-test",
		AdminEmail:    "admin@example.com",
		AdminPassword: "secret123",
	})
	require.NoError(t, err)
	require.NoError(t, backend.Seed())
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	a, err := app.New(context.Background(), &config.Settings{
		Mode:      config.ModeDevelop,
		APIDev:    ts.URL,
		APIPrefix: "/api",
		Timeout:   5 * time.Second,
		Session: config.SessionSettings{
			Backend: config.SessionBackendFile,
			Path:    filepath.Join(t.TempDir(), "session.json"),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	if signedIn {
		_, err = a.Auth.Login(context.Background(), "admin@example.com", "secret123")
		require.NoError(t, err)
	}
	return a
}

func TestRunList(t *testing.T) {
	a := newListApp(t, true)

	var out bytes.Buffer
	require.NoError(t, runList(context.Background(), &out, a, "post", "?page=2&search=Travel"))
	require.Contains(t, out.String(), "page 2 of 2, 12 total")
	require.Contains(t, out.String(), "location: /post?page=2&search=Travel")
	require.Contains(t, out.String(), "Travel 2 post number")
}

func TestRunList_ClampsPage(t *testing.T) {
	a := newListApp(t, true)

	var out bytes.Buffer
	require.NoError(t, runList(context.Background(), &out, a, "category", "?page=9"))
	require.Contains(t, out.String(), "page 1 of 1, 3 total")
	require.Contains(t, out.String(), "location: /category\n")
}

func TestRunList_Errors(t *testing.T) {
	a := newListApp(t, false)

	err := runList(context.Background(), &bytes.Buffer{}, a, "category", "")
	require.ErrorContains(t, err, "not logged in")

	err = runList(context.Background(), &bytes.Buffer{}, a, "nope", "")
	require.ErrorContains(t, err, `unknown resource "nope"`)
}

func TestRunDelete_Modes(t *testing.T) {
	a := newListApp(t, true)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runDelete(ctx, &out, a, "category", "1", modeDelete))
	require.Contains(t, out.String(), "deleted successfully")

	var list bytes.Buffer
	require.NoError(t, runList(ctx, &list, a, "category", ""))
	require.Contains(t, list.String(), "2 total")

	out.Reset()
	require.NoError(t, runDelete(ctx, &out, a, "category", "1", modeRestore))
	require.Contains(t, out.String(), "restored successfully")
	list.Reset()
	require.NoError(t, runList(ctx, &list, a, "category", ""))
	require.Contains(t, list.String(), "3 total")

	err := runDelete(ctx, &bytes.Buffer{}, a, "category", "1", modeRestore)
	require.ErrorContains(t, err, "restore category 1")

	out.Reset()
	require.NoError(t, runDelete(ctx, &out, a, "category", "1", modeDestroy))
	require.Contains(t, out.String(), "permanently deleted")
	list.Reset()
	require.NoError(t, runList(ctx, &list, a, "category", ""))
	require.Contains(t, list.String(), "2 total")

	err = runDelete(ctx, &bytes.Buffer{}, a, "nope", "1", modeDelete)
	require.ErrorContains(t, err, `unknown resource "nope"`)
}

func TestDeleteModeOf(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want deleteMode
		err  bool
	}{
		{nil, modeDelete, false},
		{[]string{"--restore"}, modeRestore, false},
		{[]string{"--destroy"}, modeDestroy, false},
		{[]string{"--restore", "--destroy"}, "", true},
	} {
		cmd := &cobra.Command{}
		cmd.Flags().Bool("restore", false, "")
		cmd.Flags().Bool("destroy", false, "")
		require.NoError(t, cmd.Flags().Parse(tc.args))

		mode, err := deleteModeOf(cmd)
		if tc.err {
			require.Error(t, err, tc.args)
			continue
		}
		require.NoError(t, err, tc.args)
		require.Equal(t, tc.want, mode)
	}
}

func TestConfirmed(t *testing.T) {
	for answer, want := range map[string]bool{
		"y": true, " YES\n": true, "": false, "n": false, "nope": false,
	} {
		require.Equal(t, want, confirmed(answer), answer)
	}
}

func TestReadLine(t *testing.T) {
	line, err := readLine(strings.NewReader("secret123\nrest"))
	require.NoError(t, err)
	require.Equal(t, "secret123", line)

	line, err = readLine(strings.NewReader("no newline"))
	require.NoError(t, err)
	require.Equal(t, "no newline", line)

	_, err = readLine(strings.NewReader(""))
	require.Error(t, err)
}
