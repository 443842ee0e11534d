package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-cms-admin/internal/form"
	"github.com/Laisky/laisky-cms-admin/internal/session"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	storage, err := session.NewFileStorage(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	m, err := session.NewManager(context.Background(), storage)
	require.NoError(t, err)
	return m
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		require.Equal(t, "/api/category", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"data":[],"total":0}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/api/", WithTokenSource(staticToken("abc")))
	require.NoError(t, err)
	require.NoError(t, c.GetJSON(context.Background(), "category", url.Values{"page": {"2"}}, nil))

	anon, err := New(srv.URL+"/api", WithTokenSource(staticToken("")))
	require.NoError(t, err)
	require.NoError(t, anon.GetJSON(context.Background(), "/category", url.Values{"page": {"2"}}, nil))

	require.Equal(t, []string{"Bearer abc", ""}, got)
}

func TestClient_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New("/api")
	require.Error(t, err)
}

func TestClient_ErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/validation":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"The given data was invalid.","errors":{"name":["The name has already been taken."],"slug":"bad slug"}}`))
		case "/api/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/api/boom":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"database is down"}`))
		case "/api/silent":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	ctx := context.Background()

	err = c.GetJSON(ctx, "/validation", nil, nil)
	apiErr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, KindValidation, apiErr.Kind)
	require.Equal(t, "The given data was invalid.", apiErr.Message)
	require.Equal(t, map[string]string{
		"name": "The name has already been taken.",
		"slug": "bad slug",
	}, apiErr.Fields)
	require.Equal(t, []string{"name", "slug"}, apiErr.FieldNames())

	merged := form.Errors{}.Merge(err)
	require.Equal(t, "The name has already been taken.", merged["name"])

	err = c.GetJSON(ctx, "/missing", nil, nil)
	require.True(t, IsKind(err, KindNotFound))
	require.Equal(t, DefaultErrorMessage, Message(err))

	err = c.GetJSON(ctx, "/boom", nil, nil)
	require.True(t, IsKind(err, KindUnexpected))
	require.Equal(t, "database is down", Message(err))

	err = c.GetJSON(ctx, "/silent", nil, nil)
	require.True(t, IsKind(err, KindUnexpected))
	require.Equal(t, DefaultErrorMessage, err.Error())
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(base)
	require.NoError(t, err)
	err = c.GetJSON(context.Background(), "/category", nil, nil)
	require.True(t, IsKind(err, KindNetwork))
}

func TestClient_UnauthorizedHookReceivesSentToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer srv.Close()

	var tokens []string
	c, err := New(srv.URL,
		WithTokenSource(staticToken("expired")),
		WithUnauthorizedHook(func(_ context.Context, token string) { tokens = append(tokens, token) }))
	require.NoError(t, err)

	err = c.GetJSON(context.Background(), "/post", nil, nil)
	require.True(t, IsUnauthorized(err))
	require.Equal(t, "Unauthenticated.", Message(err))
	require.Equal(t, []string{"expired"}, tokens)
}

func TestClient_ConcurrentUnauthorizedLogsOutOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	sessions := newSessions(t)
	require.NoError(t, sessions.Start(ctx, &session.Session{Token: "tok"}))

	var logouts atomic.Int32
	sessions.OnLogout(func(session.LogoutReason) { logouts.Add(1) })

	c, err := New(srv.URL,
		WithTokenSource(sessions),
		WithUnauthorizedHook(func(ctx context.Context, token string) { sessions.HandleUnauthorized(ctx, token) }))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 8)
	)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.GetJSON(ctx, "/category", nil, nil)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.True(t, IsUnauthorized(err))
	}

	require.Equal(t, int32(1), logouts.Load())
	require.False(t, sessions.IsAuthenticated())
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRateLimit(0.001))
	require.NoError(t, err)
	require.NoError(t, c.GetJSON(context.Background(), "/a", nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.GetJSON(ctx, "/a", nil, nil)
	require.True(t, IsKind(err, KindNetwork))
}

func TestClient_PostMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "PATCH", r.FormValue("_method"))
		require.Equal(t, "Hello", r.FormValue("title"))

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close() // nolint: errcheck
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, "cover.png", hdr.Filename)
		require.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		require.Equal(t, "png-bytes", string(data))

		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Post updated"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	var out struct {
		Message string `json:"message"`
	}
	err = c.PostMultipart(context.Background(), "/post/1",
		url.Values{"_method": {"PATCH"}, "title": {"Hello"}},
		[]FilePart{{Field: "image", FileName: "cover.png", ContentType: "image/png", Reader: stringsReader("png-bytes")}},
		&out)
	require.NoError(t, err)
	require.Equal(t, "Post updated", out.Message)
}

func stringsReader(s string) io.Reader {
	return &onceReader{data: []byte(s)}
}

type onceReader struct {
	data []byte
	done bool
}

func (r *onceReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	r.done = true
	return copy(p, r.data), nil
}
