package devserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Config{
		Secret:        "test-secret",
		AdminEmail:    "admin@example.com",
		AdminPassword: "secret123",
	})
	require.NoError(t, err)
	return srv
}

func call(t *testing.T, srv *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func login(t *testing.T, srv *Server) string {
	t.Helper()
	code, body := call(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Secret: "x"})
	require.Error(t, err)
	_, err = New(Config{AdminEmail: "a@b.c", AdminPassword: "secret"})
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	code, body := call(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"email": "admin@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "Invalid credentials", body["message"])

	token := login(t, srv)
	code, body = call(t, srv, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "admin@example.com", body["data"].(map[string]any)["email"])
}

func TestRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	code, body := call(t, srv, http.MethodGet, "/api/category", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "Unauthenticated.", body["message"])

	code, _ = call(t, srv, http.MethodGet, "/api/category", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, code)

	token := login(t, srv)
	code, _ = call(t, srv, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodGet, "/api/category", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)

	token = login(t, srv)
	srv.RevokeAll()
	code, _ = call(t, srv, http.MethodGet, "/api/category", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestExpiredToken(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srv, err := New(Config{
		Secret: "s", AdminEmail: "admin@example.com", AdminPassword: "secret123",
		TokenTTL: time.Minute,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	token := login(t, srv)
	code, _ := call(t, srv, http.MethodGet, "/api/category", token, nil)
	require.Equal(t, http.StatusOK, code)

	now = now.Add(2 * time.Minute)
	code, _ = call(t, srv, http.MethodGet, "/api/category", token, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestCategoryCRUD(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	code, body := call(t, srv, http.MethodPost, "/api/category", token, map[string]any{"name": "ab"})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, "The given data was invalid.", body["message"])
	require.Contains(t, body["errors"].(map[string]any), "name")

	code, body = call(t, srv, http.MethodPost, "/api/category", token, map[string]any{"name": "Go Tips"})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "Category created successfully", body["message"])
	created := body["category"].(map[string]any)
	require.Equal(t, "go-tips", created["slug"])
	require.EqualValues(t, 1, created["id"])

	code, _ = call(t, srv, http.MethodPost, "/api/category", token, map[string]any{"name": "go tips"})
	require.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = call(t, srv, http.MethodPatch, "/api/category/1", token, map[string]any{"name": "Go Tricks"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "go-tricks", body["category"].(map[string]any)["slug"])

	code, body = call(t, srv, http.MethodGet, "/api/category/1", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Go Tricks", body["data"].(map[string]any)["name"])

	code, _ = call(t, srv, http.MethodGet, "/api/category/99", token, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestSoftDeleteRestoreDestroy(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)
	code, _ := call(t, srv, http.MethodPost, "/api/category", token, map[string]any{"name": "Temporary"})
	require.Equal(t, http.StatusCreated, code)

	code, _ = call(t, srv, http.MethodPatch, "/api/category/restore/1", token, nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, srv, http.MethodDelete, "/api/category/1", token, nil)
	require.Equal(t, http.StatusOK, code)

	_, body := call(t, srv, http.MethodGet, "/api/category", token, nil)
	require.EqualValues(t, 0, body["total"])
	_, body = call(t, srv, http.MethodGet, "/api/category?trashed=true", token, nil)
	require.EqualValues(t, 1, body["total"])

	code, _ = call(t, srv, http.MethodPatch, "/api/category/restore/1", token, nil)
	require.Equal(t, http.StatusOK, code)
	_, body = call(t, srv, http.MethodGet, "/api/category", token, nil)
	require.EqualValues(t, 1, body["total"])

	code, _ = call(t, srv, http.MethodDelete, "/api/category/destroy/1", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodGet, "/api/category/1", token, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestListPagingSearchSort(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Seed())
	token := login(t, srv)

	_, body := call(t, srv, http.MethodGet, "/api/post?limit=5&page=2", token, nil)
	require.EqualValues(t, 36, body["total"])
	require.Len(t, body["data"], 5)

	_, body = call(t, srv, http.MethodGet, "/api/category?orderBy=name&order=desc", token, nil)
	rows := body["data"].([]any)
	require.Equal(t, "Travel", rows[0].(map[string]any)["name"])

	_, body = call(t, srv, http.MethodGet, "/api/category?search=cook", token, nil)
	require.EqualValues(t, 1, body["total"])

	_, body = call(t, srv, http.MethodGet, "/api/post?is_active=inactive", token, nil)
	require.EqualValues(t, 12, body["total"])

	_, body = call(t, srv, http.MethodGet, "/api/subcategory?category_id=1", token, nil)
	require.EqualValues(t, 2, body["total"])
	require.Equal(t, "Technology", body["data"].([]any)[0].(map[string]any)["category_name"])
}

func TestNestedEnvelope(t *testing.T) {
	srv, err := New(Config{
		Secret: "s", AdminEmail: "admin@example.com", AdminPassword: "secret123",
		NestedEnvelope: true,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Seed())
	token := login(t, srv)

	_, body := call(t, srv, http.MethodGet, "/api/category?limit=2", token, nil)
	nested := body["categories"].(map[string]any)
	require.Equal(t, "3", nested["total"])
	require.EqualValues(t, 2, nested["last_page"])
	require.Len(t, nested["data"], 2)
}

func TestOptions(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Seed())
	token := login(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/subcategory/non-sort?category_id=2", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var opts []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	require.Len(t, opts, 2)
	for _, o := range opts {
		require.EqualValues(t, 2, o["category_id"])
		require.Contains(t, o["subcategory"], "Travel")
	}
}

func TestMassUpdateIsAtomic(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)
	for _, n := range []string{"First", "Second"} {
		code, _ := call(t, srv, http.MethodPost, "/api/category", token, map[string]any{"name": n})
		require.Equal(t, http.StatusCreated, code)
	}

	code, body := call(t, srv, http.MethodPatch, "/api/category", token, []map[string]any{
		{"id": 1, "name": "Renamed"},
		{"id": 2, "name": "x"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Contains(t, body["errors"].(map[string]any), "1.name")

	_, body = call(t, srv, http.MethodGet, "/api/category/1", token, nil)
	require.Equal(t, "First", body["data"].(map[string]any)["name"])

	code, body = call(t, srv, http.MethodPatch, "/api/category", token, []map[string]any{
		{"id": 1, "name": "Renamed"},
		{"id": 2, "name": "Second Renamed"},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "2 categories updated successfully", body["message"])
}

func multipartPost(t *testing.T, srv *Server, path, token string, fields map[string]string, fileName string, file []byte) (int, map[string]any) {
	t.Helper()
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("image", fileName)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestPostMultipart(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.Seed())
	token := login(t, srv)

	img, err := placeholderPNG()
	require.NoError(t, err)
	fields := map[string]string{
		"category_id":      "1",
		"subcategory_id":   "1",
		"title":            "A brand new post",
		"meta_description": "desc",
		"meta_keyword":     "kw",
		"seo_title":        "seo",
		"content":          "body",
		"is_active":        "active",
	}

	code, body := multipartPost(t, srv, "/api/post", token, fields, "notes.txt", []byte("plain text"))
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Contains(t, body["errors"].(map[string]any), "image")

	code, body = multipartPost(t, srv, "/api/post", token, fields, "cover.png", img)
	require.Equal(t, http.StatusCreated, code)
	post := body["post"].(map[string]any)
	require.Equal(t, "storage/images/cover.png", post["image"])
	require.Equal(t, "a-brand-new-post", post["slug"])

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/images/cover.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	// edit without a new file keeps the stored image
	id := int64(post["id"].(float64))
	edit := map[string]string{"_method": "PATCH", "title": "An edited post title", "old_image": "cover.png"}
	code, body = multipartPost(t, srv, "/api/post/"+jsonID(id), token, edit, "", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "storage/images/cover.png", body["post"].(map[string]any)["image"])
	require.Equal(t, "An edited post title", body["post"].(map[string]any)["title"])

	// subcategory from another category is rejected
	fields["subcategory_id"] = "3"
	code, body = multipartPost(t, srv, "/api/post", token, fields, "cover.png", img)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Contains(t, body["errors"].(map[string]any), "subcategory_id")
}

func jsonID(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
