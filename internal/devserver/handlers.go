package devserver

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const maxPageSize = 100

func (s *Server) lookup(ctx *gin.Context, name string) (*collection, int64, bool) {
	c, ok := s.store.collection(name)
	if !ok {
		abortMessage(ctx, http.StatusNotFound, "Not found")
		return nil, 0, false
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil && ctx.Param("id") != "" {
		abortMessage(ctx, http.StatusNotFound, c.title+" not found")
		return nil, 0, false
	}
	return c, id, true
}

func parseListQuery(ctx *gin.Context, c *collection) listQuery {
	q := listQuery{limit: 10, page: 1, filters: map[string]string{}}
	if n, err := strconv.Atoi(ctx.Query("limit")); err == nil && n > 0 {
		q.limit = min(n, maxPageSize)
	}
	if n, err := strconv.Atoi(ctx.Query("page")); err == nil && n > 0 {
		q.page = n
	}
	q.search = strings.TrimSpace(ctx.Query("search"))
	q.orderBy = ctx.Query("orderBy")
	q.desc = strings.EqualFold(ctx.Query("order"), "desc")
	q.columnField = ctx.Query("searchData")
	q.columnValue = ctx.Query("value")
	q.trashed = ctx.Query("trashed") == "true" || ctx.Query("trashed") == "1"
	for _, k := range c.filterKeys {
		if v := ctx.Query(k); v != "" {
			q.filters[k] = v
		}
	}
	return q
}

func (s *Server) list(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, _, ok := s.lookup(ctx, name)
		if !ok {
			return
		}
		q := parseListQuery(ctx, c)

		s.store.mu.Lock()
		rows, total := s.store.list(c, q)
		s.store.mu.Unlock()

		if !s.cfg.NestedEnvelope {
			ctx.JSON(http.StatusOK, gin.H{"data": rows, "total": total})
			return
		}

		lastPage := (total + q.limit - 1) / q.limit
		ctx.JSON(http.StatusOK, gin.H{c.plural: gin.H{
			"data":         rows,
			"total":        strconv.Itoa(total),
			"current_page": q.page,
			"per_page":     q.limit,
			"last_page":    max(lastPage, 1),
		}})
	}
}

func (s *Server) options(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, _, ok := s.lookup(ctx, name)
		if !ok {
			return
		}

		s.store.mu.Lock()
		defer s.store.mu.Unlock()

		out := make([]row, 0, len(c.rows))
		for _, r := range c.rows {
			if r.deleted() {
				continue
			}
			if !matchesFilters(ctx, c, r) {
				continue
			}
			opt := row{"id": r["id"], c.labelField: r[c.labelField]}
			if c.parentField != "" {
				opt[c.parentField] = r[c.parentField]
			}
			out = append(out, opt)
		}
		ctx.JSON(http.StatusOK, out)
	}
}

func matchesFilters(ctx *gin.Context, c *collection, r row) bool {
	for _, k := range c.filterKeys {
		if v := ctx.Query(k); v != "" && fmt.Sprint(r[k]) != v {
			return false
		}
	}
	return true
}

func (s *Server) get(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, id, ok := s.lookup(ctx, name)
		if !ok {
			return
		}

		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		_, r := c.find(id)
		if r == nil || r.deleted() {
			abortMessage(ctx, http.StatusNotFound, c.title+" not found")
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"data": s.store.present(c, r)})
	}
}

func isMultipart(ctx *gin.Context) bool {
	return strings.HasPrefix(ctx.ContentType(), "multipart/form-data")
}

// readPayload reads a json object or a multipart form into a row.
// A multipart "image" file is stored and referenced by path.
func (s *Server) readPayload(ctx *gin.Context) (row, fieldErrors, bool) {
	if !isMultipart(ctx) {
		payload := row{}
		if err := ctx.ShouldBindJSON(&payload); err != nil {
			abortMessage(ctx, http.StatusBadRequest, "Malformed json body")
			return nil, nil, false
		}
		return payload, nil, true
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		abortMessage(ctx, http.StatusBadRequest, "Malformed multipart body")
		return nil, nil, false
	}

	payload := row{}
	for k, vs := range form.Value {
		if len(vs) > 0 {
			payload[k] = vs[0]
		}
	}

	if files := form.File["image"]; len(files) > 0 {
		imagePath, fe := s.saveImage(files[0])
		if len(fe) > 0 {
			return nil, fe, true
		}
		payload["image"] = imagePath
	}
	return payload, nil, true
}

func (s *Server) saveImage(fh *multipart.FileHeader) (string, fieldErrors) {
	fe := fieldErrors{}
	if fh.Size > s.cfg.MaxUpload {
		fe.add("image", fmt.Sprintf("The image must not be greater than %d kilobytes.", s.cfg.MaxUpload/1024))
		return "", fe
	}

	f, err := fh.Open()
	if err != nil {
		fe.add("image", "The image failed to upload.")
		return "", fe
	}
	defer f.Close() // nolint: errcheck

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUpload+1))
	if err != nil || int64(len(data)) > s.cfg.MaxUpload {
		fe.add("image", "The image failed to upload.")
		return "", fe
	}
	if !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		fe.add("image", "The image must be an image.")
		return "", fe
	}

	name := path.Base(fh.Filename)
	s.mu.Lock()
	s.images[name] = data
	s.mu.Unlock()

	return "storage/images/" + name, nil
}

func (s *Server) serveImage(ctx *gin.Context) {
	s.mu.Lock()
	data, ok := s.images[ctx.Param("name")]
	s.mu.Unlock()
	if !ok {
		abortMessage(ctx, http.StatusNotFound, "Image not found")
		return
	}

	ctx.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

func (s *Server) create(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, _, ok := s.lookup(ctx, name)
		if !ok {
			return
		}
		payload, fe, ok := s.readPayload(ctx)
		if !ok {
			return
		}
		if len(fe) > 0 {
			abortValidation(ctx, fe)
			return
		}

		s.store.mu.Lock()
		created, fe := s.store.insert(c, payload)
		s.store.mu.Unlock()
		if len(fe) > 0 {
			abortValidation(ctx, fe)
			return
		}

		gmw.GetLogger(ctx).Debug("created", zap.String("resource", name), zap.Any("id", created["id"]))
		ctx.JSON(http.StatusCreated, gin.H{
			"message": c.title + " created successfully",
			name:      created,
		})
	}
}

func (s *Server) applyUpdate(ctx *gin.Context, c *collection, id int64, payload row) {
	s.store.mu.Lock()
	updated, fe, found := s.store.update(c, id, payload)
	s.store.mu.Unlock()

	switch {
	case !found:
		abortMessage(ctx, http.StatusNotFound, c.title+" not found")
	case len(fe) > 0:
		abortValidation(ctx, fe)
	default:
		ctx.JSON(http.StatusOK, gin.H{
			"message": c.title + " updated successfully",
			c.name:    updated,
		})
	}
}

func (s *Server) update(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, id, ok := s.lookup(ctx, name)
		if !ok {
			return
		}
		payload, fe, ok := s.readPayload(ctx)
		if !ok {
			return
		}
		if len(fe) > 0 {
			abortValidation(ctx, fe)
			return
		}

		s.applyUpdate(ctx, c, id, payload)
	}
}

// methodOverride handles multipart edits sent as POST with _method=PATCH.
// Without a new image file the stored image is kept.
func (s *Server) methodOverride(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, id, ok := s.lookup(ctx, name)
		if !ok {
			return
		}
		if !isMultipart(ctx) || !strings.EqualFold(ctx.PostForm("_method"), http.MethodPatch) {
			abortMessage(ctx, http.StatusMethodNotAllowed, "The POST method is not supported for this route.")
			return
		}

		payload, fe, ok := s.readPayload(ctx)
		if !ok {
			return
		}
		if len(fe) > 0 {
			abortValidation(ctx, fe)
			return
		}
		delete(payload, "_method")
		delete(payload, "old_image")

		s.applyUpdate(ctx, c, id, payload)
	}
}

func (s *Server) massUpdate(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, _, ok := s.lookup(ctx, name)
		if !ok {
			return
		}

		var patches []row
		if err := ctx.ShouldBindJSON(&patches); err != nil || len(patches) == 0 {
			abortMessage(ctx, http.StatusBadRequest, "Expect a non-empty json array")
			return
		}

		s.store.mu.Lock()
		defer s.store.mu.Unlock()

		snapshot := append([]row(nil), c.rows...)
		for i, patch := range patches {
			id, ok := toInt64(patch["id"])
			if !ok {
				c.rows = snapshot
				abortValidation(ctx, fieldErrors{fmt.Sprintf("%d.id", i): {"The id field is required."}})
				return
			}

			_, fe, found := s.store.update(c, id, patch)
			if !found {
				c.rows = snapshot
				abortMessage(ctx, http.StatusNotFound, fmt.Sprintf("%s %d not found", c.title, id))
				return
			}
			if len(fe) > 0 {
				c.rows = snapshot
				prefixed := fieldErrors{}
				for k, v := range fe {
					prefixed[fmt.Sprintf("%d.%s", i, k)] = v
				}
				abortValidation(ctx, prefixed)
				return
			}
		}

		ctx.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("%d %s updated successfully", len(patches), c.plural),
		})
	}
}

func (s *Server) delete(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, id, ok := s.lookup(ctx, name)
		if !ok {
			return
		}

		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		idx, r := c.find(id)
		if r == nil || r.deleted() {
			abortMessage(ctx, http.StatusNotFound, c.title+" not found")
			return
		}

		next := r.clone()
		next["deleted_at"] = s.cfg.Now().UTC().Format(time.RFC3339)
		c.rows[idx] = next
		ctx.JSON(http.StatusOK, gin.H{"message": c.title + " deleted successfully"})
	}
}

func (s *Server) restore(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, id, ok := s.lookup(ctx, name)
		if !ok {
			return
		}

		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		idx, r := c.find(id)
		if r == nil || !r.deleted() {
			abortMessage(ctx, http.StatusNotFound, "Deleted "+strings.ToLower(c.title)+" not found")
			return
		}

		next := r.clone()
		delete(next, "deleted_at")
		c.rows[idx] = next
		ctx.JSON(http.StatusOK, gin.H{"message": c.title + " restored successfully"})
	}
}

func (s *Server) destroy(name string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c, id, ok := s.lookup(ctx, name)
		if !ok {
			return
		}

		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		idx, r := c.find(id)
		if r == nil {
			abortMessage(ctx, http.StatusNotFound, c.title+" not found")
			return
		}

		c.rows = append(c.rows[:idx:idx], c.rows[idx+1:]...)
		ctx.JSON(http.StatusOK, gin.H{"message": c.title + " permanently deleted"})
	}
}
