// Package resource exposes cache-aware CRUD for every CMS resource.
package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/notify"
	"github.com/Laisky/laisky-cms-admin/internal/query"
	"github.com/Laisky/laisky-cms-admin/library/log"
)

// Stale windows of list reads.
const (
	ShortStaleTime = 30 * time.Second
	LongStaleTime  = 60 * time.Second
)

// Spec names a REST resource.
type Spec struct {
	// Name is the path segment and cache namespace, e.g. "category".
	Name string
	// Plural is the key of the nested list envelope, e.g. "categories".
	Plural     string
	StaleTime  time.Duration
	FilterKeys []string
}

// Deps are the shared services every resource needs.
type Deps struct {
	API     *api.Client
	Cache   *query.Client
	Notices *notify.Center
	Logger  logSDK.Logger
}

// Resource is the query and mutation family of one REST resource.
type Resource[T Entity[T]] struct {
	spec    Spec
	api     *api.Client
	cache   *query.Client
	notices *notify.Center
	logger  logSDK.Logger
}

// New binds spec to the shared services.
func New[T Entity[T]](spec Spec, deps Deps) *Resource[T] {
	if spec.StaleTime <= 0 {
		spec.StaleTime = ShortStaleTime
	}
	if spec.Plural == "" {
		spec.Plural = spec.Name + "s"
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Logger
	}

	return &Resource[T]{
		spec:    spec,
		api:     deps.API,
		cache:   deps.Cache,
		notices: deps.Notices,
		logger:  logger.Named(spec.Name),
	}
}

// Spec returns the resource description.
func (r *Resource[T]) Spec() Spec {
	return r.spec
}

// ListKey is the cache key of a list read with params.
func (r *Resource[T]) ListKey(params url.Values) query.Key {
	return query.NewKey(r.spec.Name, "list", params)
}

func (r *Resource[T]) getKey(id ID) query.Key {
	return query.NewKey(r.spec.Name, "get", url.Values{"id": {string(id)}})
}

func (r *Resource[T]) path(parts ...string) string {
	p := "/" + r.spec.Name
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// List reads one page. Identical params reuse the cached page while fresh.
func (r *Resource[T]) List(ctx context.Context, params url.Values) (query.Page[T], error) {
	return query.Fetch(ctx, r.cache, r.ListKey(params), r.spec.StaleTime,
		func(ctx context.Context) (query.Page[T], error) {
			var raw json.RawMessage
			if err := r.api.GetJSON(ctx, r.path(), params, &raw); err != nil {
				return query.Page[T]{}, err
			}
			return decodePage[T](raw, r.spec.Plural)
		})
}

// CachedList returns the cached page of params, fresh or stale.
func (r *Resource[T]) CachedList(params url.Values) (query.Page[T], bool) {
	return query.Get[query.Page[T]](r.cache, r.ListKey(params))
}

// Get reads one row. An empty id disables the read and returns nil, nil.
// Failures raise a blocking notice and are not retried.
func (r *Resource[T]) Get(ctx context.Context, id ID) (*T, error) {
	if id == "" {
		return nil, nil
	}

	item, err := query.Fetch(ctx, r.cache, r.getKey(id), r.spec.StaleTime,
		func(ctx context.Context) (*T, error) {
			var raw json.RawMessage
			if err := r.api.GetJSON(ctx, r.path(string(id)), nil, &raw); err != nil {
				return nil, err
			}
			return decodeItem[T](raw, r.spec.Name)
		})
	if err != nil {
		if r.notices != nil && !errors.Is(err, query.ErrCancelled) && ctx.Err() == nil {
			r.notices.Alert(notify.Error, "Error!", api.Message(err))
		}
		return nil, err
	}

	return item, nil
}

func (r *Resource[T]) send(ctx context.Context, method, path string, body any) (Result[T], error) {
	var raw json.RawMessage
	if err := r.api.SendJSON(ctx, method, path, body, &raw); err != nil {
		r.logger.Debug("mutation failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return Result[T]{}, err
	}

	return decodeResult[T](raw, r.spec.Name)
}

// settle invalidates the resource whatever the outcome.
func (r *Resource[T]) settle() {
	r.cache.Invalidate(r.spec.Name)
}

// Create posts a new row.
func (r *Resource[T]) Create(ctx context.Context, payload any) (Result[T], error) {
	defer r.settle()
	return r.send(ctx, http.MethodPost, r.path(), payload)
}

// CreateOptimistic shows draft at the end of the cached page of listParams
// under a temporary id until the server answers. A failure restores the
// page as it was.
func (r *Resource[T]) CreateOptimistic(ctx context.Context, listParams url.Values, draft T, payload any) (Result[T], error) {
	tmp := draft.WithID(ID(tempIDPrefix + uuid.NewString()))

	return query.Mutate(ctx, r.cache, r.ListKey(listParams),
		func(cur query.Page[T], _ bool) query.Page[T] {
			items := make([]T, 0, len(cur.Items)+1)
			items = append(items, cur.Items...)
			cur.Items = append(items, tmp)
			cur.TotalCount++
			return cur
		},
		func(ctx context.Context) (Result[T], error) {
			return r.send(ctx, http.MethodPost, r.path(), payload)
		})
}

// Update patches one row.
func (r *Resource[T]) Update(ctx context.Context, id ID, payload any) (string, error) {
	defer r.settle()
	res, err := r.send(ctx, http.MethodPatch, r.path(string(id)), payload)
	return res.Message, err
}

// MassUpdate patches several rows in one request.
func (r *Resource[T]) MassUpdate(ctx context.Context, rows []T) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("nothing to update")
	}

	defer r.settle()
	res, err := r.send(ctx, http.MethodPatch, r.path(), rows)
	return res.Message, err
}

// MassUpdateRecords converts generic rows to T and patches them together.
func (r *Resource[T]) MassUpdateRecords(ctx context.Context, rows []Record) (string, error) {
	typed := make([]T, 0, len(rows))
	for _, rec := range rows {
		data, err := json.Marshal(rec)
		if err != nil {
			return "", errors.Wrapf(err, "marshal row %s", rec.EntityID())
		}
		var v T
		if err = json.Unmarshal(data, &v); err != nil {
			return "", errors.Wrapf(err, "convert row %s", rec.EntityID())
		}
		typed = append(typed, v)
	}

	return r.MassUpdate(ctx, typed)
}

// Delete soft-deletes one row.
func (r *Resource[T]) Delete(ctx context.Context, id ID) (string, error) {
	defer r.settle()
	res, err := r.send(ctx, http.MethodDelete, r.path(string(id)), nil)
	return res.Message, err
}

// Restore undoes a soft delete.
func (r *Resource[T]) Restore(ctx context.Context, id ID) (string, error) {
	defer r.settle()
	res, err := r.send(ctx, http.MethodPatch, r.path("restore", string(id)), nil)
	return res.Message, err
}

// Destroy removes a row permanently.
func (r *Resource[T]) Destroy(ctx context.Context, id ID) (string, error) {
	defer r.settle()
	res, err := r.send(ctx, http.MethodDelete, r.path("destroy", string(id)), nil)
	return res.Message, err
}

// Options reads the unpaginated select list, optionally filtered.
func (r *Resource[T]) Options(ctx context.Context, filter url.Values) ([]Option, error) {
	key := query.NewKey(r.spec.Name, "options", filter)
	return query.Fetch(ctx, r.cache, key, r.spec.StaleTime,
		func(ctx context.Context) ([]Option, error) {
			var raw json.RawMessage
			if err := r.api.GetJSON(ctx, r.path("non-sort"), filter, &raw); err != nil {
				return nil, err
			}
			return decodeOptions(raw)
		})
}

// Browse lists rows as generic records, for screens that render any resource.
func (r *Resource[T]) Browse(ctx context.Context, params url.Values) (query.Page[Record], error) {
	page, err := r.List(ctx, params)
	if err != nil {
		return query.Page[Record]{}, err
	}

	out := query.Page[Record]{TotalCount: page.TotalCount, Items: make([]Record, 0, len(page.Items))}
	for _, it := range page.Items {
		rec, err := toRecord(it)
		if err != nil {
			return query.Page[Record]{}, err
		}
		out.Items = append(out.Items, rec)
	}
	return out, nil
}

func toRecord(v any) (Record, error) {
	if rec, ok := v.(Record); ok {
		return rec, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal row")
	}
	rec := Record{}
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal row")
	}
	return rec, nil
}

// Browser is the resource surface shared by every screen and the CLI.
type Browser interface {
	Spec() Spec
	Browse(ctx context.Context, params url.Values) (query.Page[Record], error)
	MassUpdateRecords(ctx context.Context, rows []Record) (string, error)
	Delete(ctx context.Context, id ID) (string, error)
	Restore(ctx context.Context, id ID) (string, error)
	Destroy(ctx context.Context, id ID) (string, error)
}
