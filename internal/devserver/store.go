package devserver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
)

// row is one stored record. "id" is always an int64.
type row map[string]any

func (r row) clone() row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r row) id() int64 {
	id, _ := toInt64(r["id"])
	return id
}

func (r row) deleted() bool {
	v, ok := r["deleted_at"]
	return ok && v != nil && v != ""
}

// collection describes how one resource behaves.
type collection struct {
	name         string
	title        string
	plural       string
	searchFields []string
	filterKeys   []string
	intFields    []string
	flagFields   []string
	slugFrom     string
	labelField   string
	parentField  string
	validate     func(s *store, r row, id int64) fieldErrors

	rows   []row
	nextID int64
}

type fieldErrors map[string][]string

func (fe fieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// store is the in-memory database of the dev backend.
type store struct {
	mu          sync.Mutex
	collections map[string]*collection
	now         func() time.Time
}

func newStore(now func() time.Time) *store {
	s := &store{collections: make(map[string]*collection), now: now}
	for _, c := range defaultCollections() {
		c.nextID = 1
		s.collections[c.name] = c
	}
	return s
}

func defaultCollections() []*collection {
	return []*collection{
		{
			name: "category", title: "Category", plural: "categories",
			searchFields: []string{"name", "description", "slug"},
			slugFrom:     "name",
			labelField:   "name",
			validate:     validateCategory,
		},
		{
			name: "subcategory", title: "Subcategory", plural: "subcategories",
			searchFields: []string{"subcategory", "description", "slug"},
			filterKeys:   []string{"category_id", "is_active"},
			intFields:    []string{"category_id"},
			flagFields:   []string{"is_active"},
			slugFrom:     "subcategory",
			labelField:   "subcategory",
			parentField:  "category_id",
			validate:     validateSubcategory,
		},
		{
			name: "post", title: "Post", plural: "posts",
			searchFields: []string{"title", "meta_description", "meta_keyword", "seo_title", "content"},
			filterKeys:   []string{"category_id", "subcategory_id", "is_active"},
			intFields:    []string{"category_id", "subcategory_id"},
			slugFrom:     "title",
			labelField:   "title",
			parentField:  "subcategory_id",
			validate:     validatePost,
		},
		recordCollection("user", "User", "users", "name", "email"),
		recordCollection("role", "Role", "roles", "name"),
		recordCollection("permission", "Permission", "permissions", "name"),
		recordCollection("menu", "Menu", "menus", "name"),
		recordCollection("submenu", "Submenu", "submenus", "name"),
		recordCollection("message", "Message", "messages", "name", "email", "message"),
		recordCollection("comment", "Comment", "comments", "name", "comment"),
	}
}

func recordCollection(name, title, plural string, search ...string) *collection {
	return &collection{
		name: name, title: title, plural: plural,
		searchFields: search,
		labelField:   search[0],
	}
}

func (s *store) collection(name string) (*collection, bool) {
	c, ok := s.collections[name]
	return c, ok
}

func (c *collection) find(id int64) (int, row) {
	for i, r := range c.rows {
		if r.id() == id {
			return i, r
		}
	}
	return -1, nil
}

// normalize coerces known numeric and flag fields.
func (c *collection) normalize(r row) {
	for _, f := range c.intFields {
		if v, ok := r[f]; ok {
			if n, ok := toInt64(v); ok {
				r[f] = n
			}
		}
	}
	for _, f := range c.flagFields {
		if v, ok := r[f]; ok {
			r[f] = toFlag(v)
		}
	}
	if c.slugFrom != "" {
		if src, ok := r[c.slugFrom].(string); ok && src != "" {
			r["slug"] = slug.Make(src)
		}
	}
}

// insert validates and stores a new row.
func (s *store) insert(c *collection, r row) (row, fieldErrors) {
	r = r.clone()
	delete(r, "id")
	c.normalize(r)
	if c.validate != nil {
		if fe := c.validate(s, r, 0); len(fe) > 0 {
			return nil, fe
		}
	}

	now := s.now().UTC().Format(time.RFC3339)
	r["id"] = c.nextID
	r["created_at"] = now
	r["updated_at"] = now
	c.nextID++
	c.rows = append(c.rows, r)

	return s.present(c, r), nil
}

// update merges patch into the row with id.
func (s *store) update(c *collection, id int64, patch row) (row, fieldErrors, bool) {
	idx, cur := c.find(id)
	if idx < 0 || cur.deleted() {
		return nil, nil, false
	}

	next := cur.clone()
	for k, v := range patch {
		switch k {
		case "id", "created_at", "updated_at", "deleted_at", "slug", "category_name":
			continue
		}
		next[k] = v
	}
	c.normalize(next)
	if c.validate != nil {
		if fe := c.validate(s, next, id); len(fe) > 0 {
			return nil, fe, true
		}
	}

	next["updated_at"] = s.now().UTC().Format(time.RFC3339)
	c.rows[idx] = next
	return s.present(c, next), nil, true
}

// present adds computed fields to a copy of r.
func (s *store) present(c *collection, r row) row {
	out := r.clone()
	if c.name == "subcategory" {
		if cats, ok := s.collection("category"); ok {
			if catID, ok := toInt64(r["category_id"]); ok {
				if _, cat := cats.find(catID); cat != nil {
					out["category_name"] = cat["name"]
				}
			}
		}
	}
	return out
}

type listQuery struct {
	limit   int
	page    int
	search  string
	orderBy string
	desc    bool
	filters map[string]string
	// column filter of the form searchData=<field>&value=<text>
	columnField string
	columnValue string
	trashed     bool
}

func (s *store) list(c *collection, q listQuery) ([]row, int) {
	matched := make([]row, 0, len(c.rows))
	for _, r := range c.rows {
		if r.deleted() != q.trashed {
			continue
		}
		if !matchesSearch(r, c.searchFields, q.search) {
			continue
		}
		if q.columnField != "" && !containsFold(fmt.Sprint(r[q.columnField]), q.columnValue) {
			continue
		}
		ok := true
		for k, v := range q.filters {
			if fmt.Sprint(r[k]) != v {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, r)
		}
	}

	if q.orderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i][q.orderBy], matched[j][q.orderBy]
			if q.desc {
				a, b = b, a
			}
			return lessValue(a, b)
		})
	}

	total := len(matched)
	start := (q.page - 1) * q.limit
	if start > total {
		start = total
	}
	end := start + q.limit
	if end > total {
		end = total
	}

	out := make([]row, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, s.present(c, r))
	}
	return out, total
}

func matchesSearch(r row, fields []string, search string) bool {
	if search == "" {
		return true
	}
	for _, f := range fields {
		if v, ok := r[f].(string); ok && containsFold(v, search) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func lessValue(a, b any) bool {
	na, okA := toFloat(a)
	nb, okB := toFloat(b)
	if okA && okB {
		return na < nb
	}
	return strings.ToLower(fmt.Sprint(a)) < strings.ToLower(fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toFlag(v any) int {
	switch f := v.(type) {
	case bool:
		if f {
			return 1
		}
		return 0
	case string:
		if f == "1" || strings.EqualFold(f, "true") {
			return 1
		}
		return 0
	default:
		if n, ok := toInt64(v); ok && n != 0 {
			return 1
		}
		return 0
	}
}

func stringField(r row, key string) string {
	v, _ := r[key].(string)
	return strings.TrimSpace(v)
}

func validateCategory(s *store, r row, id int64) fieldErrors {
	fe := fieldErrors{}
	name := stringField(r, "name")
	switch {
	case name == "":
		fe.add("name", "The name field is required.")
	case len([]rune(name)) < 3:
		fe.add("name", "The name field must be at least 3 characters.")
	default:
		c, _ := s.collection("category")
		for _, other := range c.rows {
			if other.id() != id && strings.EqualFold(stringField(other, "name"), name) {
				fe.add("name", "The name has already been taken.")
				break
			}
		}
	}
	return fe
}

func validateSubcategory(s *store, r row, _ int64) fieldErrors {
	fe := fieldErrors{}
	if stringField(r, "subcategory") == "" {
		fe.add("subcategory", "The subcategory field is required.")
	}
	catID, ok := toInt64(r["category_id"])
	if !ok {
		fe.add("category_id", "The category id field is required.")
		return fe
	}
	cats, _ := s.collection("category")
	if _, cat := cats.find(catID); cat == nil || cat.deleted() {
		fe.add("category_id", "The selected category id is invalid.")
	}
	return fe
}

func validatePost(s *store, r row, _ int64) fieldErrors {
	fe := fieldErrors{}
	for _, f := range []string{"title", "meta_description", "meta_keyword", "seo_title", "content"} {
		if stringField(r, f) == "" {
			fe.add(f, "The "+strings.ReplaceAll(f, "_", " ")+" field is required.")
		}
	}
	if len([]rune(stringField(r, "title"))) > 300 {
		fe.add("title", "The title field must not be greater than 300 characters.")
	}
	switch stringField(r, "is_active") {
	case "active", "inactive":
	default:
		fe.add("is_active", "The selected is active is invalid.")
	}
	if stringField(r, "image") == "" {
		fe.add("image", "The image field is required.")
	}

	catID, _ := toInt64(r["category_id"])
	subID, ok := toInt64(r["subcategory_id"])
	if !ok {
		fe.add("subcategory_id", "The subcategory id field is required.")
		return fe
	}
	subs, _ := s.collection("subcategory")
	if _, sub := subs.find(subID); sub == nil || sub.deleted() {
		fe.add("subcategory_id", "The selected subcategory id is invalid.")
	} else if parent, _ := toInt64(sub["category_id"]); parent != catID {
		fe.add("subcategory_id", "The subcategory does not belong to the selected category.")
	}
	return fe
}
