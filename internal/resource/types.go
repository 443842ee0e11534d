package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
)

// ID is a record id. Server ids arrive as numbers or strings; optimistic
// rows carry a temporary uuid.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode id")
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Wrapf(err, "decode id %s", data)
		}
		*id = ID(n.String())
	}

	return nil
}

// MarshalJSON writes numeric ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.Numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Numeric reports whether the id is a plain integer.
func (id ID) Numeric() bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

// IsTemporary reports whether the id was assigned locally.
func (id ID) IsTemporary() bool {
	return strings.HasPrefix(string(id), tempIDPrefix)
}

func (id ID) String() string {
	return string(id)
}

const tempIDPrefix = "tmp-"

// Flag is a 0/1 switch that also accepts booleans and quoted digits.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	v := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(v) {
	case "1", "true", "active":
		*f = true
	case "0", "false", "", "null", "inactive":
		*f = false
	default:
		return errors.Errorf("invalid flag %s", data)
	}
	return nil
}

// MarshalJSON writes 1 or 0.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// String returns "1" or "0".
func (f Flag) String() string {
	if f {
		return "1"
	}
	return "0"
}

// ParseFlag reads "1"/"0"/"true"/"false".
func ParseFlag(s string) (Flag, error) {
	var f Flag
	err := f.UnmarshalJSON([]byte(s))
	return f, err
}

// Entity is implemented by every resource row.
type Entity[T any] interface {
	EntityID() ID
	WithID(ID) T
}

// Category groups subcategories.
type Category struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	DeletedAt   string `json:"deleted_at,omitempty"`
}

func (c Category) EntityID() ID { return c.ID }

func (c Category) WithID(id ID) Category {
	c.ID = id
	return c
}

// Subcategory belongs to one category.
type Subcategory struct {
	ID           ID     `json:"id"`
	CategoryID   ID     `json:"category_id"`
	Subcategory  string `json:"subcategory"`
	Slug         string `json:"slug,omitempty"`
	Description  string `json:"description"`
	IsActive     Flag   `json:"is_active"`
	CategoryName string `json:"category_name,omitempty"`
}

func (s Subcategory) EntityID() ID { return s.ID }

func (s Subcategory) WithID(id ID) Subcategory {
	s.ID = id
	return s
}

// Post is a blog article.
type Post struct {
	ID              ID     `json:"id"`
	CategoryID      ID     `json:"category_id"`
	SubcategoryID   ID     `json:"subcategory_id"`
	Title           string `json:"title"`
	Slug            string `json:"slug,omitempty"`
	Image           string `json:"image,omitempty"`
	MetaDescription string `json:"meta_description"`
	MetaKeyword     string `json:"meta_keyword"`
	SeoTitle        string `json:"seo_title"`
	Content         string `json:"content"`
	IsActive        string `json:"is_active"`
	CreatedAt       string `json:"created_at,omitempty"`
	Author          string `json:"author,omitempty"`
}

func (p Post) EntityID() ID { return p.ID }

func (p Post) WithID(id ID) Post {
	p.ID = id
	return p
}

// Record is a row of a resource without a dedicated type.
type Record map[string]any

// EntityID reads the "id" key.
func (r Record) EntityID() ID {
	switch v := r["id"].(type) {
	case nil:
		return ""
	case string:
		return ID(v)
	case float64:
		return ID(strconv.FormatFloat(v, 'f', -1, 64))
	case json.Number:
		return ID(v.String())
	default:
		return ID(fmt.Sprint(v))
	}
}

// WithID returns a copy with "id" replaced.
func (r Record) WithID(id ID) Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out["id"] = string(id)
	return out
}

// Option is an entry of a select box.
type Option struct {
	Value  ID
	Label  string
	Parent ID
}

// Result is the outcome of a mutation.
type Result[T any] struct {
	Message string
	Item    *T
}
