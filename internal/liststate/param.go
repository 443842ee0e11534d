package liststate

import (
	"strconv"
	"strings"
)

// Param describes one query key bound to a typed value.
type Param[T any] struct {
	Key     string
	Default T
	// Parse returns ok=false for absent or invalid input.
	Parse  func(string) (T, bool)
	Format func(T) string
}

// Bound is a value kept equal to its query key.
type Bound[T any] struct {
	param Param[T]
	query map[string][]string
	value T
}

// Bind reads the initial value from query, falling back to the default.
func Bind[T any](p Param[T], query map[string][]string) *Bound[T] {
	b := &Bound[T]{param: p, query: query, value: p.Default}
	if vs := query[p.Key]; len(vs) > 0 {
		if v, ok := p.Parse(vs[0]); ok {
			b.value = v
		}
	}

	return b
}

// Get returns the in-memory value.
func (b *Bound[T]) Get() T {
	return b.value
}

// Set writes the query key, removing it when v is empty or the default,
// then stores v.
func (b *Bound[T]) Set(v T) {
	formatted := b.param.Format(v)
	if formatted == "" || formatted == b.param.Format(b.param.Default) {
		delete(b.query, b.param.Key)
	} else {
		b.query[b.param.Key] = []string{formatted}
	}

	b.value = v
}

// Reset restores the default.
func (b *Bound[T]) Reset() {
	b.Set(b.param.Default)
}

// IntParam is a positive integer key.
func IntParam(key string, def int) Param[int] {
	return Param[int]{
		Key:     key,
		Default: def,
		Parse: func(s string) (int, bool) {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 1 {
				return 0, false
			}
			return n, true
		},
		Format: strconv.Itoa,
	}
}

// StringParam is a free text key with an empty default.
func StringParam(key string) Param[string] {
	return Param[string]{
		Key:    key,
		Parse:  func(s string) (string, bool) { return s, s != "" },
		Format: func(s string) string { return s },
	}
}

// BoolParam accepts "true" (and "1") as true.
func BoolParam(key string) Param[bool] {
	return Param[bool]{
		Key: key,
		Parse: func(s string) (bool, bool) {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "1":
				return true, true
			case "false", "0":
				return false, true
			default:
				return false, false
			}
		},
		Format: strconv.FormatBool,
	}
}
