// Package liststate mirrors list screen state (pagination, search,
// filters, sort) into a location query string.
package liststate

import (
	"net/url"
	"strings"

	errors "github.com/Laisky/errors/v2"
)

// Location is the addressable state of a screen: a path and its query.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation parses "/category?page=2&limit=10". A bare query
// ("?page=2") keeps an empty path.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, errors.Wrapf(err, "parse location %q", raw)
	}

	return Location{Path: u.Path, Query: u.Query()}, nil
}

// String renders the location with its query sorted by key.
func (l Location) String() string {
	q := l.Query.Encode()
	if q == "" {
		return l.Path
	}
	return l.Path + "?" + q
}

// Clone returns a copy that shares no query storage with l.
func (l Location) Clone() Location {
	out := Location{Path: l.Path, Query: make(url.Values, len(l.Query))}
	for k, vs := range l.Query {
		out.Query[k] = append([]string(nil), vs...)
	}
	return out
}
