package liststate

import (
	"net/url"
	"slices"
	"strconv"

	errors "github.com/Laisky/errors/v2"
)

// Query keys of the location.
const (
	KeyPage   = "page"
	KeyLimit  = "limit"
	KeySearch = "search"
	KeySort   = "sort"
	KeyDesc   = "desc"
)

// Defaults applied when the location carries nothing usable.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Pagination is the 0-based page index and the page size.
type Pagination struct {
	PageIndex int
	PageSize  int
}

// Filter is one column filter.
type Filter struct {
	Field string
	Value string
}

// Sort orders the list by one column.
type Sort struct {
	Field string
	Desc  bool
}

// State is the snapshot of a list screen.
type State struct {
	Pagination Pagination
	Search     string
	Filters    []Filter
	Sort       *Sort
}

// Synchronizer keeps the list state and its location in lockstep.
// Every setter updates both before returning.
//
// Changing search, a filter, or the sort always goes back to the first page.
type Synchronizer struct {
	loc        Location
	filterKeys []string

	page    *Bound[int]
	limit   *Bound[int]
	search  *Bound[string]
	sort    *Bound[string]
	desc    *Bound[bool]
	filters map[string]*Bound[string]
}

// NewSynchronizer derives the initial state from loc. filterKeys are the
// resource specific filter columns, also used as query keys.
func NewSynchronizer(loc Location, filterKeys ...string) *Synchronizer {
	loc = loc.Clone()
	s := &Synchronizer{
		loc:        loc,
		filterKeys: append([]string(nil), filterKeys...),
		page:       Bind(IntParam(KeyPage, DefaultPage), loc.Query),
		limit:      Bind(IntParam(KeyLimit, DefaultPageSize), loc.Query),
		search:     Bind(StringParam(KeySearch), loc.Query),
		sort:       Bind(StringParam(KeySort), loc.Query),
		desc:       Bind(BoolParam(KeyDesc), loc.Query),
		filters:    make(map[string]*Bound[string], len(filterKeys)),
	}
	for _, k := range filterKeys {
		s.filters[k] = Bind(StringParam(k), loc.Query)
	}

	// normalise: drop invalid or default values from the location
	s.page.Set(s.page.Get())
	s.limit.Set(s.limit.Get())
	s.search.Set(s.search.Get())
	s.sort.Set(s.sort.Get())
	if s.sort.Get() == "" {
		s.desc.Reset()
	} else {
		s.desc.Set(s.desc.Get())
	}
	for _, b := range s.filters {
		b.Set(b.Get())
	}

	return s
}

// Location returns a copy of the mirrored location.
func (s *Synchronizer) Location() Location {
	return s.loc.Clone()
}

// FilterKeys lists the filterable columns.
func (s *Synchronizer) FilterKeys() []string {
	return append([]string(nil), s.filterKeys...)
}

// Pagination returns the current page window.
func (s *Synchronizer) Pagination() Pagination {
	return Pagination{PageIndex: s.page.Get() - 1, PageSize: s.limit.Get()}
}

// State returns a snapshot of the whole list state.
func (s *Synchronizer) State() State {
	st := State{
		Pagination: s.Pagination(),
		Search:     s.search.Get(),
	}
	for _, k := range s.filterKeys {
		if v := s.filters[k].Get(); v != "" {
			st.Filters = append(st.Filters, Filter{Field: k, Value: v})
		}
	}
	if field := s.sort.Get(); field != "" {
		st.Sort = &Sort{Field: field, Desc: s.desc.Get()}
	}

	return st
}

// SetPagination applies a page change. When the page size changes the page
// index is recomputed so the first row of the old page stays visible.
func (s *Synchronizer) SetPagination(p Pagination) {
	cur := s.Pagination()
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}

	idx := p.PageIndex
	if p.PageSize != cur.PageSize {
		idx = cur.PageIndex * cur.PageSize / p.PageSize
	}
	if idx < 0 {
		idx = 0
	}

	s.limit.Set(p.PageSize)
	s.page.Set(idx + 1)
}

// GoTo moves to a 0-based page index keeping the page size.
func (s *Synchronizer) GoTo(pageIndex int) {
	s.SetPagination(Pagination{PageIndex: pageIndex, PageSize: s.limit.Get()})
}

// SetSearch sets the global text filter.
func (s *Synchronizer) SetSearch(text string) {
	s.search.Set(text)
	s.page.Reset()
}

// SetFilter sets one column filter. An empty value clears it.
func (s *Synchronizer) SetFilter(field, value string) error {
	b, ok := s.filters[field]
	if !ok {
		return errors.Errorf("column %q is not filterable, expect one of %v", field, s.filterKeys)
	}

	b.Set(value)
	s.page.Reset()
	return nil
}

// ClearFilter removes one column filter, or all of them when field is "".
func (s *Synchronizer) ClearFilter(field string) {
	for k, b := range s.filters {
		if field == "" || field == k {
			b.Reset()
		}
	}
	s.page.Reset()
}

// SetSort orders by field.
func (s *Synchronizer) SetSort(field string, desc bool) {
	if field == "" {
		s.ClearSort()
		return
	}

	s.sort.Set(field)
	s.desc.Set(desc)
	s.page.Reset()
}

// ClearSort drops the ordering.
func (s *Synchronizer) ClearSort() {
	s.sort.Reset()
	s.desc.Reset()
	s.page.Reset()
}

// Clamp moves an out-of-range page back to the last page once the server
// reported total. It reports whether the page changed.
func (s *Synchronizer) Clamp(total int) bool {
	p := s.Pagination()
	last := PageCount(total, p.PageSize) - 1
	if last < 0 {
		last = 0
	}
	if p.PageIndex <= last {
		return false
	}

	s.page.Set(last + 1)
	return true
}

// Params builds the list request query.
func (s *Synchronizer) Params() url.Values {
	p := s.Pagination()
	q := url.Values{
		"limit": {strconv.Itoa(p.PageSize)},
		"page":  {strconv.Itoa(p.PageIndex + 1)},
	}
	if v := s.search.Get(); v != "" {
		q.Set("search", v)
	}

	order := "asc"
	if field := s.sort.Get(); field != "" {
		q.Set("orderBy", field)
		if s.desc.Get() {
			order = "desc"
		}
	}
	q.Set("order", order)

	keys := slices.Clone(s.filterKeys)
	slices.Sort(keys)
	for _, k := range keys {
		if v := s.filters[k].Get(); v != "" {
			q.Set(k, v)
		}
	}

	return q
}
