// Package table holds the state of a paginated, editable data table:
// the current page, numbering, pager controls and the edit buffer.
package table

import (
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"

	"github.com/Laisky/laisky-cms-admin/internal/liststate"
)

// RequiredMessage is the cell error of an emptied required column.
const RequiredMessage = "Required"

// Column describes one data column.
type Column[T any] struct {
	Key        string
	Header     string
	Width      int
	Editable   bool
	Required   bool
	Sortable   bool
	Filterable bool

	Get func(T) string
	// Set is needed only for editable columns.
	Set func(*T, string)
}

type cellKey struct {
	row string
	col string
}

// State is the table of one list screen.
type State[T any] struct {
	columns []Column[T]
	rowID   func(T) string

	rows       []T
	total      int
	pagination liststate.Pagination

	edits      map[string]T
	editOrder  []string
	cellErrors map[cellKey]string

	Loading    bool
	Saving     bool
	Refetching bool
}

// New creates an empty table.
func New[T any](columns []Column[T], rowID func(T) string) *State[T] {
	return &State[T]{
		columns:    columns,
		rowID:      rowID,
		pagination: liststate.Pagination{PageSize: liststate.DefaultPageSize},
		edits:      make(map[string]T),
		cellErrors: make(map[cellKey]string),
	}
}

// Columns returns the data columns.
func (s *State[T]) Columns() []Column[T] {
	return s.columns
}

// Column looks a column up by key.
func (s *State[T]) Column(key string) (Column[T], bool) {
	for _, c := range s.columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column[T]{}, false
}

// SetPage replaces the visible rows with a server page.
func (s *State[T]) SetPage(rows []T, total int, p liststate.Pagination) {
	s.rows = rows
	s.total = total
	s.pagination = p
}

// Total is the server-reported row count.
func (s *State[T]) Total() int {
	return s.total
}

// Pagination returns the window the rows belong to.
func (s *State[T]) Pagination() liststate.Pagination {
	return s.pagination
}

// Rows returns the visible rows with pending edits applied.
func (s *State[T]) Rows() []T {
	out := make([]T, len(s.rows))
	for i, r := range s.rows {
		if edited, ok := s.edits[s.rowID(r)]; ok {
			out[i] = edited
			continue
		}
		out[i] = r
	}
	return out
}

// Headers returns "No" followed by the column headers.
func (s *State[T]) Headers() []string {
	out := []string{"No"}
	for _, c := range s.columns {
		out = append(out, c.Header)
	}
	return out
}

// Cells renders the visible rows, each led by its ordinal.
func (s *State[T]) Cells() [][]string {
	rows := s.Rows()
	out := make([][]string, len(rows))
	for i, r := range rows {
		line := []string{strconv.Itoa(liststate.RowNumber(i, s.pagination))}
		for _, c := range s.columns {
			line = append(line, c.Get(r))
		}
		out[i] = line
	}
	return out
}

// PageCount is derived from the server total.
func (s *State[T]) PageCount() int {
	return liststate.PageCount(s.total, s.pagination.PageSize)
}

// CanPrev enables "first" and "previous".
func (s *State[T]) CanPrev() bool {
	return liststate.CanPrev(s.pagination)
}

// CanNext enables "next" and "last".
func (s *State[T]) CanNext() bool {
	return liststate.CanNext(s.pagination, s.PageCount())
}

func (s *State[T]) findRow(id string) (T, bool) {
	if r, ok := s.edits[id]; ok {
		return r, true
	}
	for _, r := range s.rows {
		if s.rowID(r) == id {
			return r, true
		}
	}

	var zero T
	return zero, false
}

// Edit changes one cell and keeps the row in the edit buffer.
// Emptying a required cell records RequiredMessage instead of failing.
func (s *State[T]) Edit(rowID, colKey, value string) error {
	col, ok := s.Column(colKey)
	if !ok {
		return errors.Errorf("unknown column %q", colKey)
	}
	if !col.Editable || col.Set == nil {
		return errors.Errorf("column %q is not editable", colKey)
	}

	row, ok := s.findRow(rowID)
	if !ok {
		return errors.Errorf("row %q is not loaded", rowID)
	}

	col.Set(&row, value)
	if _, seen := s.edits[rowID]; !seen {
		s.editOrder = append(s.editOrder, rowID)
	}
	s.edits[rowID] = row

	key := cellKey{row: rowID, col: colKey}
	if col.Required && strings.TrimSpace(value) == "" {
		s.cellErrors[key] = RequiredMessage
	} else {
		delete(s.cellErrors, key)
	}

	return nil
}

// SetCellError records an error for one cell; an empty msg clears it.
func (s *State[T]) SetCellError(rowID, colKey, msg string) {
	key := cellKey{row: rowID, col: colKey}
	if msg == "" {
		delete(s.cellErrors, key)
		return
	}
	s.cellErrors[key] = msg
}

// CellError returns the message of one cell.
func (s *State[T]) CellError(rowID, colKey string) string {
	return s.cellErrors[cellKey{row: rowID, col: colKey}]
}

// HasErrors reports whether any cell is invalid.
func (s *State[T]) HasErrors() bool {
	return len(s.cellErrors) > 0
}

// IsEdited reports whether a row has pending changes.
func (s *State[T]) IsEdited(rowID string) bool {
	_, ok := s.edits[rowID]
	return ok
}

// PendingEdits returns the edited rows in the order they were first touched.
// Edits survive page changes until saved or discarded.
func (s *State[T]) PendingEdits() []T {
	out := make([]T, 0, len(s.editOrder))
	for _, id := range s.editOrder {
		out = append(out, s.edits[id])
	}
	return out
}

// CanSave is true when there are edits and no invalid cell.
func (s *State[T]) CanSave() bool {
	return len(s.edits) > 0 && !s.HasErrors() && !s.Saving
}

// Discard drops the edit buffer.
func (s *State[T]) Discard() {
	s.edits = make(map[string]T)
	s.editOrder = nil
	s.cellErrors = make(map[cellKey]string)
}
