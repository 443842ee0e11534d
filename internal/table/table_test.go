package table

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-cms-admin/internal/liststate"
)

type category struct {
	ID          int
	Name        string
	Description string
}

func newCategoryTable() *State[category] {
	return New([]Column[category]{
		{
			Key: "name", Header: "Category", Editable: true, Required: true, Sortable: true, Filterable: true,
			Get: func(c category) string { return c.Name },
			Set: func(c *category, v string) { c.Name = v },
		},
		{
			Key: "description", Header: "Description", Editable: true,
			Get: func(c category) string { return c.Description },
			Set: func(c *category, v string) { c.Description = v },
		},
		{
			Key: "id", Header: "ID",
			Get: func(c category) string { return strconv.Itoa(c.ID) },
		},
	}, func(c category) string { return strconv.Itoa(c.ID) })
}

func pageOf(from, n int) []category {
	out := make([]category, n)
	for i := range out {
		out[i] = category{ID: from + i, Name: "cat-" + strconv.Itoa(from+i)}
	}
	return out
}

func TestState_NumberingAndPager(t *testing.T) {
	s := newCategoryTable()
	s.SetPage(pageOf(21, 10), 35, liststate.Pagination{PageIndex: 2, PageSize: 10})

	require.Equal(t, []string{"No", "Category", "Description", "ID"}, s.Headers())
	cells := s.Cells()
	require.Equal(t, "21", cells[0][0])
	require.Equal(t, "30", cells[9][0])

	require.Equal(t, 4, s.PageCount())
	require.True(t, s.CanPrev())
	require.True(t, s.CanNext())

	s.SetPage(pageOf(31, 5), 35, liststate.Pagination{PageIndex: 3, PageSize: 10})
	require.False(t, s.CanNext())

	s.SetPage(pageOf(1, 10), 35, liststate.Pagination{PageIndex: 0, PageSize: 10})
	require.False(t, s.CanPrev())
}

func TestState_EditBuffer(t *testing.T) {
	s := newCategoryTable()
	s.SetPage(pageOf(1, 10), 20, liststate.Pagination{PageIndex: 0, PageSize: 10})
	require.False(t, s.CanSave())

	require.NoError(t, s.Edit("2", "name", "Renamed"))
	require.True(t, s.IsEdited("2"))
	require.True(t, s.CanSave())
	require.Equal(t, "Renamed", s.Rows()[1].Name)

	require.NoError(t, s.Edit("3", "name", "  "))
	require.Equal(t, RequiredMessage, s.CellError("3", "name"))
	require.False(t, s.CanSave())

	require.NoError(t, s.Edit("3", "name", "Fixed"))
	require.Empty(t, s.CellError("3", "name"))
	require.True(t, s.CanSave())

	require.Error(t, s.Edit("2", "id", "9"))
	require.Error(t, s.Edit("2", "missing", "x"))
	require.Error(t, s.Edit("99", "name", "x"))

	// edits survive pagination
	s.SetPage(pageOf(11, 10), 20, liststate.Pagination{PageIndex: 1, PageSize: 10})
	require.NoError(t, s.Edit("12", "description", "second page"))
	pending := s.PendingEdits()
	require.Len(t, pending, 3)
	require.Equal(t, "Renamed", pending[0].Name)
	require.Equal(t, "Fixed", pending[1].Name)
	require.Equal(t, "second page", pending[2].Description)

	// an edited row from another page can still be changed
	require.NoError(t, s.Edit("2", "description", "again"))
	require.Len(t, s.PendingEdits(), 3)

	s.Saving = true
	require.False(t, s.CanSave())
	s.Saving = false

	s.Discard()
	require.False(t, s.CanSave())
	require.Empty(t, s.PendingEdits())
}
