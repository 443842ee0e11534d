package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	btable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/liststate"
	"github.com/Laisky/laisky-cms-admin/internal/notify"
	"github.com/Laisky/laisky-cms-admin/internal/query"
	"github.com/Laisky/laisky-cms-admin/internal/resource"
	"github.com/Laisky/laisky-cms-admin/internal/router"
	"github.com/Laisky/laisky-cms-admin/internal/table"
)

// listScreen is one resource table bound to the location query.
type listScreen struct {
	route   router.Route
	browser resource.Browser
	sync    *liststate.Synchronizer
	data    *table.State[resource.Record]
	view    btable.Model
	err     error
	loaded  bool
}

type listLoadedMsg struct {
	seq  int
	page query.Page[resource.Record]
	err  error
}

// mutationMsg reports a save or delete issued from the list.
type mutationMsg struct {
	seq     int
	message string
	err     error
	saved   []resource.Record
}

func newListScreen(rt router.Route, b resource.Browser, loc liststate.Location) *listScreen {
	l := &listScreen{
		route:   rt,
		browser: b,
		sync:    liststate.NewSynchronizer(loc, b.Spec().FilterKeys...),
		data:    resource.NewTable(rt.Resource),
	}

	l.view = btable.New(
		btable.WithColumns(l.columns()),
		btable.WithFocused(true),
		btable.WithHeight(10),
	)
	styles := btable.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(secondaryColor).
		Background(selectedBg).
		Bold(true)
	l.view.SetStyles(styles)
	return l
}

// columns leads with "No" and marks the sorted column.
func (l *listScreen) columns() []btable.Column {
	sort := l.sync.State().Sort
	cols := []btable.Column{{Title: "No", Width: 5}}
	for _, c := range l.data.Columns() {
		title := c.Header
		if sort != nil && sort.Field == c.Key {
			if sort.Desc {
				title += " ↓"
			} else {
				title += " ↑"
			}
		}
		width := c.Width
		if width <= 0 {
			width = 16
		}
		cols = append(cols, btable.Column{Title: title, Width: width})
	}
	return cols
}

// refresh copies the table state into the bubbles table. Edited rows carry
// a "*" next to their number and invalid cells show their message.
func (l *listScreen) refresh() {
	rows := l.data.Rows()
	cells := l.data.Cells()
	out := make([]btable.Row, len(cells))
	for i, line := range cells {
		id := string(rows[i].EntityID())
		if l.data.IsEdited(id) {
			line[0] += "*"
		}
		for j, c := range l.data.Columns() {
			if msg := l.data.CellError(id, c.Key); msg != "" {
				line[j+1] = "! " + msg
			}
		}
		out[i] = btable.Row(line)
	}

	l.view.SetRows(nil)
	l.view.SetColumns(l.columns())
	l.view.SetRows(out)
	if c := l.view.Cursor(); c >= len(out) && len(out) > 0 {
		l.view.SetCursor(len(out) - 1)
	}
}

func (l *listScreen) selected() (resource.Record, bool) {
	rows := l.data.Rows()
	i := l.view.Cursor()
	if i < 0 || i >= len(rows) {
		return nil, false
	}
	return rows[i], true
}

func (l *listScreen) columnKeys(pick func(table.Column[resource.Record]) bool) []string {
	var out []string
	for _, c := range l.data.Columns() {
		if pick(c) {
			out = append(out, c.Key)
		}
	}
	return out
}

// loadList fetches the page the location points at.
func (m Model) loadList() tea.Cmd {
	l := m.list
	if l.loaded {
		l.data.Refetching = true
	} else {
		l.data.Loading = true
	}

	b, ctx, seq, params := l.browser, m.ctx, m.seq, l.sync.Params()
	return func() tea.Msg {
		page, err := b.Browse(ctx, params)
		return listLoadedMsg{seq: seq, page: page, err: err}
	}
}

func (m Model) onListLoaded(msg listLoadedMsg) (Model, tea.Cmd) {
	if msg.seq != m.seq || m.list == nil {
		return m, nil
	}

	l := m.list
	l.data.Loading, l.data.Refetching = false, false
	if msg.err != nil {
		l.err = msg.err
		if api.IsUnauthorized(msg.err) {
			return m.syncRoute()
		}
		return m, nil
	}

	l.err = nil
	if l.sync.Clamp(msg.page.TotalCount) {
		return m.listStateChanged()
	}

	l.loaded = true
	l.data.SetPage(msg.page.Items, msg.page.TotalCount, l.sync.Pagination())
	l.refresh()
	return m, nil
}

// listStateChanged mirrors the list state into the history and refetches.
func (m Model) listStateChanged() (Model, tea.Cmd) {
	match := m.app.Router.Replace(m.list.sync.Location())
	if match.Location.Path != m.list.sync.Location().Path {
		return m.enter(match)
	}
	m.match = match
	return m, m.loadList()
}

// updateList handles key events on a list screen
func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	l := m.list
	p := l.sync.Pagination()

	switch {
	case key.Matches(msg, keys.Next):
		if l.data.CanNext() {
			l.sync.GoTo(p.PageIndex + 1)
			return m.listStateChanged()
		}
		return m, nil
	case key.Matches(msg, keys.Prev):
		if l.data.CanPrev() {
			l.sync.GoTo(p.PageIndex - 1)
			return m.listStateChanged()
		}
		return m, nil
	case key.Matches(msg, keys.First):
		if l.data.CanPrev() {
			l.sync.GoTo(0)
			return m.listStateChanged()
		}
		return m, nil
	case key.Matches(msg, keys.Last):
		if l.data.CanNext() {
			l.sync.GoTo(l.data.PageCount() - 1)
			return m.listStateChanged()
		}
		return m, nil
	case key.Matches(msg, keys.Refresh):
		m.app.Cache.Invalidate(l.route.Resource)
		return m, m.loadList()

	case key.Matches(msg, keys.Search):
		m.prompt = newPrompt(promptSearch, "Search", l.sync.State().Search, "text, empty to clear")
		return m, textinput.Blink
	case key.Matches(msg, keys.Sort):
		m.prompt = newPrompt(promptSort, "Sort by", currentSort(l.sync.State().Sort),
			"field or -field, one of "+strings.Join(l.columnKeys(func(c table.Column[resource.Record]) bool { return c.Sortable }), ", "))
		return m, textinput.Blink
	case key.Matches(msg, keys.Filter):
		m.prompt = newPrompt(promptFilter, "Filter", "",
			"field=value, one of "+strings.Join(l.sync.FilterKeys(), ", "))
		return m, textinput.Blink
	case key.Matches(msg, keys.Edit):
		row, ok := l.selected()
		if !ok {
			return m, nil
		}
		editable := l.columnKeys(func(c table.Column[resource.Record]) bool { return c.Editable })
		if len(editable) == 0 {
			m.app.Notices.Toast(notify.Info, l.route.Title+" has no editable column")
			return m, nil
		}
		m.prompt = newPrompt(promptEdit, "Edit #"+string(row.EntityID()), editable[0]+"=",
			"column=value, one of "+strings.Join(editable, ", "))
		m.prompt.rowID = string(row.EntityID())
		return m, textinput.Blink
	case key.Matches(msg, keys.Save):
		return m.saveEdits()
	case key.Matches(msg, keys.Discard):
		l.data.Discard()
		l.refresh()
		return m, nil
	case key.Matches(msg, keys.Delete):
		return m.confirmDelete()
	case key.Matches(msg, keys.Create):
		return m.openCreateForm()
	case key.Matches(msg, keys.Enter):
		if l.route.Resource != "post" {
			return m, nil
		}
		if row, ok := l.selected(); ok && !row.EntityID().IsTemporary() {
			return m.navigate("/post/" + string(row.EntityID()))
		}
		return m, nil
	}

	var cmd tea.Cmd
	l.view, cmd = l.view.Update(msg)
	return m, cmd
}

func currentSort(s *liststate.Sort) string {
	if s == nil {
		return ""
	}
	if s.Desc {
		return "-" + s.Field
	}
	return s.Field
}

// submitPrompt applies a search, sort, filter or cell edit.
func (m Model) submitPrompt(p *prompt) (Model, tea.Cmd) {
	l := m.list
	if l == nil {
		return m, nil
	}
	value := strings.TrimSpace(p.input.Value())

	switch p.kind {
	case promptSearch:
		l.sync.SetSearch(value)
	case promptSort:
		if value == "" {
			l.sync.ClearSort()
			break
		}
		desc := strings.HasPrefix(value, "-")
		field := strings.TrimPrefix(value, "-")
		if c, ok := l.data.Column(field); !ok || !c.Sortable {
			m.app.Notices.Toast(notify.Warning, fmt.Sprintf("Cannot sort by %q", field))
			return m, nil
		}
		l.sync.SetSort(field, desc)
	case promptFilter:
		field, val, ok := strings.Cut(value, "=")
		if !ok {
			m.app.Notices.Toast(notify.Warning, "Filter must look like field=value")
			return m, nil
		}
		field, val = strings.TrimSpace(field), strings.TrimSpace(val)
		if val == "" {
			l.sync.ClearFilter(field)
			break
		}
		if err := l.sync.SetFilter(field, val); err != nil {
			m.app.Notices.Toast(notify.Warning, err.Error())
			return m, nil
		}
	case promptEdit:
		col, val, ok := strings.Cut(p.input.Value(), "=")
		if !ok {
			m.app.Notices.Toast(notify.Warning, "Edit must look like column=value")
			return m, nil
		}
		if err := l.data.Edit(p.rowID, strings.TrimSpace(col), val); err != nil {
			m.app.Notices.Toast(notify.Warning, err.Error())
		}
		l.refresh()
		return m, nil
	}

	return m.listStateChanged()
}

// saveEdits sends every pending row edit as one mass update.
func (m Model) saveEdits() (Model, tea.Cmd) {
	l := m.list
	switch {
	case l.data.HasErrors():
		m.app.Notices.Toast(notify.Warning, "Fix the invalid cells before saving")
		return m, nil
	case !l.data.CanSave():
		m.app.Notices.Toast(notify.Info, "Nothing to save")
		return m, nil
	}

	rows := l.data.PendingEdits()
	l.data.Saving = true
	b, ctx, seq := l.browser, m.ctx, m.seq
	return m, func() tea.Msg {
		message, err := b.MassUpdateRecords(ctx, rows)
		return mutationMsg{seq: seq, message: message, err: err, saved: rows}
	}
}

func (m Model) confirmDelete() (Model, tea.Cmd) {
	l := m.list
	row, ok := l.selected()
	if !ok {
		return m, nil
	}
	id := row.EntityID()
	if id.IsTemporary() {
		m.app.Notices.Toast(notify.Info, "This row is still being created")
		return m, nil
	}

	m.confirm = &confirmDialog{
		title:   "Delete " + l.route.Title,
		message: fmt.Sprintf("Are you sure you want to delete #%s?", id),
		onYes: func(m Model) (Model, tea.Cmd) {
			if m.list == nil {
				return m, nil
			}
			b, ctx, seq := m.list.browser, m.ctx, m.seq
			return m, func() tea.Msg {
				message, err := b.Delete(ctx, id)
				return mutationMsg{seq: seq, message: message, err: err}
			}
		},
	}
	return m, nil
}

// onMutation reports the outcome and refetches on success. Field errors of
// a failed mass update come back as "<index>.<field>" and land on the cell.
func (m Model) onMutation(msg mutationMsg) (Model, tea.Cmd) {
	if msg.seq != m.seq || m.list == nil {
		return m, nil
	}

	l := m.list
	l.data.Saving = false
	if msg.err != nil {
		if typed, ok := api.AsError(msg.err); ok && msg.saved != nil {
			for name, text := range typed.FieldErrors() {
				idx, field, ok := strings.Cut(name, ".")
				if !ok {
					continue
				}
				i, err := strconv.Atoi(idx)
				if err != nil || i < 0 || i >= len(msg.saved) {
					continue
				}
				l.data.SetCellError(string(msg.saved[i].EntityID()), field, text)
			}
			l.refresh()
		}
		m.app.Notices.Toast(notify.Error, api.Message(msg.err))
		if api.IsUnauthorized(msg.err) {
			return m.syncRoute()
		}
		return m, nil
	}

	if msg.saved != nil {
		l.data.Discard()
	}
	text := msg.message
	if text == "" {
		text = "Done"
	}
	m.app.Notices.Toast(notify.Success, text)
	return m, m.loadList()
}

// renderList renders the table with its pager
func (m Model) renderList() string {
	l := m.list
	title := GetTitleStyle().Render(l.route.Title)

	var body string
	switch {
	case l.err != nil && !l.loaded:
		body = GetErrorStyle().Render(api.Message(l.err)) + "\n" +
			GetHelpStyle().Render("r: retry")
	case l.data.Loading:
		body = m.spinner.View() + " Loading..."
	case len(l.data.Rows()) == 0:
		body = GetSubtitleStyle().Render("No data")
	default:
		body = l.view.View()
	}

	st := l.sync.State()
	var filters []string
	if st.Search != "" {
		filters = append(filters, "search="+st.Search)
	}
	for _, f := range st.Filters {
		filters = append(filters, f.Field+"="+f.Value)
	}

	p := l.data.Pagination()
	pager := fmt.Sprintf("Page %d of %d · %d total", p.PageIndex+1, max(l.data.PageCount(), 1), l.data.Total())
	if edits := len(l.data.PendingEdits()); edits > 0 {
		pager += fmt.Sprintf(" · %d unsaved", edits)
	}
	if l.err != nil && l.loaded {
		pager += " · " + GetErrorStyle().Render(api.Message(l.err))
	}

	parts := []string{title}
	if len(filters) > 0 {
		parts = append(parts, GetSubtitleStyle().Render(strings.Join(filters, " · ")))
	}
	parts = append(parts, body, GetSubtitleStyle().Render(pager))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
