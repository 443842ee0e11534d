package tui

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/app"
	"github.com/Laisky/laisky-cms-admin/internal/liststate"
	"github.com/Laisky/laisky-cms-admin/internal/notify"
	"github.com/Laisky/laisky-cms-admin/internal/resource"
	"github.com/Laisky/laisky-cms-admin/internal/router"
)

// ViewState represents the current screen of the TUI
type ViewState int

const (
	// ViewLogin is the sign-in screen
	ViewLogin ViewState = iota
	// ViewDashboard shows the totals of the main resources
	ViewDashboard
	// ViewList is a paginated resource table
	ViewList
	// ViewForm is a create or edit form
	ViewForm
	// ViewNotFound is the error page of unknown locations
	ViewNotFound
)

const (
	toastTTL   = 4 * time.Second
	maxToasts  = 3
	chromeRows = 12

	postEditPattern = "/post/:id"
)

// dashboardResources are counted on the dashboard.
var dashboardResources = []string{"category", "subcategory", "post", "message", "comment"}

type toast struct {
	id     int
	notice notify.Notice
}

// confirmDialog asks before a destructive action.
type confirmDialog struct {
	title   string
	message string
	onYes   func(Model) (Model, tea.Cmd)
}

// Model is the main TUI model following the Bubble Tea architecture
type Model struct {
	app *app.App

	// Current screen and the route it was entered from
	state ViewState
	match router.Match

	// base is the program context; ctx is cancelled when the screen is left
	base   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	seq    int

	// Sidebar
	menu         []router.Route
	menuCursor   int
	sidebarFocus bool

	// Screens
	login  *loginScreen
	list   *listScreen
	form   *formScreen
	counts map[string]string

	// Overlays
	prompt  *prompt
	confirm *confirmDialog
	alerts  []notify.Notice
	toasts  []toast

	// invalidated carries the resources the cache marked stale
	invalidated chan string
	unsubscribe []func()

	toastSeq int
	spinner  spinner.Model
	help     help.Model
	pending  tea.Cmd

	// Window dimensions
	width  int
	height int

	// Quitting state
	quitting bool
}

// keyMap defines the key bindings for the TUI
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Back   key.Binding
	Quit   key.Binding
	ForceQ key.Binding
	Help   key.Binding
	Logout key.Binding

	Next    key.Binding
	Prev    key.Binding
	First   key.Binding
	Last    key.Binding
	Search  key.Binding
	Sort    key.Binding
	Filter  key.Binding
	Edit    key.Binding
	Save    key.Binding
	Discard key.Binding
	Delete  key.Binding
	Create  key.Binding
	Refresh key.Binding
	Left    key.Binding
	Right   key.Binding
	Yes     key.Binding
	No      key.Binding
	Submit  key.Binding
	Sidebar key.Binding
	Dismiss key.Binding

	FieldNext key.Binding
	FieldPrev key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	ForceQ: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Logout: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "logout"),
	),
	Next: key.NewBinding(
		key.WithKeys("n", "right"),
		key.WithHelp("n/→", "next page"),
	),
	Prev: key.NewBinding(
		key.WithKeys("p", "left"),
		key.WithHelp("p/←", "previous page"),
	),
	First: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "first page"),
	),
	Last: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "last page"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Sort: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sort"),
	),
	Filter: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "filter"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit cell"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	Discard: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "discard edits"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Create: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "create"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Left: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "previous option"),
	),
	Right: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "next option"),
	),
	Yes: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "confirm"),
	),
	No: key.NewBinding(
		key.WithKeys("n", "N", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
	Submit: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "submit"),
	),
	Sidebar: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "menu"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("enter", "esc"),
		key.WithHelp("enter", "ok"),
	),
	FieldNext: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab/↓", "next field"),
	),
	FieldPrev: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("shift+tab/↑", "previous field"),
	),
}

type (
	noticeMsg       struct{}
	invalidatedMsg  struct{ resource string }
	toastExpiredMsg struct{ id int }
	countMsg        struct {
		seq   int
		name  string
		total int
		err   error
	}
	logoutMsg struct{ err error }
)

// NewModel creates the dashboard and resolves location through the
// route gate. An empty location opens the dashboard.
func NewModel(ctx context.Context, a *app.App, location string) (Model, error) {
	if a == nil {
		return Model{}, errors.New("app is nil")
	}

	loc := liststate.Location{Path: router.PathHome}
	if strings.TrimSpace(location) != "" {
		var err error
		if loc, err = liststate.ParseLocation(location); err != nil {
			return Model{}, err
		}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = GetProgressStyle()

	m := Model{
		app:     a,
		base:    ctx,
		menu:    a.Router.Menu(),
		spinner: sp,
		help:    help.New(),

		invalidated: make(chan string, 16),
	}
	for _, name := range a.Catalog.Names() {
		ch := m.invalidated
		m.unsubscribe = append(m.unsubscribe, a.Cache.Subscribe(name, func() {
			select {
			case ch <- name:
			default:
			}
		}))
	}
	m, m.pending = m.enter(a.Router.Push(loc))
	return m, nil
}

// State returns the current screen.
func (m Model) State() ViewState {
	return m.state
}

// Location is the addressable state of the current screen.
func (m Model) Location() liststate.Location {
	return m.match.Location
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitNotice(m.app.Notices),
		waitInvalidated(m.invalidated),
		m.pending,
	)
}

// Close drops the cache subscriptions of the model.
func (m Model) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
}

func waitInvalidated(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		return invalidatedMsg{resource: <-ch}
	}
}

func waitNotice(c *notify.Center) tea.Cmd {
	return func() tea.Msg {
		<-c.Wait()
		return noticeMsg{}
	}
}

// enter leaves the current screen and opens the one of match.
// Pending requests of the old screen are cancelled and their results dropped.
func (m Model) enter(match router.Match) (Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.seq++
	m.ctx, m.cancel = context.WithCancel(m.base)

	m.match = match
	m.login, m.list, m.form, m.counts = nil, nil, nil, nil
	m.prompt, m.confirm = nil, nil
	m.sidebarFocus = false
	for i, r := range m.menu {
		if r.Pattern == match.Route.Pattern {
			m.menuCursor = i
		}
	}

	rt := match.Route
	switch {
	case rt.Pattern == router.PathLogin:
		m.state = ViewLogin
		m.login = newLoginScreen()
		return m, textinput.Blink
	case rt.Pattern == router.PathHome:
		m.state = ViewDashboard
		m.counts = make(map[string]string, len(dashboardResources))
		return m, m.loadCounts()
	case rt.Pattern == postEditPattern:
		m.state = ViewForm
		m.form = newPostForm(resource.ID(match.Param("id")), nil)
		return m, m.loadPost(m.form.postID)
	case rt.Resource != "":
		b, ok := m.app.Catalog.Lookup(rt.Resource)
		if !ok {
			m.state = ViewNotFound
			return m, nil
		}
		m.state = ViewList
		m.list = newListScreen(rt, b, match.Location)
		m.resizeTable()
		return m, m.loadList()
	default:
		m.state = ViewNotFound
		return m, nil
	}
}

// navigate pushes raw onto the history and opens it.
func (m Model) navigate(raw string) (Model, tea.Cmd) {
	match, err := m.app.Router.Navigate(raw)
	if err != nil {
		m.app.Notices.Toast(notify.Error, err.Error())
		return m, nil
	}
	return m.enter(match)
}

// syncRoute leaves a protected screen once the session is gone.
func (m Model) syncRoute() (Model, tea.Cmd) {
	if m.state == ViewLogin || !m.match.Route.Protected {
		return m, nil
	}
	if m.app.Sessions.IsAuthenticated() {
		return m, nil
	}
	if cur, ok := m.app.Router.Current(); ok && cur.Location.Path == router.PathLogin {
		return m.enter(cur)
	}
	return m.enter(m.app.Router.Refresh())
}

func (m Model) loadCounts() tea.Cmd {
	ctx, seq := m.ctx, m.seq
	params := url.Values{"limit": {"1"}, "page": {"1"}}

	cmds := make([]tea.Cmd, 0, len(dashboardResources))
	for _, name := range dashboardResources {
		b, ok := m.app.Catalog.Lookup(name)
		if !ok {
			continue
		}
		cmds = append(cmds, func() tea.Msg {
			page, err := b.Browse(ctx, params)
			return countMsg{seq: seq, name: name, total: page.TotalCount, err: err}
		})
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeTable()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case noticeMsg:
		var cmd, routeCmd tea.Cmd
		m, cmd = m.collectNotices()
		m, routeCmd = m.syncRoute()
		return m, tea.Batch(cmd, routeCmd)

	case invalidatedMsg:
		return m.onInvalidated(msg)

	case toastExpiredMsg:
		for i, t := range m.toasts {
			if t.id == msg.id {
				m.toasts = append(m.toasts[:i:i], m.toasts[i+1:]...)
				break
			}
		}
		return m, nil

	case countMsg:
		if msg.seq != m.seq || m.counts == nil {
			return m, nil
		}
		if msg.err != nil {
			m.counts[msg.name] = "n/a"
			return m.syncRoute()
		}
		m.counts[msg.name] = fmt.Sprint(msg.total)
		return m, nil

	case logoutMsg:
		if msg.err != nil {
			m.app.Notices.Toast(notify.Error, api.Message(msg.err))
		}
		return m.enter(m.app.Router.Refresh())

	case loginMsg:
		return m.onLogin(msg)
	case listLoadedMsg:
		return m.onListLoaded(msg)
	case mutationMsg:
		return m.onMutation(msg)
	case optionsMsg:
		return m.onOptions(msg)
	case postLoadedMsg:
		return m.onPostLoaded(msg)
	case editorMsg:
		return m.onEditor(msg)
	case submittedMsg:
		return m.onSubmitted(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// onInvalidated refetches what the current screen shows of resource.
func (m Model) onInvalidated(msg invalidatedMsg) (Model, tea.Cmd) {
	next := waitInvalidated(m.invalidated)
	switch {
	case m.list != nil && m.list.route.Resource == msg.resource && !m.list.data.Saving:
		return m, tea.Batch(next, m.loadList())
	case m.counts != nil:
		for _, name := range dashboardResources {
			if name == msg.resource {
				return m, tea.Batch(next, m.loadCounts())
			}
		}
	}
	return m, next
}

// collectNotices moves pending notices into toasts and alerts.
func (m Model) collectNotices() (Model, tea.Cmd) {
	cmds := []tea.Cmd{waitNotice(m.app.Notices)}
	for _, n := range m.app.Notices.Drain() {
		if n.Kind == notify.Blocking {
			m.alerts = append(m.alerts, n)
			continue
		}

		m.toastSeq++
		id := m.toastSeq
		m.toasts = append(m.toasts, toast{id: id, notice: n})
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		cmds = append(cmds, tea.Tick(toastTTL, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		}))
	}
	return m, tea.Batch(cmds...)
}

// handleKey routes a key press to the topmost layer.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.ForceQ) {
		return m.quit()
	}

	switch {
	case len(m.alerts) > 0:
		if key.Matches(msg, keys.Dismiss) {
			m.alerts = m.alerts[1:]
		}
		return m, nil
	case m.confirm != nil:
		switch {
		case key.Matches(msg, keys.Yes):
			c := m.confirm
			m.confirm = nil
			return c.onYes(m)
		case key.Matches(msg, keys.No):
			m.confirm = nil
		}
		return m, nil
	case m.prompt != nil:
		return m.updatePrompt(msg)
	}

	switch m.state {
	case ViewLogin:
		return m.updateLogin(msg)
	case ViewForm:
		return m.updateForm(msg)
	}

	if m.sidebarFocus {
		return m.updateSidebar(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, keys.Sidebar):
		m.sidebarFocus = true
		return m, nil
	case key.Matches(msg, keys.Logout):
		return m, m.logout()
	case key.Matches(msg, keys.Back):
		if match, ok := m.app.Router.Back(); ok {
			return m.enter(match)
		}
		return m, nil
	}

	switch m.state {
	case ViewList:
		return m.updateList(msg)
	case ViewDashboard:
		if key.Matches(msg, keys.Refresh) {
			for _, name := range dashboardResources {
				m.app.Cache.Invalidate(name)
			}
			m.counts = make(map[string]string, len(dashboardResources))
			return m, m.loadCounts()
		}
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.quitting = true
	return m, tea.Quit
}

func (m Model) logout() tea.Cmd {
	auth, ctx := m.app.Auth, m.base
	return func() tea.Msg {
		return logoutMsg{err: auth.Logout(ctx)}
	}
}

// updateSidebar moves through the menu while it has focus.
func (m Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.menuCursor > 0 {
			m.menuCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.menuCursor < len(m.menu)-1 {
			m.menuCursor++
		}
	case key.Matches(msg, keys.Enter):
		if m.menuCursor < len(m.menu) {
			return m.navigate(m.menu[m.menuCursor].Pattern)
		}
	case key.Matches(msg, keys.Sidebar), key.Matches(msg, keys.Back):
		m.sidebarFocus = false
	case key.Matches(msg, keys.Quit):
		return m.quit()
	}
	return m, nil
}

func (m *Model) resizeTable() {
	if m.list == nil || m.height == 0 {
		return
	}
	h := m.height - chromeRows
	if h < 3 {
		h = 3
	}
	m.list.view.SetHeight(h)
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return GetSubtitleStyle().Render("Goodbye! 👋\n")
	}

	if len(m.alerts) > 0 {
		return m.place(m.renderAlert(m.alerts[0]))
	}
	if m.confirm != nil {
		return m.place(m.renderConfirm())
	}
	if m.state == ViewLogin {
		return m.place(lipgloss.JoinVertical(lipgloss.Left,
			m.renderLogin(),
			m.renderToasts(),
		))
	}

	var body string
	switch m.state {
	case ViewDashboard:
		body = m.renderDashboard()
	case ViewList:
		body = m.renderList()
	case ViewForm:
		body = m.renderForm()
	case ViewNotFound:
		body = GetErrorStyle().Render("Page not found: " + m.match.Location.Path)
	default:
		body = "Unknown state"
	}
	if m.prompt != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.renderPrompt())
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		GetSubtitleStyle().Render(router.Trail(router.Breadcrumbs(m.match))),
		"",
		body,
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderNavbar(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", main),
		m.renderToasts(),
		m.renderFooter(),
	)
}

func (m Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// renderNavbar shows the signed-in user and the session expiry
func (m Model) renderNavbar() string {
	left := GetHeaderStyle().Render("CMS Admin")

	var right string
	if sess := m.app.Sessions.Current(); sess.Valid() {
		right = sess.User.Name
		if exp, ok := m.app.Sessions.ExpiresAt(); ok {
			remain := time.Until(exp).Round(time.Minute)
			if remain > 0 {
				right += fmt.Sprintf(" · session expires in %s", remain)
			} else {
				right += " · session expired"
			}
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", GetSubtitleStyle().Render(right))
}

// renderSidebar lists the menu routes
func (m Model) renderSidebar() string {
	var sb strings.Builder
	for i, r := range m.menu {
		label := r.Title
		switch {
		case m.sidebarFocus && i == m.menuCursor:
			sb.WriteString(GetCursorStyle().Render("›") + GetSelectedMenuItemStyle().Render(label))
		case r.Pattern == m.match.Route.Pattern:
			sb.WriteString(GetSelectedMenuItemStyle().Render(" " + label))
		default:
			sb.WriteString(GetMenuItemStyle().Render(label))
		}
		sb.WriteString("\n")
	}
	return GetSidebarStyle().Render(sb.String())
}

// renderFooter shows the location and the key help
func (m Model) renderFooter() string {
	loc := GetStatusBarStyle().Render(m.match.Location.String())
	if m.busy() {
		loc = lipgloss.JoinHorizontal(lipgloss.Top, loc, " ", m.spinner.View())
	}

	bindings := m.bindings()
	var helpView string
	if m.help.ShowAll {
		helpView = m.help.FullHelpView([][]key.Binding{bindings[:len(bindings)/2], bindings[len(bindings)/2:]})
	} else {
		helpView = m.help.ShortHelpView(bindings)
	}
	return lipgloss.JoinVertical(lipgloss.Left, loc, GetHelpStyle().Render(helpView))
}

func (m Model) busy() bool {
	switch {
	case m.list != nil:
		return m.list.data.Loading || m.list.data.Refetching || m.list.data.Saving
	case m.form != nil:
		return m.form.loading || m.form.submitting
	case m.login != nil:
		return m.login.submitting
	}
	return false
}

func (m Model) bindings() []key.Binding {
	switch m.state {
	case ViewList:
		return []key.Binding{keys.Next, keys.Prev, keys.Search, keys.Sort, keys.Filter,
			keys.Edit, keys.Save, keys.Discard, keys.Create, keys.Delete, keys.Enter,
			keys.Refresh, keys.Sidebar, keys.Logout, keys.Quit}
	case ViewForm:
		return []key.Binding{keys.FieldNext, keys.FieldPrev, keys.Left, keys.Right, keys.Submit, keys.Back}
	default:
		return []key.Binding{keys.Sidebar, keys.Refresh, keys.Back, keys.Logout, keys.Help, keys.Quit}
	}
}

// renderToasts shows the transient notices, newest last
func (m Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		lines = append(lines, GetLevelStyle(t.notice.Level).Render(t.notice.Message))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderAlert shows a blocking notice until it is acknowledged
func (m Model) renderAlert(n notify.Notice) string {
	title := n.Title
	if title == "" {
		title = strings.ToUpper(string(n.Level))
	}
	return GetModalStyle().Render(lipgloss.JoinVertical(lipgloss.Left,
		GetLevelStyle(n.Level).Render(title),
		"",
		n.Message,
		GetHelpStyle().Render("enter: ok"),
	))
}

func (m Model) renderConfirm() string {
	return GetModalStyle().Render(lipgloss.JoinVertical(lipgloss.Left,
		GetErrorStyle().Render(m.confirm.title),
		"",
		m.confirm.message,
		GetHelpStyle().Render("y: confirm • n/esc: cancel"),
	))
}

// renderDashboard shows resource totals
func (m Model) renderDashboard() string {
	var sb strings.Builder
	sb.WriteString(GetTitleStyle().Render("Dashboard") + "\n")
	for _, name := range dashboardResources {
		v, ok := m.counts[name]
		if !ok {
			v = m.spinner.View()
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", GetInputLabelStyle().Width(14).Render(name), v))
	}
	return GetBoxStyle().Render(strings.TrimRight(sb.String(), "\n"))
}
