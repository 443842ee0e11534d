package tui

import (
	"net/url"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/form"
	"github.com/Laisky/laisky-cms-admin/internal/notify"
	"github.com/Laisky/laisky-cms-admin/internal/resource"
)

type formKind int

const (
	formCategory formKind = iota
	formSubcategory
	formPost
)

var (
	subcategoryStatus = []resource.Option{{Value: "1", Label: "Active"}, {Value: "0", Label: "Inactive"}}
	postStatus        = []resource.Option{{Value: "active", Label: "Active"}, {Value: "inactive", Label: "Inactive"}}
)

// formField is a text input, or a select when choices is set.
type formField struct {
	key     string
	label   string
	input   textinput.Model
	choices bool
	options []resource.Option
	choice  int
}

func (f *formField) value() string {
	if f.choices {
		if f.choice >= 0 && f.choice < len(f.options) {
			return string(f.options[f.choice].Value)
		}
		return ""
	}
	return strings.TrimSpace(f.input.Value())
}

func (f *formField) cycle(delta int) {
	if n := len(f.options); n > 0 {
		f.choice = (f.choice + delta + n) % n
	}
}

func textField(key, label, placeholder string) *formField {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 4096
	in.Width = 50
	in.Prompt = "  "
	return &formField{key: key, label: label, input: in}
}

func selectField(key, label string, options []resource.Option) *formField {
	return &formField{key: key, label: label, choices: true, options: options}
}

// formScreen is a create form opened over a list, or the post edit page.
type formScreen struct {
	kind   formKind
	title  string
	fields []*formField
	focus  int
	errs   form.Errors

	editor      *resource.PostEditor
	postID      resource.ID
	storedImage string
	// listParams is the list page an optimistic create shows up on
	listParams url.Values

	loading    bool
	submitting bool
}

type (
	optionsMsg struct {
		seq     int
		key     string
		options []resource.Option
		err     error
	}
	postLoadedMsg struct {
		seq    int
		post   *resource.Post
		editor *resource.PostEditor
		err    error
	}
	editorMsg struct {
		seq int
		err error
	}
	submittedMsg struct {
		seq     int
		message string
		err     error
	}
)

func newCategoryForm(listParams url.Values) *formScreen {
	fs := &formScreen{
		kind:  formCategory,
		title: "Create Category",
		fields: []*formField{
			textField("name", "Name", "at least 3 characters"),
			textField("description", "Description", "optional"),
		},
		listParams: listParams,
	}
	fs.setFocus(0)
	return fs
}

func newSubcategoryForm() *formScreen {
	fs := &formScreen{
		kind:  formSubcategory,
		title: "Create Subcategory",
		fields: []*formField{
			selectField("category_id", "Category", nil),
			textField("subcategory", "Subcategory", "name"),
			textField("description", "Description", "optional"),
			selectField("is_active", "Status", subcategoryStatus),
		},
		loading: true,
	}
	fs.setFocus(0)
	return fs
}

// newPostForm builds the post form. An empty id creates a post; otherwise
// the editor is attached once the post is loaded.
func newPostForm(id resource.ID, editor *resource.PostEditor) *formScreen {
	title := "Create Post"
	if id != "" {
		title = "Edit Post #" + string(id)
	}

	fs := &formScreen{
		kind:   formPost,
		title:  title,
		postID: id,
		editor: editor,
		fields: []*formField{
			textField("title", "Title", "5 to 300 characters"),
			selectField("category_id", "Category", nil),
			selectField("subcategory_id", "Subcategory", nil),
			textField("meta_description", "Meta description", "5 to 300 characters"),
			textField("meta_keyword", "Meta keyword", "comma separated"),
			textField("seo_title", "SEO title", ""),
			textField("content", "Content", "markdown or html"),
			selectField("is_active", "Status", postStatus),
			textField("image", "Image", "path to an image file, at most 3MB"),
		},
		loading: true,
	}
	if id != "" {
		fs.field("image").input.Placeholder = "empty keeps the current image"
	}
	fs.setFocus(0)
	return fs
}

func (fs *formScreen) field(key string) *formField {
	for _, f := range fs.fields {
		if f.key == key {
			return f
		}
	}
	return nil
}

func (fs *formScreen) get(key string) string {
	if f := fs.field(key); f != nil {
		return f.value()
	}
	return ""
}

func (fs *formScreen) setFocus(i int) {
	fs.focus = (i + len(fs.fields)) % len(fs.fields)
	for j, f := range fs.fields {
		if f.choices {
			continue
		}
		if j == fs.focus {
			f.input.Focus()
		} else {
			f.input.Blur()
		}
	}
}

// setOptions fills a select, led by an empty "Select ..." choice, and
// keeps selected when it is among the options.
func (fs *formScreen) setOptions(key string, options []resource.Option, selected resource.ID) {
	f := fs.field(key)
	if f == nil {
		return
	}
	f.options = append([]resource.Option{{Label: "Select " + strings.ToLower(f.label)}}, options...)
	f.choice = 0
	for i, o := range f.options {
		if selected != "" && o.Value == selected {
			f.choice = i
		}
	}
}

func (fs *formScreen) choose(key, value string) {
	f := fs.field(key)
	if f == nil {
		return
	}
	for i, o := range f.options {
		if string(o.Value) == value {
			f.choice = i
		}
	}
}

// openCreateForm opens the create form of the current list.
func (m Model) openCreateForm() (Model, tea.Cmd) {
	cat := m.app.Catalog
	switch m.list.route.Resource {
	case "category":
		m.form = newCategoryForm(m.list.sync.Params())
		m.state = ViewForm
		return m, textinput.Blink
	case "subcategory":
		m.form = newSubcategoryForm()
		m.state = ViewForm
		return m, m.loadCategoryOptions()
	case "post":
		editor := resource.NewPostEditor(cat.Categories, cat.Subcategories, "", "")
		m.form = newPostForm("", editor)
		m.state = ViewForm
		return m, m.loadEditor(editor)
	default:
		m.app.Notices.Toast(notify.Info, m.list.route.Title+" is read only")
		return m, nil
	}
}

// closeForm returns to the list under a create form, or leaves the edit page.
func (m Model) closeForm(reload bool) (Model, tea.Cmd) {
	if m.list != nil {
		m.form = nil
		m.state = ViewList
		if reload {
			return m, m.loadList()
		}
		return m, nil
	}
	if reload {
		return m.navigate("/post")
	}
	if match, ok := m.app.Router.Back(); ok {
		return m.enter(match)
	}
	return m.navigate("/post")
}

func (m Model) loadCategoryOptions() tea.Cmd {
	categories, ctx, seq := m.app.Catalog.Categories, m.ctx, m.seq
	return func() tea.Msg {
		opts, err := categories.Options(ctx, nil)
		return optionsMsg{seq: seq, key: "category_id", options: opts, err: err}
	}
}

func (m Model) loadEditor(editor *resource.PostEditor) tea.Cmd {
	ctx, seq := m.ctx, m.seq
	return func() tea.Msg {
		return editorMsg{seq: seq, err: editor.Load(ctx)}
	}
}

// loadPost fetches the post, then the select options of its category.
func (m Model) loadPost(id resource.ID) tea.Cmd {
	cat, ctx, seq := m.app.Catalog, m.ctx, m.seq
	return func() tea.Msg {
		post, err := cat.Posts.Get(ctx, id)
		if err != nil {
			return postLoadedMsg{seq: seq, err: err}
		}
		if post == nil {
			return postLoadedMsg{seq: seq, err: errors.New("Post not found")}
		}

		editor := resource.NewPostEditor(cat.Categories, cat.Subcategories, post.CategoryID, post.SubcategoryID)
		err = editor.Load(ctx)
		return postLoadedMsg{seq: seq, post: post, editor: editor, err: err}
	}
}

func (m Model) onOptions(msg optionsMsg) (Model, tea.Cmd) {
	if msg.seq != m.seq || m.form == nil {
		return m, nil
	}
	m.form.loading = false
	if msg.err != nil {
		m.form.errs = form.Errors{"": api.Message(msg.err)}
		return m.syncRoute()
	}
	m.form.setOptions(msg.key, msg.options, resource.ID(m.form.get(msg.key)))
	return m, nil
}

func (m Model) onPostLoaded(msg postLoadedMsg) (Model, tea.Cmd) {
	if msg.seq != m.seq || m.form == nil {
		return m, nil
	}

	fs := m.form
	fs.loading = false
	if msg.post == nil {
		fs.errs = form.Errors{"": api.Message(msg.err)}
		return m.syncRoute()
	}

	fs.editor = msg.editor
	fs.storedImage = msg.post.Image
	values := resource.FormFromPost(*msg.post)
	for name, v := range map[string]string{
		"title":            values.Title,
		"meta_description": values.MetaDescription,
		"meta_keyword":     values.MetaKeyword,
		"seo_title":        values.SeoTitle,
		"content":          values.Content,
	} {
		fs.field(name).input.SetValue(v)
	}
	fs.choose("is_active", values.IsActive)
	m.syncEditorOptions()

	if msg.err != nil {
		fs.errs = form.Errors{"": api.Message(msg.err)}
	}
	return m, nil
}

func (m Model) onEditor(msg editorMsg) (Model, tea.Cmd) {
	if msg.seq != m.seq || m.form == nil {
		return m, nil
	}
	m.form.loading = false
	if msg.err != nil {
		m.app.Notices.Toast(notify.Error, api.Message(msg.err))
		if api.IsUnauthorized(msg.err) {
			return m.syncRoute()
		}
	}
	m.syncEditorOptions()
	return m, nil
}

// syncEditorOptions copies the editor's cascade into the two selects.
func (m Model) syncEditorOptions() {
	fs := m.form
	if fs == nil || fs.editor == nil {
		return
	}
	catID, subID := fs.editor.Selection()
	fs.setOptions("category_id", fs.editor.CategoryOptions(), catID)
	fs.setOptions("subcategory_id", fs.editor.SubcategoryOptions(), subID)
}

// onSelect keeps the post editor in step with the selects. Changing the
// category clears the subcategory and reloads its options.
func (m Model) onSelect(f *formField) tea.Cmd {
	fs := m.form
	if fs.kind != formPost || fs.editor == nil {
		return nil
	}

	switch f.key {
	case "category_id":
		fs.setOptions("subcategory_id", nil, "")
		fs.loading = true
		editor, ctx, seq, id := fs.editor, m.ctx, m.seq, resource.ID(f.value())
		return func() tea.Msg {
			return editorMsg{seq: seq, err: editor.SelectCategory(ctx, id)}
		}
	case "subcategory_id":
		fs.editor.SelectSubcategory(resource.ID(f.value()))
	}
	return nil
}

// updateForm handles key events on a form
func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fs := m.form
	if fs.submitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Back):
		return m.closeForm(false)
	case key.Matches(msg, keys.Submit):
		return m.submitForm()
	case key.Matches(msg, keys.FieldNext):
		fs.setFocus(fs.focus + 1)
		return m, nil
	case key.Matches(msg, keys.FieldPrev):
		fs.setFocus(fs.focus - 1)
		return m, nil
	case key.Matches(msg, keys.Enter):
		if fs.focus == len(fs.fields)-1 {
			return m.submitForm()
		}
		fs.setFocus(fs.focus + 1)
		return m, nil
	}

	f := fs.fields[fs.focus]
	if f.choices {
		switch {
		case key.Matches(msg, keys.Left):
			f.cycle(-1)
			return m, m.onSelect(f)
		case key.Matches(msg, keys.Right):
			f.cycle(1)
			return m, m.onSelect(f)
		}
		return m, nil
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return m, cmd
}

// submitForm validates locally; nothing is sent while the form is invalid.
func (m Model) submitForm() (Model, tea.Cmd) {
	fs := m.form
	if fs.loading {
		return m, nil
	}
	cat, ctx, seq := m.app.Catalog, m.ctx, m.seq

	var run func() (string, error)
	switch fs.kind {
	case formCategory:
		payload := form.Category{Name: fs.get("name"), Description: fs.get("description")}
		if errs := form.Validate(payload); errs != nil {
			fs.errs = errs
			return m, nil
		}
		draft := resource.Category{Name: payload.Name, Description: payload.Description, Slug: form.SlugPreview(payload.Name)}
		params := fs.listParams
		run = func() (string, error) {
			res, err := cat.Categories.CreateOptimistic(ctx, params, draft, payload)
			return res.Message, err
		}

	case formSubcategory:
		payload := form.Subcategory{
			CategoryID:  fs.get("category_id"),
			Subcategory: fs.get("subcategory"),
			Description: fs.get("description"),
			IsActive:    fs.get("is_active"),
		}
		if errs := form.Validate(payload); errs != nil {
			fs.errs = errs
			return m, nil
		}
		run = func() (string, error) {
			res, err := cat.Subcategories.Create(ctx, payload)
			return res.Message, err
		}

	case formPost:
		payload, errs := fs.postPayload()
		if errs != nil {
			fs.errs = errs
			return m, nil
		}
		id, stored := fs.postID, fs.storedImage
		run = func() (string, error) {
			var res resource.Result[resource.Post]
			var err error
			if id == "" {
				res, err = cat.Posts.CreatePost(ctx, payload)
			} else {
				res, err = cat.Posts.UpdatePost(ctx, id, stored, payload)
			}
			return res.Message, err
		}
	}

	fs.errs = nil
	fs.submitting = true
	return m, func() tea.Msg {
		message, err := run()
		return submittedMsg{seq: seq, message: message, err: err}
	}
}

// postPayload gathers the post form, including the cascade and the image.
func (fs *formScreen) postPayload() (form.Post, form.Errors) {
	p := form.Post{
		Title:           fs.get("title"),
		MetaDescription: fs.get("meta_description"),
		MetaKeyword:     fs.get("meta_keyword"),
		SeoTitle:        fs.get("seo_title"),
		Content:         fs.get("content"),
		IsActive:        fs.get("is_active"),
	}

	errs := form.Errors{}
	if fs.editor != nil {
		fs.editor.Apply(&p)
		for k, v := range fs.editor.Validate() {
			errs[k] = v
		}
	}

	var imageErr string
	if path := fs.get("image"); path != "" {
		up, err := form.OpenUpload(path)
		if err != nil {
			imageErr = "Cannot read image file"
		} else {
			p.Image = up
		}
	}

	for k, v := range form.ValidatePost(p, fs.postID == "") {
		if _, ok := errs[k]; !ok {
			errs[k] = v
		}
	}
	if imageErr != "" {
		errs["image"] = imageErr
	}

	if len(errs) == 0 {
		return p, nil
	}
	return p, errs
}

func (m Model) onSubmitted(msg submittedMsg) (Model, tea.Cmd) {
	if msg.seq != m.seq || m.form == nil {
		return m, nil
	}

	fs := m.form
	fs.submitting = false
	if msg.err != nil {
		var fe form.Errors
		if errors.As(msg.err, &fe) {
			fs.errs = fe
		} else {
			fs.errs = form.Errors{"": api.Message(msg.err)}.Merge(msg.err)
		}
		m.app.Notices.Toast(notify.Error, api.Message(msg.err))
		if api.IsUnauthorized(msg.err) {
			return m.syncRoute()
		}
		return m, nil
	}

	text := msg.message
	if text == "" {
		text = "Saved"
	}
	m.app.Notices.Toast(notify.Success, text)
	return m.closeForm(true)
}

// renderForm renders the fields with their messages
func (m Model) renderForm() string {
	fs := m.form
	var sb strings.Builder

	sb.WriteString(GetTitleStyle().Render(fs.title) + "\n")
	if banner := fs.errs.Banner(); banner != "" {
		sb.WriteString(GetErrorStyle().Render(banner) + "\n\n")
	}
	if fs.loading {
		sb.WriteString(m.spinner.View() + " Loading...\n\n")
	}

	for i, f := range fs.fields {
		label := f.label
		if i == fs.focus {
			label = GetCursorStyle().Render("› ") + label
		}
		sb.WriteString(GetInputLabelStyle().Render(label) + "\n")

		if f.choices {
			text := "-"
			if f.choice < len(f.options) {
				text = f.options[f.choice].Label
			}
			if i == fs.focus {
				text = "‹ " + text + " ›"
			}
			sb.WriteString("  " + text + "\n")
		} else {
			sb.WriteString(f.input.View() + "\n")
		}

		switch {
		case f.key == "name" && fs.kind == formCategory && f.value() != "":
			sb.WriteString(GetSubtitleStyle().Render("  slug: "+form.SlugPreview(f.value())) + "\n")
		case f.key == "image" && fs.storedImage != "":
			sb.WriteString(GetSubtitleStyle().Render("  current: "+fs.storedImage) + "\n")
		case f.key == "content" && f.value() != "":
			preview := strings.Join(strings.Fields(form.RenderContent(f.value())), " ")
			if r := []rune(preview); len(r) > 60 {
				preview = string(r[:60]) + "…"
			}
			sb.WriteString(GetSubtitleStyle().Render("  html: "+preview) + "\n")
		}
		if msg := fs.errs[f.key]; msg != "" {
			sb.WriteString(GetErrorStyle().Render("  "+msg) + "\n")
		}
	}

	status := GetHelpStyle().Render("tab: next field • ←/→: choose • ctrl+s: submit • esc: cancel")
	if fs.submitting {
		status = m.spinner.View() + " Saving..."
	}
	sb.WriteString(status)

	return GetBoxStyle().Render(lipgloss.NewStyle().Width(64).Render(sb.String()))
}
