package tui

import (
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/form"
	"github.com/Laisky/laisky-cms-admin/internal/notify"
	"github.com/Laisky/laisky-cms-admin/internal/router"
)

// loginScreen holds the email and password inputs.
type loginScreen struct {
	inputs     []textinput.Model
	focusIndex int
	errs       form.Errors
	submitting bool
}

type loginMsg struct {
	seq  int
	name string
	err  error
}

var loginFields = []string{"email", "password"}

// newLoginScreen creates the input fields for the sign-in form
func newLoginScreen() *loginScreen {
	inputs := make([]textinput.Model, 2)

	inputs[0] = textinput.New()
	inputs[0].Placeholder = "admin@example.com"
	inputs[0].Focus()
	inputs[0].CharLimit = 128
	inputs[0].Width = 40
	inputs[0].Prompt = "✉  "
	inputs[0].PromptStyle = GetInputLabelStyle()

	inputs[1] = textinput.New()
	inputs[1].Placeholder = "password"
	inputs[1].CharLimit = 128
	inputs[1].Width = 40
	inputs[1].Prompt = "🔑 "
	inputs[1].PromptStyle = GetInputLabelStyle()
	inputs[1].EchoMode = textinput.EchoPassword
	inputs[1].EchoCharacter = '•'

	return &loginScreen{inputs: inputs}
}

func (l *loginScreen) setFocus(i int) {
	l.focusIndex = (i + len(l.inputs)) % len(l.inputs)
	for j := range l.inputs {
		if j == l.focusIndex {
			l.inputs[j].Focus()
		} else {
			l.inputs[j].Blur()
		}
	}
}

// updateLogin handles key events on the sign-in screen
func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	l := m.login
	if l.submitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.FieldNext):
		l.setFocus(l.focusIndex + 1)
		return m, nil
	case key.Matches(msg, keys.FieldPrev):
		l.setFocus(l.focusIndex - 1)
		return m, nil
	case key.Matches(msg, keys.Enter):
		if l.focusIndex < len(l.inputs)-1 {
			l.setFocus(l.focusIndex + 1)
			return m, nil
		}
		return m.submitLogin()
	}

	var cmd tea.Cmd
	l.inputs[l.focusIndex], cmd = l.inputs[l.focusIndex].Update(msg)
	return m, cmd
}

// submitLogin validates locally and only then calls the backend.
func (m Model) submitLogin() (Model, tea.Cmd) {
	l := m.login
	email := strings.TrimSpace(l.inputs[0].Value())
	password := l.inputs[1].Value()

	if errs := form.Validate(form.Login{Email: email, Password: password}); errs != nil {
		l.errs = errs
		return m, nil
	}

	l.errs = nil
	l.submitting = true
	auth, ctx, seq := m.app.Auth, m.ctx, m.seq
	return m, func() tea.Msg {
		sess, err := auth.Login(ctx, email, password)
		if err != nil {
			return loginMsg{seq: seq, err: err}
		}
		return loginMsg{seq: seq, name: sess.User.Name}
	}
}

// onLogin opens the location that was redirected to the login screen.
func (m Model) onLogin(msg loginMsg) (Model, tea.Cmd) {
	if msg.seq != m.seq || m.login == nil {
		return m, nil
	}

	l := m.login
	l.submitting = false
	if msg.err != nil {
		var fe form.Errors
		if errors.As(msg.err, &fe) {
			l.errs = fe
		} else {
			l.errs = form.Errors{"": api.Message(msg.err)}.Merge(msg.err)
		}
		return m, nil
	}

	m.app.Notices.Toast(notify.Success, "Welcome back, "+msg.name)
	target := router.PathHome
	if from := m.match.RedirectedFrom; from != nil && from.Path != router.PathLogin {
		target = from.String()
	}
	return m.navigate(target)
}

// renderLogin renders the sign-in form
func (m Model) renderLogin() string {
	l := m.login
	var sb strings.Builder

	sb.WriteString(GetHeaderStyle().Render("CMS Admin · Sign in") + "\n\n")
	if banner := l.errs.Banner(); banner != "" {
		sb.WriteString(GetErrorStyle().Render(banner) + "\n\n")
	}

	labels := []string{"Email", "Password"}
	for i, input := range l.inputs {
		sb.WriteString(GetInputLabelStyle().Render(labels[i]) + "\n")
		sb.WriteString(input.View() + "\n")
		if msg := l.errs[loginFields[i]]; msg != "" {
			sb.WriteString(GetErrorStyle().Render(msg) + "\n")
		}
		sb.WriteString("\n")
	}

	status := GetHelpStyle().Render("tab: next field • enter: sign in • ctrl+c: quit")
	if l.submitting {
		status = m.spinner.View() + " Signing in..."
	}
	sb.WriteString(status)

	return GetBoxStyle().Render(lipgloss.NewStyle().Width(48).Render(sb.String()))
}
