package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type promptKind int

const (
	promptSearch promptKind = iota
	promptSort
	promptFilter
	promptEdit
)

// prompt is a one-line input shown under the list.
type prompt struct {
	kind  promptKind
	label string
	input textinput.Model
	// rowID is the row a cell edit applies to
	rowID string
}

func newPrompt(kind promptKind, label, value, placeholder string) *prompt {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 256
	in.Width = 50
	in.Prompt = "› "
	in.PromptStyle = GetCursorStyle()
	in.SetValue(value)
	in.CursorEnd()
	in.Focus()

	return &prompt{kind: kind, label: label, input: in}
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		m.prompt = nil
		return m, nil
	case key.Matches(msg, keys.Enter):
		p := m.prompt
		m.prompt = nil
		return m.submitPrompt(p)
	}

	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

func (m Model) renderPrompt() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		GetInputLabelStyle().Render(m.prompt.label),
		m.prompt.input.View(),
		GetHelpStyle().Render("enter: apply • esc: cancel"),
	)
}
