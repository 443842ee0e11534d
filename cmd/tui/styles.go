// Package tui is the terminal dashboard of cms-admin.
// It uses the Charm Bubble Tea framework for the layout shell: navbar,
// sidebar, breadcrumb, list screens, forms and notices.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/laisky-cms-admin/internal/notify"
)

// Color palette for the TUI based on modern design principles
var (
	// Primary colors
	primaryColor   = lipgloss.Color("#7C3AED") // Violet
	secondaryColor = lipgloss.Color("#10B981") // Emerald
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	successColor   = lipgloss.Color("#22C55E") // Green
	infoColor      = lipgloss.Color("#3B82F6") // Blue

	// Neutral colors
	fgColor     = lipgloss.Color("#CDD6F4") // Light foreground
	mutedColor  = lipgloss.Color("#6C7086") // Muted text
	borderColor = lipgloss.Color("#45475A") // Border
	selectedBg  = lipgloss.Color("#313244") // Selected background
	highlightBg = lipgloss.Color("#45475A") // Highlight background
)

// titleStyle creates the main title style
var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(primaryColor).
	MarginBottom(1).
	Padding(0, 1)

// subtitleStyle creates the subtitle/description style
var subtitleStyle = lipgloss.NewStyle().
	Foreground(mutedColor).
	Italic(true)

// menuItemStyle creates the style for unselected sidebar entries
var menuItemStyle = lipgloss.NewStyle().
	Foreground(fgColor).
	PaddingLeft(2)

// selectedMenuItemStyle creates the style for the active sidebar entry
var selectedMenuItemStyle = lipgloss.NewStyle().
	Foreground(secondaryColor).
	Bold(true).
	Background(selectedBg).
	PaddingLeft(1)

// cursorStyle creates the style for the selection cursor
var cursorStyle = lipgloss.NewStyle().
	Foreground(accentColor).
	Bold(true)

// helpStyle creates the style for help text at the bottom
var helpStyle = lipgloss.NewStyle().
	Foreground(mutedColor).
	MarginTop(1)

// boxStyle creates a bordered box style
var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(borderColor).
	Padding(1, 2)

// sidebarStyle frames the resource menu
var sidebarStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder(), false, true, false, false).
	BorderForeground(borderColor).
	PaddingRight(1).
	Width(20)

// successStyle creates style for success messages
var successStyle = lipgloss.NewStyle().
	Foreground(successColor).
	Bold(true)

// errorStyle creates style for error messages
var errorStyle = lipgloss.NewStyle().
	Foreground(errorColor).
	Bold(true)

// headerStyle creates the navbar/banner style
var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(fgColor).
	Background(primaryColor).
	Padding(0, 2)

// inputLabelStyle creates the style for input labels
var inputLabelStyle = lipgloss.NewStyle().
	Foreground(secondaryColor).
	Bold(true)

// progressStyle creates the style for progress indicators
var progressStyle = lipgloss.NewStyle().
	Foreground(accentColor)

// statusBarStyle creates the style for the footer
var statusBarStyle = lipgloss.NewStyle().
	Foreground(mutedColor).
	Background(highlightBg).
	Padding(0, 1)

// modalStyle creates the style of blocking alerts and confirmations
var modalStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(accentColor).
	Padding(1, 3)

// GetTitleStyle returns the title style
func GetTitleStyle() lipgloss.Style {
	return titleStyle
}

// GetSubtitleStyle returns the subtitle style
func GetSubtitleStyle() lipgloss.Style {
	return subtitleStyle
}

// GetMenuItemStyle returns the menu item style
func GetMenuItemStyle() lipgloss.Style {
	return menuItemStyle
}

// GetSelectedMenuItemStyle returns the selected menu item style
func GetSelectedMenuItemStyle() lipgloss.Style {
	return selectedMenuItemStyle
}

// GetCursorStyle returns the cursor style
func GetCursorStyle() lipgloss.Style {
	return cursorStyle
}

// GetHelpStyle returns the help style
func GetHelpStyle() lipgloss.Style {
	return helpStyle
}

// GetBoxStyle returns the box style
func GetBoxStyle() lipgloss.Style {
	return boxStyle
}

// GetSidebarStyle returns the sidebar style
func GetSidebarStyle() lipgloss.Style {
	return sidebarStyle
}

// GetSuccessStyle returns the success style
func GetSuccessStyle() lipgloss.Style {
	return successStyle
}

// GetErrorStyle returns the error style
func GetErrorStyle() lipgloss.Style {
	return errorStyle
}

// GetHeaderStyle returns the header style
func GetHeaderStyle() lipgloss.Style {
	return headerStyle
}

// GetInputLabelStyle returns the input label style
func GetInputLabelStyle() lipgloss.Style {
	return inputLabelStyle
}

// GetProgressStyle returns the progress style
func GetProgressStyle() lipgloss.Style {
	return progressStyle
}

// GetStatusBarStyle returns the status bar style
func GetStatusBarStyle() lipgloss.Style {
	return statusBarStyle
}

// GetModalStyle returns the modal style
func GetModalStyle() lipgloss.Style {
	return modalStyle
}

// GetLevelStyle colors a notice by its level
func GetLevelStyle(level notify.Level) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch level {
	case notify.Success:
		return base.Foreground(successColor)
	case notify.Warning:
		return base.Foreground(accentColor)
	case notify.Error:
		return base.Foreground(errorColor)
	default:
		return base.Foreground(infoColor)
	}
}
