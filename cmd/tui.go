package cmd

import (
	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-cms-admin/cmd/tui"
	"github.com/Laisky/laisky-cms-admin/library/log"
)

var tuiCMD = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	Long: `Launch the interactive Terminal User Interface of cms-admin.

The dashboard provides:
  • a sidebar with every resource, a navbar with the signed in user
  • paginated tables with search, sort, filters and inline edits
  • create forms for categories, subcategories and posts
  • the current location in the footer, to reopen the same view later

Example:
  cms-admin tui --location "/category?page=2&limit=10"

Keyboard shortcuts:
  tab         Focus the sidebar
  n/p         Next / previous page
  / s f       Search, sort, filter
  e ctrl+s    Edit a cell, save the edits
  c d         Create, delete
  esc         Back
  q           Quit`,
	Args: gcmd.NoExtraArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		return runTUI(cmd, location)
	},
}

func init() {
	rootCMD.AddCommand(tuiCMD)

	tuiCMD.Flags().String("location", "", "initial location, e.g. `/category?page=2`")
}

// runTUI starts the interactive Terminal User Interface and returns any start/run error.
func runTUI(cmd *cobra.Command, location string) error {
	// console logs would tear the alt screen
	if !gconfig.Shared.GetBool("debug") {
		if err := log.Quiet(); err != nil {
			return errors.Wrap(err, "quiet logger")
		}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close() // nolint: errcheck

	model, err := tui.NewModel(ctx, a, location)
	if err != nil {
		return errors.Wrap(err, "new tui model")
	}
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
	)

	_, err = p.Run()
	return errors.WithStack(err)
}
