package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-cms-admin/internal/app"
	"github.com/Laisky/laisky-cms-admin/internal/liststate"
	"github.com/Laisky/laisky-cms-admin/internal/resource"
	"github.com/Laisky/laisky-cms-admin/internal/router"
)

var listCMD = &cobra.Command{
	Use:   "list <resource>",
	Short: "print one page of a resource",
	Long: `Print one page of a resource as a table.

The page is addressed by a location query, the same one the TUI shows in
its footer:

  cms-admin list category --location "?page=2&limit=10&search=news"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("location")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close() // nolint: errcheck

		return runList(cmd.Context(), cmd.OutOrStdout(), a, args[0], raw)
	},
}

// openResource resolves /<name> through the protected gate.
func openResource(a *app.App, name string, raw string) (resource.Browser, liststate.Location, error) {
	b, ok := a.Catalog.Lookup(name)
	if !ok {
		return nil, liststate.Location{}, errors.Errorf("unknown resource %q, one of %s",
			name, strings.Join(a.Catalog.Names(), ", "))
	}

	loc, err := liststate.ParseLocation(raw)
	if err != nil {
		return nil, liststate.Location{}, err
	}
	loc.Path = "/" + name

	m := a.Router.Resolve(loc)
	if m.Location.Path == router.PathLogin {
		return nil, liststate.Location{}, errors.New("not logged in, run `cms-admin login` first")
	}

	return b, m.Location, nil
}

func runList(ctx context.Context, out io.Writer, a *app.App, name, raw string) error {
	b, loc, err := openResource(a, name, raw)
	if err != nil {
		return err
	}

	sync := liststate.NewSynchronizer(loc, b.Spec().FilterKeys...)
	page, err := b.Browse(ctx, sync.Params())
	if err != nil {
		return errors.Wrapf(err, "list %s", name)
	}
	if sync.Clamp(page.TotalCount) {
		if page, err = b.Browse(ctx, sync.Params()); err != nil {
			return errors.Wrapf(err, "list %s", name)
		}
	}

	tbl := resource.NewTable(name)
	tbl.SetPage(page.Items, page.TotalCount, sync.Pagination())

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers(tbl.Headers()...).
		Rows(tbl.Cells()...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	fmt.Fprintln(out, t.Render())
	p := tbl.Pagination()
	fmt.Fprintf(out, "page %d of %d, %d total\n", p.PageIndex+1, max(tbl.PageCount(), 1), tbl.Total())
	fmt.Fprintf(out, "location: %s\n", sync.Location().String())
	return nil
}

var deleteCMD = &cobra.Command{
	Use:   "delete <resource> <id>",
	Short: "soft delete one row, or restore or destroy it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		mode, err := deleteModeOf(cmd)
		if err != nil {
			return err
		}

		name, id := args[0], resource.ID(strings.TrimSpace(args[1]))
		if id == "" {
			return errors.New("id is empty")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close() // nolint: errcheck

		if !yes {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s? [y/N] ", mode, name, id)
			answer, err := readLine(cmd.InOrStdin())
			if err != nil {
				return errors.Wrap(err, "read confirmation")
			}
			if !confirmed(answer) {
				fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
				return nil
			}
		}

		return runDelete(cmd.Context(), cmd.OutOrStdout(), a, name, id, mode)
	},
}

// deleteMode picks what `delete` does to the row.
type deleteMode string

const (
	modeDelete  deleteMode = "delete"
	modeRestore deleteMode = "restore"
	modeDestroy deleteMode = "destroy"
)

func deleteModeOf(cmd *cobra.Command) (deleteMode, error) {
	restore, _ := cmd.Flags().GetBool("restore")
	destroy, _ := cmd.Flags().GetBool("destroy")
	switch {
	case restore && destroy:
		return "", errors.New("--restore and --destroy are exclusive")
	case restore:
		return modeRestore, nil
	case destroy:
		return modeDestroy, nil
	default:
		return modeDelete, nil
	}
}

func runDelete(ctx context.Context, out io.Writer, a *app.App, name string, id resource.ID, mode deleteMode) error {
	b, _, err := openResource(a, name, "")
	if err != nil {
		return err
	}

	var msg string
	switch mode {
	case modeRestore:
		msg, err = b.Restore(ctx, id)
	case modeDestroy:
		msg, err = b.Destroy(ctx, id)
	case modeDelete:
		msg, err = b.Delete(ctx, id)
	default:
		return errors.Errorf("unknown delete mode %q", mode)
	}
	if err != nil {
		return errors.Wrapf(err, "%s %s %s", mode, name, id)
	}

	fmt.Fprintln(out, msg)
	return nil
}

func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func init() {
	rootCMD.AddCommand(listCMD, deleteCMD)

	listCMD.Flags().String("location", "", "list state, e.g. `?page=2&limit=10&search=news`")
	deleteCMD.Flags().BoolP("yes", "y", false, "skip the confirmation")
	deleteCMD.Flags().Bool("restore", false, "undo a soft delete")
	deleteCMD.Flags().Bool("destroy", false, "remove the row permanently")
}
