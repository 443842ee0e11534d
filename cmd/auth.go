package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-cms-admin/internal/form"
)

var loginCMD = &cobra.Command{
	Use:   "login",
	Short: "sign in and persist the session",
	Long: `Sign in with an administrator account. The session is stored in the
configured session backend and reused by every other command.

Without --password the password is read from stdin.`,
	Args: gcmd.NoExtraArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "password: ")
			var err error
			if password, err = readLine(cmd.InOrStdin()); err != nil {
				return errors.Wrap(err, "read password")
			}
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close() // nolint: errcheck

		sess, err := a.Auth.Login(cmd.Context(), email, password)
		if err != nil {
			var fe form.Errors
			if errors.As(err, &fe) {
				return errors.Errorf("invalid credentials: %s", fe.Error())
			}
			return errors.Wrap(err, "login")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s <%s>\n", sess.User.Name, sess.User.Email)
		return nil
	},
}

var logoutCMD = &cobra.Command{
	Use:   "logout",
	Short: "end the stored session",
	Args:  gcmd.NoExtraArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close() // nolint: errcheck

		if !a.Sessions.IsAuthenticated() {
			fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
			return nil
		}
		if err = a.Auth.Logout(cmd.Context()); err != nil {
			return errors.Wrap(err, "logout")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

var whoamiCMD = &cobra.Command{
	Use:   "whoami",
	Short: "show the signed in administrator",
	Args:  gcmd.NoExtraArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close() // nolint: errcheck

		sess := a.Sessions.Current()
		if !sess.Valid() {
			return errors.New("not logged in, run `cms-admin login` first")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "user:    %s <%s>\n", sess.User.Name, sess.User.Email)
		fmt.Fprintf(out, "backend: %s\n", a.API.BaseURL())
		if exp, ok := a.Sessions.ExpiresAt(); ok {
			state := "valid"
			if !exp.After(time.Now()) {
				state = "expired"
			}
			fmt.Fprintf(out, "expires: %s (%s)\n", exp.Local().Format(time.RFC3339), state)
		}
		return nil
	},
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.WithStack(err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCMD.AddCommand(loginCMD, logoutCMD, whoamiCMD)

	loginCMD.Flags().String("email", "", "administrator email")
	loginCMD.Flags().String("password", "", "administrator password")
}
