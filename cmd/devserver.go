package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-cms-admin/internal/devserver"
	"github.com/Laisky/laisky-cms-admin/library/log"
)

var devserverCMD = &cobra.Command{
	Use:   "devserver",
	Short: "run the in-memory CMS backend",
	Long: `Run an in-memory implementation of the CMS REST backend under /api.

Data lives only as long as the process. Point settings.api.dev at the
listen address to develop against it:

  cms-admin devserver --listen localhost:8000 --seed`,
	Args: gcmd.NoExtraArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = settings.Dev.Listen
		}
		seed, _ := cmd.Flags().GetBool("seed")
		nested, _ := cmd.Flags().GetBool("nested")

		if !gconfig.Shared.GetBool("debug") {
			gin.SetMode(gin.ReleaseMode)
		}

		srv, err := devserver.New(devserver.Config{
			Secret:         settings.Dev.Secret,
			AdminEmail:     settings.Dev.AdminEmail,
			AdminPassword:  settings.Dev.AdminPassword,
			NestedEnvelope: nested,
			Logger:         log.Logger.Named("devserver"),
		})
		if err != nil {
			return errors.Wrap(err, "new devserver")
		}
		if seed {
			if err = srv.Seed(); err != nil {
				return errors.Wrap(err, "seed devserver")
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "devserver on http://%s/api, admin %s\n", listen, settings.Dev.AdminEmail)
		log.Logger.Info("start devserver",
			zap.String("listen", listen),
			zap.Bool("seed", seed),
			zap.Bool("nested", nested))
		return srv.Run(ctx, listen)
	},
}

func init() {
	rootCMD.AddCommand(devserverCMD)

	devserverCMD.Flags().String("listen", "", "listen address, defaults to settings.devserver.listen")
	devserverCMD.Flags().Bool("seed", true, "load demo categories, subcategories and posts")
	devserverCMD.Flags().Bool("nested", false, "answer lists as {<plural>: {data, total}}")
}
