// Package cmd command line
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/laisky-cms-admin/internal/app"
	"github.com/Laisky/laisky-cms-admin/library/config"
	"github.com/Laisky/laisky-cms-admin/library/log"
)

const defaultConfigPath = "/etc/cms-admin/settings.yml"

var rootCMD = &cobra.Command{
	Use:   "cms-admin",
	Short: "cms-admin",
	Long:  `admin client for the blog CMS REST backend`,
	Args:  gcmd.NoExtraArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd.Context(), cmd)
	},
	SilenceUsage: true,
}

func initialize(ctx context.Context, cmd *cobra.Command) error {
	if err := gconfig.Shared.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind pflags")
	}

	if err := setupSettings(ctx, cmd); err != nil {
		return err
	}
	if err := setupLogger(ctx); err != nil {
		return err
	}

	return validateStartupConfig()
}

func setupSettings(_ context.Context, cmd *cobra.Command) error {
	if gconfig.Shared.GetBool("debug") {
		gconfig.Shared.Set("log-level", "debug")
	}

	cfgPath := gconfig.Shared.GetString("config")
	explicit := cmd.Flags().Changed("config")
	if err := config.LoadFromFile(cfgPath, explicit); err != nil {
		return errors.Wrap(err, "load settings")
	}

	envFile := gconfig.Shared.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return errors.Wrap(err, "load env file")
	}

	return nil
}

func setupLogger(_ context.Context) error {
	return log.SetLevel(gconfig.Shared.GetString("log-level"))
}

// loadSettings resolves settings; --mode wins over file and env.
func loadSettings() (*config.Settings, error) {
	settings, err := config.FromShared()
	if err != nil {
		return nil, errors.Wrap(err, "resolve settings")
	}

	if mode := strings.TrimSpace(gconfig.Shared.GetString("mode")); mode != "" {
		switch mode {
		case config.ModeDevelop, config.ModeProduction:
			settings.Mode = mode
		default:
			return nil, errors.Errorf("unknown mode %q", mode)
		}
	}

	return settings, nil
}

// newApp builds the application for one command run.
func newApp(ctx context.Context) (*app.App, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, settings, app.WithLogger(log.Logger))
	if err != nil {
		return nil, errors.Wrap(err, "build app")
	}
	return a, nil
}

func init() {
	rootCMD.PersistentFlags().Bool("debug", false, "run in debug mode")
	rootCMD.PersistentFlags().StringP("config", "c", defaultConfigPath, "config file path")
	rootCMD.PersistentFlags().String("env-file", ".env", "dotenv file with CMSADMIN_* variables")
	rootCMD.PersistentFlags().String("log-level", "info", "`debug/info/warn/error`")
	rootCMD.PersistentFlags().String("mode", "", "`develop/production`, overrides settings and env")
}

// Execute execute root command
func Execute() {
	if err := rootCMD.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Logger.Debug("command failed", zap.Error(err))
		os.Exit(1)
	}
}
