package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mithrel/ingestd/internal/config"
	"github.com/mithrel/ingestd/internal/wire"
)

type ctxKey string

const (
	appKey   ctxKey = "app"
	viperKey ctxKey = "viper"
)

// skipApp marks commands that only need configuration, not a wired App.
const skipApp = "skip-app"

// Execute is the entrypoint: it builds the root cobra.Command and runs it
// under ctx, which serve treats as its lifetime.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd constructs the Cobra root command and wires dependencies.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "ingestd",
		Short:         "ingestd: receive JSON documents on a local Unix socket",
		SilenceUsage:  true, // don't show usage on runtime errors
		SilenceErrors: true, // let main print errors once
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if cfgPath != "" {
				v.SetConfigFile(cfgPath)
			}
			if err := config.Load(cmd.Context(), v); err != nil {
				return err
			}
			applyConfigFlagOverrides(cmd, v, flagKeys)
			ctx := context.WithValue(cmd.Context(), viperKey, v)
			if cmd.Annotations[skipApp] != "true" {
				app, err := wire.BuildApp(ctx, v)
				if err != nil {
					return err
				}
				ctx = context.WithValue(ctx, appKey, app)
			}
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app, ok := cmd.Context().Value(appKey).(*wire.App); ok {
				return app.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (toml|yaml|json)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newJournalCmd())
	cmd.AddCommand(newConfigCmd())

	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Help() }

	return cmd
}

func getApp(cmd *cobra.Command) (*wire.App, error) {
	app, ok := cmd.Context().Value(appKey).(*wire.App)
	if !ok || app == nil {
		return nil, errors.New("internal error: app not initialized")
	}
	return app, nil
}

func getViper(cmd *cobra.Command) *viper.Viper {
	return cmd.Context().Value(viperKey).(*viper.Viper)
}
