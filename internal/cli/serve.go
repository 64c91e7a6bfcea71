package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mithrel/ingestd/internal/daemon"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept JSON documents on the Unix socket until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd) // initialized via PersistentPreRunE
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ingestd listening on %s\n", app.Cfg.SocketPath)
			return daemon.Run(cmd.Context(), app)
		},
	}
	cmd.Flags().String("socket", "", "socket path (overrides socket_path)")
	cmd.Flags().Int64("max-payload", 0, "largest accepted payload in bytes, 0 for no cap")
	cmd.Flags().Duration("idle-timeout", 0, "drop connections idle for this long, 0 to wait forever")
	cmd.Flags().String("http", "", "address for /healthz and /metrics")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	return cmd
}
