package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mithrel/ingestd/internal/ipc/transport"
)

func newSendCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send [file|-]",
		Short: "Send a file or stdin to the ingest socket as one payload",
		Long: "Send writes the payload and closes its side of the connection. " +
			"The daemon never replies; check the daemon log or `ingestd journal list` for the outcome.",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			v := getViper(cmd)
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			path := v.GetString("socket_path")
			n, err := transport.Send(ctx, path, r)
			if err != nil {
				return fmt.Errorf("send to %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "sent %d bytes to %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().String("socket", "", "socket path (overrides socket_path)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long, 0 for no limit")
	return cmd
}
