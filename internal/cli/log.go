package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/logsink"
)

func newLogCmd() *cobra.Command {
	var (
		buffered     bool
		noTimestamps bool
	)
	cmd := &cobra.Command{
		Use:   "log [file]",
		Short: "Copy standard input to a file, prefixing every line with a timestamp",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out io.Writer = cmd.OutOrStdout()
			if len(args) == 1 && args[0] != "-" {
				f, err := logsink.OpenFile(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return logsink.Copy(cmd.Context(), cmd.InOrStdin(), out, logsink.Options{
				Timestamps: !noTimestamps,
				Buffered:   buffered,
			})
		},
	}
	cmd.Flags().BoolVarP(&buffered, "buffered", "b", false, "Buffer output instead of writing every line immediately")
	cmd.Flags().BoolVarP(&noTimestamps, "no-timestamps", "c", false, "Do not prefix lines with a timestamp")
	return cmd
}
