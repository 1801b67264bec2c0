package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/logsink"
)

func newRlogCmd() *cobra.Command {
	var (
		maxSize      = units.BytesSize(float64(logsink.DefaultMaxSize))
		maxFiles     = logsink.DefaultMaxFiles
		maxAge       = config.NewDuration(logsink.DefaultMaxAge)
		buffered     bool
		noTimestamps bool
	)
	cmd := &cobra.Command{
		Use:   "rlog [flags] directory",
		Short: "Copy standard input to a directory of rotated log files",
		Long: "Copy standard input to DIRECTORY/current. The file is rotated when it grows past\n" +
			"the maximum size, when it gets older than the maximum age and on SIGHUP.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := units.RAMInBytes(maxSize)
			if err != nil {
				return fmt.Errorf("max size: %w", err)
			}
			rotator, err := logsink.NewRotator(logsink.RotateOptions{
				Dir:      args[0],
				MaxSize:  size,
				MaxFiles: maxFiles,
				MaxAge:   maxAge.Duration,
			})
			if err != nil {
				return err
			}
			defer rotator.Close()

			ctx, cancel := stdcontext.WithCancel(cmd.Context())
			defer cancel()
			go rotateOnHangup(ctx, rotator, cmd.ErrOrStderr())

			return logsink.Copy(ctx, cmd.InOrStdin(), rotator, logsink.Options{
				Timestamps: !noTimestamps,
				Buffered:   buffered,
			})
		},
	}
	cmd.Flags().StringVarP(&maxSize, "max-size", "s", maxSize, "Rotate the current file once it grows past this size, rounded up to whole megabytes")
	cmd.Flags().IntVarP(&maxFiles, "max-files", "m", maxFiles, "Number of rotated files to keep")
	cmd.Flags().VarP(durationFlag{&maxAge}, "max-age", "T", "Rotate the current file once it is this old")
	cmd.Flags().BoolVarP(&buffered, "buffered", "b", false, "Buffer output instead of writing every line immediately")
	cmd.Flags().BoolVarP(&noTimestamps, "no-timestamps", "c", false, "Do not prefix lines with a timestamp")
	return cmd
}

func rotateOnHangup(ctx stdcontext.Context, rotator *logsink.Rotator, stderr io.Writer) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := rotator.Rotate(); err != nil {
				fmt.Fprintf(stderr, "error: rotate log: %v\n", err)
			}
		}
	}
}
