package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	optionsEnv  = "WARDEN_OPTIONS"
	logLevelEnv = "WARDEN_LOG_LEVEL"
	apiAddrEnv  = "WARDEN_API_ADDR"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

type globalOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() (*cobra.Command, *globalOptions) {
	opts := &globalOptions{logLevel: os.Getenv(logLevelEnv)}

	root := &cobra.Command{
		Use:   "warden",
		Short: "Supervise a command and its log process",
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Diagnostic log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Diagnostic log format (auto, text, json)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newLogCmd())
	root.AddCommand(newRlogCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, opts
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetArgs(withEnvOptions(os.Args[1:], os.Getenv(optionsEnv)))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "warden:", err)
		os.Exit(1)
	}
}

// withEnvOptions inserts the whitespace separated options from env right
// after the run subcommand so they are parsed before the command line's own.
func withEnvOptions(args []string, env string) []string {
	extra := strings.Fields(env)
	if len(extra) == 0 || len(args) == 0 || args[0] != "run" {
		return args
	}
	out := make([]string, 0, len(args)+len(extra))
	out = append(out, args[0])
	out = append(out, extra...)
	return append(out, args[1:]...)
}
