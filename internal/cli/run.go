package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	apihttp "github.com/Paintersrp/warden/internal/api/http"
	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/platform"
	"github.com/Paintersrp/warden/internal/runtime/process"
	"github.com/Paintersrp/warden/internal/supervise"
)

const (
	commandSeparator = "--"
	eventBuffer      = 64
	apiReadyWait     = 200 * time.Millisecond
)

var (
	newAPIServer    = apihttp.NewServer
	startSupervisor = runSupervisor
)

type runOptions struct {
	configPath     string
	pidFile        string
	forwardCmd     bool
	forwardLog     bool
	env            []string
	user           string
	logUser        string
	redirectStderr bool
	exitOnSuccess  bool
	timeout        config.Duration
	interval       config.Duration
	stopTimeout    config.Duration
	loadHigh       float64
	loadLow        float64
	limits         []string
	apiAddr        string
	status         bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{apiAddr: os.Getenv(apiAddrEnv)}

	cmd := &cobra.Command{
		Use:   "run [flags] command [args...] [-- log [args...]]",
		Short: "Run a command, restart it when it exits and pipe its output to a log command",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limitsHelpRequested(opts.limits) {
				printLimits(cmd.OutOrStdout())
				return nil
			}
			cfg, err := buildRunConfig(cmd, global, opts, args)
			if err != nil {
				return err
			}
			return startSupervisor(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&opts.configPath, "config", "C", "", "Read settings from a YAML file; flags take precedence")
	flags.StringVarP(&opts.pidFile, "pid-file", "p", "", "Write the supervisor pid to this file")
	flags.BoolVarP(&opts.forwardCmd, "forward-cmd", "s", false, "Forward signals to the command")
	flags.BoolVarP(&opts.forwardLog, "forward-log", "S", false, "Forward signals to the log command")
	flags.StringArrayVarP(&opts.env, "env", "E", nil, "Set VAR=VALUE, or unset VAR, in the environment of both tasks")
	flags.StringVarP(&opts.user, "user", "u", "", "Run the command as USER[:GROUP...]")
	flags.StringVarP(&opts.logUser, "log-user", "U", "", "Run the log command as USER[:GROUP...]")
	flags.BoolVarP(&opts.redirectStderr, "redirect-stderr", "e", false, "Send the command's standard error to its standard output")
	flags.BoolVarP(&opts.exitOnSuccess, "exit-on-success", "1", false, "Exit when the command exits with status 0")
	flags.VarP(durationFlag{&opts.timeout}, "timeout", "t", "Restart the command every time this much time elapses")
	flags.VarP(durationFlag{&opts.interval}, "interval", "i", "Wait this long before restarting a command that exited with status 0")
	flags.Var(durationFlag{&opts.stopTimeout}, "stop-timeout", "Wait this long for the tasks to stop before killing them")
	flags.Float64VarP(&opts.loadHigh, "load-high", "L", 0, "Pause the command while the load average is above this value")
	flags.Float64VarP(&opts.loadLow, "load-low", "l", 0, "Resume the command once the load average is at or below this value")
	flags.StringArrayVarP(&opts.limits, "limit", "r", nil, "Set a resource limit as name=value; \"-r help\" lists the names")
	flags.StringVar(&opts.apiAddr, "api", opts.apiAddr, "Serve the HTTP control API on this address")
	flags.BoolVar(&opts.status, "status", false, "Write lifecycle events to standard error as JSON lines")

	return cmd
}

// durationFlag adapts config.Duration to a command line flag.
type durationFlag struct {
	d *config.Duration
}

func (f durationFlag) String() string {
	if f.d == nil || !f.d.IsSet() {
		return ""
	}
	return f.d.Duration.String()
}

func (f durationFlag) Set(value string) error {
	return f.d.UnmarshalText([]byte(value))
}

func (f durationFlag) Type() string {
	return "duration"
}

// splitCommand separates the command from the log command at the first "--".
func splitCommand(args []string) (command, log []string) {
	for i, arg := range args {
		if arg == commandSeparator {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func buildRunConfig(cmd *cobra.Command, global *globalOptions, opts *runOptions, args []string) (*config.Config, error) {
	cfg := &config.Config{}
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	command, log := splitCommand(args)
	if len(command) > 0 {
		cfg.Command = command
		cfg.Log = nil
	}
	if len(log) > 0 {
		cfg.Log = log
	}

	flags := cmd.Flags()
	if flags.Changed("pid-file") {
		cfg.PIDFile = opts.pidFile
	}
	if flags.Changed("forward-cmd") {
		cfg.Forward.Command = opts.forwardCmd
	}
	if flags.Changed("forward-log") {
		cfg.Forward.Log = opts.forwardLog
	}
	cfg.Env = append(cfg.Env, opts.env...)
	if flags.Changed("user") {
		cfg.User = opts.user
	}
	if flags.Changed("log-user") {
		cfg.LogUser = opts.logUser
	}
	if flags.Changed("redirect-stderr") {
		cfg.RedirectStderr = opts.redirectStderr
	}
	if flags.Changed("exit-on-success") {
		cfg.ExitOnSuccess = opts.exitOnSuccess
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("interval") {
		cfg.Interval = opts.interval
	}
	if flags.Changed("stop-timeout") {
		cfg.StopTimeout = opts.stopTimeout
	}
	if flags.Changed("load-high") {
		cfg.Load.High = opts.loadHigh
	}
	if flags.Changed("load-low") {
		cfg.Load.Low = opts.loadLow
	}
	cfg.Limits = append(cfg.Limits, opts.limits...)
	if flags.Changed("api") || cfg.API.Addr == "" {
		cfg.API.Addr = opts.apiAddr
	}
	if flags.Changed("status") {
		cfg.Status = opts.status
	}

	if f := cmd.Flag("log-level"); (f != nil && f.Changed) || cfg.Logging.Level == "" {
		cfg.Logging.Level = global.logLevel
	}
	if f := cmd.Flag("log-format"); (f != nil && f.Changed) || cfg.Logging.Format == "" {
		cfg.Logging.Format = global.logFormat
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSupervisor(ctx stdcontext.Context, cfg *config.Config, stderr io.Writer) error {
	logger, err := newLogger(cfg.Logging.Level, cfg.Logging.Format, stderr)
	if err != nil {
		return err
	}

	for _, spec := range cfg.Limits {
		limit, err := platform.ParseLimit(spec)
		if err != nil {
			return err
		}
		if err := limit.Apply(); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"limit": limit.Name, "value": limit.Value}).Debug("resource limit applied")
	}

	if cfg.PIDFile != "" {
		if err := writePIDFile(cfg.PIDFile); err != nil {
			return err
		}
		defer os.Remove(cfg.PIDFile)
	}

	cmdRunner, logRunner, cleanup, err := newRunners(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.WithFields(logrus.Fields{
		"command": cfg.Command,
		"log":     cfg.Log,
		"env":     redactEnv(cfg.Env),
		"timeout": cfg.Timeout.Duration,
	}).Debug("starting supervisor")

	initTaskMetrics(logRunner != nil)
	events := make(chan supervise.Event, eventBuffer)
	sup := supervise.New(supervise.Config{
		Timeout:          cfg.Timeout.Duration,
		Interval:         cfg.Interval.Duration,
		ExitOnSuccess:    cfg.ExitOnSuccess,
		ForwardToCommand: cfg.Forward.Command,
		ForwardToLog:     cfg.Forward.Log,
		LoadHigh:         cfg.Load.High,
		LoadLow:          cfg.Load.Low,
		StopTimeout:      cfg.StopTimeout.Duration,
	}, cmdRunner, logRunner, supervise.WithLogger(logger), supervise.WithEvents(events))

	stopSignals := sup.Notify()
	defer stopSignals()

	var status io.Writer
	if cfg.Status {
		status = stderr
	}
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		consumeEvents(events, logger, status)
	}()
	finish := func() {
		close(events)
		<-consumed
	}

	stopAPI, err := startAPI(ctx, cfg.API.Addr, sup, logger)
	if err != nil {
		finish()
		return err
	}

	runErr := sup.Run(ctx)
	if err := stopAPI(); err != nil {
		logger.WithError(err).Warn("control API stopped with error")
	}
	finish()
	return runErr
}

// newRunners builds the process runners for both tasks. When a log command
// is configured the command's standard output is connected to its standard
// input through a pipe the supervisor keeps open across restarts.
func newRunners(cfg *config.Config) (supervise.Runner, supervise.Runner, func(), error) {
	env := buildEnv(os.Environ(), cfg.Env)
	cleanup := func() {}

	cmdSpec := process.Spec{
		Name:           supervise.CommandTask,
		Argv:           cfg.Command,
		Env:            env,
		RedirectStderr: cfg.RedirectStderr,
	}
	if cfg.User != "" {
		cred, err := process.ParseCredential(cfg.User)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("user: %w", err)
		}
		cmdSpec.Credential = cred
	}

	var logRunner supervise.Runner
	if len(cfg.Log) > 0 {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("create log pipe: %w", err)
		}
		cleanup = func() {
			w.Close()
			r.Close()
		}
		cmdSpec.Stdout = w

		logSpec := process.Spec{
			Name:  supervise.LogTask,
			Argv:  cfg.Log,
			Env:   env,
			Stdin: r,
		}
		if cfg.LogUser != "" {
			cred, err := process.ParseCredential(cfg.LogUser)
			if err != nil {
				cleanup()
				return nil, nil, func() {}, fmt.Errorf("log user: %w", err)
			}
			logSpec.Credential = cred
		}
		runner, err := process.New(logSpec)
		if err != nil {
			cleanup()
			return nil, nil, func() {}, err
		}
		logRunner = runner
	}

	cmdRunner, err := process.New(cmdSpec)
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	return cmdRunner, logRunner, cleanup, nil
}

// buildEnv applies VAR=VALUE and VAR entries to base. A bare name removes
// the variable.
func buildEnv(base, changes []string) []string {
	env := append([]string(nil), base...)
	for _, change := range changes {
		name, value, set := strings.Cut(change, "=")
		prefix := name + "="
		kept := env[:0]
		for _, entry := range env {
			if !strings.HasPrefix(entry, prefix) {
				kept = append(kept, entry)
			}
		}
		env = kept
		if set {
			env = append(env, prefix+value)
		}
	}
	return env
}

func writePIDFile(path string) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

func limitsHelpRequested(limits []string) bool {
	for _, limit := range limits {
		if limit == "help" {
			return true
		}
	}
	return false
}

func printLimits(w io.Writer) {
	for _, name := range platform.LimitNames() {
		fmt.Fprintf(w, "%-12s %s\n", name, platform.DescribeLimit(name))
	}
}

// startAPI serves the control API on addr until the returned function is
// called. An empty addr disables it.
func startAPI(ctx stdcontext.Context, addr string, ctrl *supervise.Supervisor, logger logrus.FieldLogger) (func() error, error) {
	if addr == "" {
		return func() error { return nil }, nil
	}
	server, err := newAPIServer(apihttp.Config{Addr: addr, Controller: ctrl})
	if err != nil {
		return nil, err
	}

	serverCtx, cancel := stdcontext.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(serverCtx)
	}()

	readyTimer := time.NewTimer(apiReadyWait)
	defer readyTimer.Stop()
	select {
	case err := <-errCh:
		cancel()
		if err == nil {
			err = errors.New("control API stopped before it was ready")
		}
		return nil, err
	case <-readyTimer.C:
	}

	logger.WithField("addr", server.Addr()).Info("control API listening")
	return func() error {
		cancel()
		err := <-errCh
		if err != nil && !errors.Is(err, stdcontext.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, nil
}
