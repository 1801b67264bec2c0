package supervise

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/Paintersrp/warden/internal/platform"
)

// Task names.
const (
	CommandTask = "cmd"
	LogTask     = "log"
)

// Config holds the supervisor settings. It is read-only once the supervisor
// is constructed.
type Config struct {
	// Timeout restarts the command every time it elapses. Zero disables it.
	Timeout time.Duration
	// Interval delays the respawn of a command that exited with status 0.
	Interval time.Duration
	// ExitOnSuccess stops the supervisor when the command exits with status 0.
	ExitOnSuccess    bool
	ForwardToCommand bool
	ForwardToLog     bool
	// LoadHigh pauses the command while the one-minute load average is above
	// it; the command resumes at or below LoadLow. Zero disables the check.
	LoadHigh float64
	LoadLow  float64
	// StopTimeout bounds how long shutdown waits before killing the tasks.
	StopTimeout time.Duration
}

// Alarm schedules a SIGALRM for the current process.
type Alarm interface {
	Arm(time.Duration) error
}

// Waiter reaps at most one child without blocking and reports pid 0 when no
// child changed state.
type Waiter interface {
	Wait() (int, unix.WaitStatus, error)
}

// WaiterFunc adapts a function to the Waiter interface.
type WaiterFunc func() (int, unix.WaitStatus, error)

func (f WaiterFunc) Wait() (int, unix.WaitStatus, error) {
	return f()
}

// Supervisor owns the command and log tasks together with the process-wide
// flags written by the signal handler.
type Supervisor struct {
	cfg        Config
	cmd        Task
	log        Task
	logEnabled bool

	shouldStop          atomic.Bool
	shouldCheckChildren atomic.Bool
	timeouts            atomic.Int64
	paused              atomic.Bool
	wakeCh              chan struct{}

	logger logrus.FieldLogger
	events chan<- Event
	alarm  Alarm
	waiter Waiter
	load   func() (float64, error)
	now    func() time.Time

	loadInterval time.Duration
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger used by the main loop.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithEvents sets the channel lifecycle events are sent to. Sends block, so
// the channel must be drained until Run returns.
func WithEvents(events chan<- Event) Option {
	return func(s *Supervisor) { s.events = events }
}

func WithAlarm(alarm Alarm) Option {
	return func(s *Supervisor) { s.alarm = alarm }
}

func WithWaiter(waiter Waiter) Option {
	return func(s *Supervisor) { s.waiter = waiter }
}

func WithLoadAverage(load func() (float64, error)) Option {
	return func(s *Supervisor) { s.load = load }
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// New constructs a supervisor for the command runner and, when logRunner is
// not nil, for the log runner. Both tasks start out pending a start.
func New(cfg Config, cmdRunner, logRunner Runner, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		wakeCh: make(chan struct{}, 1),
		logger: logrus.StandardLogger(),
		alarm:  platform.NewAlarm(),
		waiter: WaiterFunc(platform.Wait4),
		load:   platform.LoadAverage,
		now:    time.Now,

		loadInterval: loadCheckInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.LoadHigh > 0 && s.cfg.LoadLow <= 0 {
		s.cfg.LoadLow = s.cfg.LoadHigh / 2
	}
	s.cmd.init(CommandTask, cfg.ForwardToCommand, cmdRunner)
	if logRunner != nil {
		s.logEnabled = true
		s.log.init(LogTask, cfg.ForwardToLog, logRunner)
	}
	return s
}

// Command returns the command task.
func (s *Supervisor) Command() *Task {
	return &s.cmd
}

// Log returns the log task, or nil when logging is disabled.
func (s *Supervisor) Log() *Task {
	if !s.logEnabled {
		return nil
	}
	return &s.log
}

// Task looks a task up by name.
func (s *Supervisor) Task(name string) (*Task, bool) {
	switch {
	case name == CommandTask:
		return &s.cmd, true
	case name == LogTask && s.logEnabled:
		return &s.log, true
	}
	return nil, false
}

func (s *Supervisor) tasks() []*Task {
	if s.logEnabled {
		return []*Task{&s.cmd, &s.log}
	}
	return []*Task{&s.cmd}
}

func (s *Supervisor) loadEnabled() bool {
	return s.cfg.LoadHigh > 0
}

// Stop asks the main loop to shut down, as SIGTERM does.
func (s *Supervisor) Stop() {
	s.shouldStop.Store(true)
	s.wake()
}

func (s *Supervisor) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}
