package supervise

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	loadCheckInterval = time.Second
	shutdownPoll      = 100 * time.Millisecond
	killGrace         = time.Second
)

// Run drives both tasks until SIGINT, SIGTERM, Stop, ctx cancellation or a
// successful command exit with ExitOnSuccess. Both tasks are stopped before
// it returns. Errors are only returned for setup failures.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.loadEnabled() {
		if _, err := s.load(); err != nil {
			return fmt.Errorf("sample load average: %w", err)
		}
	}
	if s.cfg.Timeout > 0 {
		if err := s.alarm.Arm(s.cfg.Timeout); err != nil {
			return fmt.Errorf("arm watchdog: %w", err)
		}
		defer func() { _ = s.alarm.Arm(0) }()
	}

	for _, t := range s.tasks() {
		s.sendEvent(Event{Task: t.Name, Type: EventTypeStarting, Message: "initial start"})
	}

	for !s.stopping(ctx) {
		if s.shouldCheckChildren.Swap(false) {
			s.reapChildren(ctx)
			if s.stopping(ctx) {
				break
			}
		}
		s.noteTimeouts()

		retry := s.dispatch(ctx, &s.cmd)
		if s.logEnabled {
			if r := s.dispatch(ctx, &s.log); r > 0 && (retry == 0 || r < retry) {
				retry = r
			}
		}

		if s.loadEnabled() {
			s.sleep(ctx, s.loadInterval, true)
			s.checkLoad()
		} else {
			s.waitForWake(ctx, retry)
		}
	}

	s.shouldStop.Store(true)
	s.shutdown()
	return nil
}

func (s *Supervisor) stopping(ctx context.Context) bool {
	return s.shouldStop.Load() || ctx.Err() != nil
}

func (s *Supervisor) reapChildren(ctx context.Context) {
	for {
		r := s.ReapAndCheck()
		if r.PID == 0 {
			return
		}
		s.reportExit(EventTypeExited, r)

		if r.Meaningful && s.cfg.Interval > 0 && !s.cfg.ExitOnSuccess &&
			r.Status.Exited() && r.Status.ExitStatus() == 0 {
			s.logger.WithFields(logrus.Fields{
				"task":     r.Task,
				"interval": s.cfg.Interval,
			}).Info("waiting before next start")
			s.sleep(ctx, s.cfg.Interval, false)
		}
	}
}

func (s *Supervisor) reportExit(t EventType, r Reaped) {
	if r.Task == "" {
		s.logger.WithField("pid", r.PID).Debug("reaped unknown child")
		return
	}
	evt := exitEvent(t, r.Task, r.PID, r.Status)
	fields := logrus.Fields{"task": r.Task, "pid": r.PID, "outcome": evt.Outcome}
	if evt.ExitCode >= 0 {
		fields["status"] = evt.ExitCode
	}
	if evt.Signal != "" {
		fields["signal"] = evt.Signal
	}
	entry := s.logger.WithFields(fields)
	if evt.Outcome == OutcomeSuccess || t == EventTypeStopped {
		entry.Info("process exited")
	} else {
		entry.Warn("process exited")
	}
	s.sendEvent(evt)
}

func (s *Supervisor) noteTimeouts() {
	if n := s.timeouts.Swap(0); n > 0 {
		s.logger.WithFields(logrus.Fields{
			"task":    s.cmd.Name,
			"timeout": s.cfg.Timeout,
		}).Info("timeout reached, restarting")
		s.sendEvent(Event{
			Task:    s.cmd.Name,
			Type:    EventTypeTimeout,
			Message: fmt.Sprintf("timeout of %s reached", s.cfg.Timeout),
		})
	}
}

func (s *Supervisor) dispatch(ctx context.Context, t *Task) time.Duration {
	pid := t.PID()
	d, err := t.Dispatch(ctx, s.now())
	entry := s.logger.WithField("task", t.Name)
	if err != nil {
		entry.WithError(err).Error("dispatch failed")
		s.sendEvent(Event{Task: t.Name, Type: EventTypeFailed, PID: pid, Message: d.Pending.String(), Err: err})
	}

	switch {
	case d.PID > 0:
		if t == &s.cmd {
			s.paused.Store(false)
		}
		entry.WithFields(logrus.Fields{"pid": d.PID, "restarts": t.Restarts()}).Info("process started")
		s.sendEvent(Event{Task: t.Name, Type: EventTypeStarted, PID: d.PID, Restarts: t.Restarts()})
	case err != nil:
	case d.Pending.Action == ActionSignal && pid != NoPID:
		name := SignalName(d.Pending.Signal)
		entry.WithFields(logrus.Fields{"pid": pid, "signal": name}).Debug("forwarded signal")
		s.sendEvent(Event{Task: t.Name, Type: EventTypeSignaled, PID: pid, Signal: name})
	case d.Pending.Action == ActionStop && pid != NoPID:
		s.sendEvent(Event{Task: t.Name, Type: EventTypeStopping, PID: pid})
	}
	return d.Retry
}

func (s *Supervisor) checkLoad() {
	load, err := s.load()
	if err != nil {
		s.logger.WithError(err).Warn("sampling load average failed")
		return
	}
	entry := s.logger.WithFields(logrus.Fields{"task": s.cmd.Name, "load": load})

	switch {
	case !s.paused.Load() && load > s.cfg.LoadHigh:
		if err := s.cmd.SendSignalNow(unix.SIGSTOP); err != nil {
			entry.WithError(err).Warn("pausing command failed")
			return
		}
		s.paused.Store(true)
		entry.Info("load above threshold, command paused")
		s.sendEvent(Event{Task: s.cmd.Name, Type: EventTypePaused, PID: s.cmd.PID(), Message: fmt.Sprintf("load %.2f", load)})

	case s.paused.Load() && load <= s.cfg.LoadLow:
		if err := s.cmd.SendSignalNow(unix.SIGCONT); err != nil {
			entry.WithError(err).Warn("resuming command failed")
			return
		}
		s.paused.Store(false)
		entry.Info("load below threshold, command resumed")
		s.sendEvent(Event{Task: s.cmd.Name, Type: EventTypeResumed, PID: s.cmd.PID(), Message: fmt.Sprintf("load %.2f", load)})
	}
}

// sleep waits for d. With anyWake set it also returns on any signal, otherwise
// only a stop request cuts it short.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration, anyWake bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	woken := false
	defer func() {
		if woken {
			s.wake()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-s.wakeCh:
			if anyWake {
				return
			}
			woken = true
			if s.shouldStop.Load() {
				return
			}
		}
	}
}

func (s *Supervisor) waitForWake(ctx context.Context, retry time.Duration) {
	var timeout <-chan time.Time
	if retry > 0 {
		timer := time.NewTimer(retry)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
	case <-s.wakeCh:
	case <-timeout:
	}
}

func (s *Supervisor) shutdown() {
	s.logger.Info("stopping tasks")
	s.sendEvent(Event{Type: EventTypeShutdown})

	now := s.now()
	for _, t := range s.tasks() {
		t.take()
		if !t.Running() {
			continue
		}
		s.sendEvent(Event{Task: t.Name, Type: EventTypeStopping, PID: t.PID()})
		if err := t.Action(context.Background(), now, ActionStop); err != nil {
			s.logger.WithField("task", t.Name).WithError(err).Warn("stopping task failed")
		}
	}

	if s.awaitExit(s.cfg.StopTimeout) {
		return
	}
	for _, t := range s.tasks() {
		if !t.Running() {
			continue
		}
		s.logger.WithFields(logrus.Fields{"task": t.Name, "pid": t.PID()}).Warn("task did not stop in time, killing")
		if err := t.deliver(unix.SIGKILL); err != nil {
			s.logger.WithField("task", t.Name).WithError(err).Warn("killing task failed")
		}
	}
	s.awaitExit(killGrace)
}

// awaitExit reaps children until no task has a live process or timeout
// elapses, and reports whether every task is gone.
func (s *Supervisor) awaitExit(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(shutdownPoll)
	defer poll.Stop()

	for {
		s.shouldCheckChildren.Store(false)
		for {
			r := s.ReapAndCheck()
			if r.PID == 0 {
				break
			}
			s.reportExit(EventTypeStopped, r)
		}
		running := false
		for _, t := range s.tasks() {
			t.take()
			running = running || t.Running()
		}
		if !running {
			return true
		}
		if timeout <= 0 {
			return false
		}

		select {
		case <-deadline.C:
			return false
		case <-s.wakeCh:
		case <-poll.C:
		}
	}
}
