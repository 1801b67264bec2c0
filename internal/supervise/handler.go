package supervise

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// HandleSignal is the asynchronous signal handler. It only records intent in
// atomic words and wakes the main loop; the one exception is the watchdog,
// which stops the command with kill(2) right away and queues its restart.
// Signals outside the watched set are ignored.
func (s *Supervisor) HandleSignal(sig os.Signal) {
	signum, ok := sig.(unix.Signal)
	if !ok {
		return
	}

	switch {
	case signum == unix.SIGINT || signum == unix.SIGTERM:
		s.shouldStop.Store(true)

	case signum == unix.SIGCHLD:
		s.shouldCheckChildren.Store(true)

	case signum == unix.SIGALRM && s.cfg.Timeout > 0:
		if s.shouldStop.Load() {
			return
		}
		_ = s.cmd.stopNow()
		s.cmd.QueueAction(ActionStart)
		s.timeouts.Add(1)
		_ = s.alarm.Arm(s.cfg.Timeout)

	case isForwardable(signum):
		if s.cmd.Forward {
			s.cmd.QueueSignal(signum)
		}
		if s.logEnabled && s.log.Forward {
			s.log.QueueSignal(signum)
		}

	default:
		return
	}
	s.wake()
}

// Notify registers HandleSignal for WatchedSignals and returns a function
// that unregisters it.
func (s *Supervisor) Notify() (stop func()) {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, WatchedSignals()...)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				s.HandleSignal(sig)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
