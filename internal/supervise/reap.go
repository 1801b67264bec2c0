package supervise

import (
	"golang.org/x/sys/unix"
)

// Reaped is the result of one ReapAndCheck call. PID is 0 when no child had
// exited. Meaningful is only set for the command task, whose status drives
// the respawn interval.
type Reaped struct {
	PID        int
	Task       string
	Status     unix.WaitStatus
	Meaningful bool
}

// ReapAndCheck collects at most one exited child and updates the task it
// belonged to. The caller repeats it until PID is 0. A command that exits
// because of RestartTask is always started again, even with ExitOnSuccess.
func (s *Supervisor) ReapAndCheck() Reaped {
	pid, status, err := s.waiter.Wait()
	if err != nil {
		s.logger.WithError(err).Warn("reaping children failed")
		return Reaped{}
	}
	if pid <= 0 {
		return Reaped{}
	}

	switch {
	case pid == s.cmd.PID():
		s.cmd.pid.Store(NoPID)
		restarting := s.cmd.restarting.Swap(false)
		if !restarting && s.cfg.ExitOnSuccess && status.Exited() && status.ExitStatus() == 0 {
			s.shouldStop.Store(true)
		} else {
			s.cmd.QueueAction(ActionStart)
		}
		return Reaped{PID: pid, Task: s.cmd.Name, Status: status, Meaningful: true}

	case s.logEnabled && pid == s.log.PID():
		s.log.pid.Store(NoPID)
		s.log.restarting.Store(false)
		s.log.QueueAction(ActionStart)
		return Reaped{PID: pid, Task: s.log.Name, Status: status}
	}
	return Reaped{PID: pid, Status: status}
}
