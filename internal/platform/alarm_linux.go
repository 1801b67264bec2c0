package platform

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Alarm delivers SIGALRM to the current process through ITIMER_REAL.
type Alarm struct{}

// NewAlarm returns the process alarm.
func NewAlarm() *Alarm {
	return &Alarm{}
}

// Arm schedules a single SIGALRM after d. A non-positive d cancels any alarm
// already scheduled.
func (a *Alarm) Arm(d time.Duration) error {
	var it unix.Itimerval
	if d > 0 {
		it.Value = unix.NsecToTimeval(d.Nanoseconds())
	}
	if _, err := unix.Setitimer(unix.ItimerReal, it); err != nil {
		return fmt.Errorf("setitimer: %w", err)
	}
	return nil
}
