//go:build !linux && !windows

package platform

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Alarm delivers SIGALRM to the current process from a runtime timer.
type Alarm struct {
	mu    sync.Mutex
	timer *time.Timer
}

// NewAlarm returns the process alarm.
func NewAlarm() *Alarm {
	return &Alarm{}
}

// Arm schedules a single SIGALRM after d. A non-positive d cancels any alarm
// already scheduled.
func (a *Alarm) Arm(d time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if d <= 0 {
		return nil
	}
	a.timer = time.AfterFunc(d, func() {
		_ = unix.Kill(unix.Getpid(), unix.SIGALRM)
	})
	return nil
}
