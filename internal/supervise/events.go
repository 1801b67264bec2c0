package supervise

import (
	"time"

	"golang.org/x/sys/unix"
)

// EventType captures lifecycle notifications emitted by the main loop.
type EventType string

const (
	EventTypeStarting EventType = "starting"
	EventTypeStarted  EventType = "started"
	EventTypeExited   EventType = "exited"
	EventTypeSignaled EventType = "signaled"
	EventTypeStopping EventType = "stopping"
	EventTypeStopped  EventType = "stopped"
	EventTypeTimeout  EventType = "timeout"
	EventTypePaused   EventType = "paused"
	EventTypeResumed  EventType = "resumed"
	EventTypeFailed   EventType = "failed"
	EventTypeShutdown EventType = "shutdown"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeSignaled = "signaled"
)

// Event represents a single lifecycle notification. ExitCode is -1 unless
// the process exited normally.
type Event struct {
	Timestamp time.Time
	Task      string
	Type      EventType
	PID       int
	ExitCode  int
	Outcome   string
	Signal    string
	Message   string
	Err       error
	Restarts  int
}

func (s *Supervisor) sendEvent(evt Event) {
	if s.events == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	if evt.Type != EventTypeExited && evt.Type != EventTypeStopped {
		evt.ExitCode = -1
	}
	s.events <- evt
}

func exitEvent(t EventType, task string, pid int, status unix.WaitStatus) Event {
	evt := Event{Task: task, Type: t, PID: pid, ExitCode: -1}
	switch {
	case status.Exited():
		evt.ExitCode = status.ExitStatus()
		evt.Outcome = OutcomeFailure
		if evt.ExitCode == 0 {
			evt.Outcome = OutcomeSuccess
		}
	case status.Signaled():
		evt.Outcome = OutcomeSignaled
		evt.Signal = SignalName(status.Signal())
	}
	return evt
}
