package supervise

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Action is the kind of effect pending on a task.
type Action uint8

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
	ActionSignal
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionSignal:
		return "signal"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Pending is the single effect queued on a task. Signal is only set when
// Action is ActionSignal.
type Pending struct {
	Action Action
	Signal unix.Signal
}

func (p Pending) String() string {
	if p.Action == ActionSignal {
		return "signal " + SignalName(p.Signal)
	}
	return p.Action.String()
}

// The action occupies the low byte and the signal number the bits above it,
// so the whole effect is stored and swapped as one word.
func (p Pending) pack() uint64 {
	if p.Action != ActionSignal {
		return uint64(p.Action)
	}
	return uint64(p.Action) | uint64(uint32(p.Signal))<<8
}

func unpack(v uint64) Pending {
	p := Pending{Action: Action(v & 0xff)}
	if p.Action == ActionSignal {
		p.Signal = unix.Signal(int32(uint32(v >> 8)))
	}
	return p
}
