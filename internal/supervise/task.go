package supervise

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// NoPID marks a task that is not backed by a live process.
const NoPID = -1

// minStartInterval is the shortest time between two starts of the same task.
// A task that dies right after starting is respawned no faster than this.
const minStartInterval = time.Second

// Runner spawns and signals the process behind a task. Start must not wait
// for the process: children are collected through the supervisor's reaper.
type Runner interface {
	Start(ctx context.Context) (int, error)
	Signal(pid int, sig unix.Signal) error
}

// Task is one supervised process. All mutable state is held in single atomic
// words so the signal handler may update it while the main loop runs.
type Task struct {
	Name    string
	Forward bool

	runner  Runner
	pid     atomic.Int64
	pending atomic.Uint64
	started atomic.Int64
	starts  atomic.Int64
	// restarting is set while a requested restart waits for the old process
	// to be reaped.
	restarting atomic.Bool
}

func (t *Task) init(name string, forward bool, runner Runner) {
	t.Name = name
	t.Forward = forward
	t.runner = runner
	t.pid.Store(NoPID)
	t.QueueAction(ActionStart)
}

// PID returns the pid of the live process or NoPID.
func (t *Task) PID() int {
	return int(t.pid.Load())
}

// Running reports whether the task is backed by a live process.
func (t *Task) Running() bool {
	return t.PID() != NoPID
}

// StartedAt returns the time of the last start attempt.
func (t *Task) StartedAt() time.Time {
	ns := t.started.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Restarts returns how many times the task was started after its first start.
func (t *Task) Restarts() int {
	n := t.starts.Load()
	if n <= 1 {
		return 0
	}
	return int(n - 1)
}

// Pending returns the effect currently queued on the task.
func (t *Task) Pending() Pending {
	return unpack(t.pending.Load())
}

// QueueAction replaces any pending effect with a.
func (t *Task) QueueAction(a Action) {
	t.pending.Store(Pending{Action: a}.pack())
}

// QueueSignal replaces any pending effect with the delivery of sig.
func (t *Task) QueueSignal(sig unix.Signal) {
	t.pending.Store(Pending{Action: ActionSignal, Signal: sig}.pack())
}

func (t *Task) take() Pending {
	return unpack(t.pending.Swap(0))
}

// requeue puts p back unless something newer was queued meanwhile.
func (t *Task) requeue(p Pending) bool {
	return t.pending.CompareAndSwap(0, p.pack())
}

func (t *Task) takeSignal() (unix.Signal, bool) {
	for {
		v := t.pending.Load()
		p := unpack(v)
		if p.Action != ActionSignal {
			return 0, false
		}
		if t.pending.CompareAndSwap(v, 0) {
			return p.Signal, true
		}
	}
}

// SendSignalNow delivers sig to the task before returning. A different signal
// still pending on the task is delivered first; pending start and stop
// actions are left for the main loop. Nothing is sent to a task without a
// live process.
func (t *Task) SendSignalNow(sig unix.Signal) error {
	if pending, ok := t.takeSignal(); ok && pending != sig {
		if err := t.deliver(pending); err != nil {
			return err
		}
	}
	return t.deliver(sig)
}

func (t *Task) deliver(sig unix.Signal) error {
	pid := t.PID()
	if pid == NoPID || sig == 0 {
		return nil
	}
	if err := t.runner.Signal(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %s to %s process %d: %w", SignalName(sig), t.Name, pid, err)
	}
	return nil
}

func (t *Task) stopNow() error {
	if !t.Running() {
		return nil
	}
	return errors.Join(t.SendSignalNow(unix.SIGTERM), t.SendSignalNow(unix.SIGCONT))
}

// Dispatched describes what a call to Dispatch did.
type Dispatched struct {
	Pending Pending
	// PID is set when a process was started.
	PID int
	// Deferred is set when the pending start was kept for later.
	Deferred bool
	// Retry is how long the caller should wait before dispatching again.
	// Zero means the next state change is announced by a signal.
	Retry time.Duration
}

// Dispatch applies the pending effect. It must only be called from the main
// loop.
//
// A start is deferred while the previous process has not been reaped yet and
// until minStartInterval has passed since the previous start. A signal aimed
// at a task without a live process is dropped and the task goes back to
// pending start, since a forwarded signal may have overwritten that start.
func (t *Task) Dispatch(ctx context.Context, now time.Time) (Dispatched, error) {
	p := t.take()
	d := Dispatched{Pending: p}

	switch p.Action {
	case ActionNone:
		return d, nil

	case ActionStart:
		if t.Running() {
			t.requeue(p)
			d.Deferred = true
			return d, nil
		}
		if last := t.StartedAt(); !last.IsZero() {
			if wait := minStartInterval - now.Sub(last); wait > 0 {
				t.requeue(p)
				d.Deferred = true
				d.Retry = wait
				return d, nil
			}
		}
		t.started.Store(now.UnixNano())
		pid, err := t.runner.Start(ctx)
		if err != nil {
			t.requeue(p)
			d.Retry = minStartInterval
			return d, fmt.Errorf("start %s: %w", t.Name, err)
		}
		t.starts.Add(1)
		t.pid.Store(int64(pid))
		d.PID = pid
		return d, nil

	case ActionStop:
		return d, t.stopNow()

	case ActionSignal:
		if !t.Running() {
			t.requeue(Pending{Action: ActionStart})
			return d, nil
		}
		return d, t.deliver(p.Signal)
	}
	return d, nil
}

// Action dispatches whatever is pending, queues a and dispatches it right
// away.
func (t *Task) Action(ctx context.Context, now time.Time, a Action) error {
	_, err := t.Dispatch(ctx, now)
	t.QueueAction(a)
	_, err2 := t.Dispatch(ctx, now)
	return errors.Join(err, err2)
}
