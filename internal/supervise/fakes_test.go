package supervise

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type sentSignal struct {
	pid int
	sig unix.Signal
}

type fakeRunner struct {
	mu       sync.Mutex
	nextPID  int
	startErr error
	started  []int
	signals  []sentSignal
	onSignal func(pid int, sig unix.Signal)
}

func newFakeRunner(base int) *fakeRunner {
	return &fakeRunner{nextPID: base}
}

func (r *fakeRunner) Start(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return NoPID, r.startErr
	}
	r.nextPID++
	r.started = append(r.started, r.nextPID)
	return r.nextPID, nil
}

func (r *fakeRunner) Signal(pid int, sig unix.Signal) error {
	r.mu.Lock()
	hook := r.onSignal
	r.signals = append(r.signals, sentSignal{pid: pid, sig: sig})
	r.mu.Unlock()
	if hook != nil {
		hook(pid, sig)
	}
	return nil
}

func (r *fakeRunner) setStartErr(err error) {
	r.mu.Lock()
	r.startErr = err
	r.mu.Unlock()
}

func (r *fakeRunner) startedPIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.started...)
}

func (r *fakeRunner) sent() []sentSignal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentSignal(nil), r.signals...)
}

type waitResult struct {
	pid    int
	status unix.WaitStatus
	err    error
}

type fakeWaiter struct {
	mu      sync.Mutex
	results []waitResult
	calls   int
}

func (w *fakeWaiter) push(pid int, status unix.WaitStatus) {
	w.mu.Lock()
	w.results = append(w.results, waitResult{pid: pid, status: status})
	w.mu.Unlock()
}

func (w *fakeWaiter) Wait() (int, unix.WaitStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if len(w.results) == 0 {
		return 0, 0, nil
	}
	r := w.results[0]
	w.results = w.results[1:]
	return r.pid, r.status, r.err
}

type fakeAlarm struct {
	mu   sync.Mutex
	arms []time.Duration
}

func (a *fakeAlarm) Arm(d time.Duration) error {
	a.mu.Lock()
	a.arms = append(a.arms, d)
	a.mu.Unlock()
	return nil
}

func (a *fakeAlarm) armed() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.arms...)
}

// steppingClock advances by step on every reading so the start guard never
// delays a respawn.
type steppingClock struct {
	base time.Time
	step time.Duration
	n    atomic.Int64
}

func newSteppingClock() *steppingClock {
	return &steppingClock{base: time.Unix(1_700_000_000, 0), step: 2 * time.Second}
}

func (c *steppingClock) Now() time.Time {
	return c.base.Add(time.Duration(c.n.Add(1)) * c.step)
}

// exited builds the wait status of a process that exited with code.
func exited(code int) unix.WaitStatus {
	return unix.WaitStatus(code << 8)
}

// killedBy builds the wait status of a process terminated by sig.
func killedBy(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(sig)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type harness struct {
	sup    *Supervisor
	cmd    *fakeRunner
	log    *fakeRunner
	waiter *fakeWaiter
	alarm  *fakeAlarm
	events chan Event
}

func newHarness(cfg Config, withLog bool, opts ...Option) *harness {
	h := &harness{
		cmd:    newFakeRunner(100),
		waiter: &fakeWaiter{},
		alarm:  &fakeAlarm{},
		events: make(chan Event, 256),
	}
	var logRunner Runner
	if withLog {
		h.log = newFakeRunner(200)
		logRunner = h.log
	}
	base := []Option{
		WithLogger(quietLogger()),
		WithWaiter(h.waiter),
		WithAlarm(h.alarm),
		WithEvents(h.events),
		WithClock(newSteppingClock().Now),
		WithLoadAverage(func() (float64, error) { return 0, errors.New("no load average in tests") }),
	}
	h.sup = New(cfg, h.cmd, logRunner, append(base, opts...)...)
	return h
}

// waitForEvent drains events until one matches or the deadline passes.
func (h *harness) waitForEvent(match func(Event) bool) (Event, bool) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt := <-h.events:
			if match(evt) {
				return evt, true
			}
		case <-timeout:
			return Event{}, false
		}
	}
}
