package supervise

import (
	"context"
	"fmt"
	"os"

	"github.com/Paintersrp/warden/internal/api"
	"github.com/Paintersrp/warden/internal/metrics"
)

// Version is reported in status responses.
var Version = "dev"

// Status reports the state of both tasks.
func (s *Supervisor) Status(ctx context.Context) (*api.StatusReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := &api.StatusReport{
		PID:         os.Getpid(),
		Version:     Version,
		GeneratedAt: s.now().UTC(),
		Paused:      s.paused.Load(),
		Stopping:    s.shouldStop.Load(),
		Tasks:       make(map[string]api.TaskReport, 2),
	}
	for _, t := range s.tasks() {
		tr := api.TaskReport{
			Name:     t.Name,
			Running:  t.Running(),
			PID:      t.PID(),
			Pending:  t.Pending().String(),
			Restarts: t.Restarts(),
			Forward:  t.Forward,
		}
		if started := t.StartedAt(); !started.IsZero() {
			tr.StartedAt = started.UTC()
		}
		report.Tasks[t.Name] = tr
	}
	return report, nil
}

// SignalTask delivers a signal to a task immediately.
func (s *Supervisor) SignalTask(ctx context.Context, name, signal string) (*api.SignalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := s.Task(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrUnknownTask, name)
	}
	sig, err := ParseSignal(signal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrInvalidSignal, err)
	}
	pid := t.PID()
	if pid == NoPID {
		return nil, fmt.Errorf("%w: %s", api.ErrTaskNotRunning, name)
	}
	if err := t.SendSignalNow(sig); err != nil {
		return nil, err
	}
	metrics.IncrementSignalForwarded(name, SignalName(sig))
	s.logger.WithField("task", name).WithField("signal", SignalName(sig)).Info("signal delivered on request")
	return &api.SignalResult{
		Task:        name,
		Signal:      SignalName(sig),
		PID:         pid,
		DeliveredAt: s.now().UTC(),
	}, nil
}

// RestartTask stops the task's process and queues a new start. The start is
// applied by the main loop once the old process has been reaped.
func (s *Supervisor) RestartTask(ctx context.Context, name string) (*api.RestartResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.shouldStop.Load() {
		return nil, api.ErrShuttingDown
	}
	t, ok := s.Task(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrUnknownTask, name)
	}
	pid := t.PID()
	t.restarting.Store(pid != NoPID)
	if err := t.stopNow(); err != nil {
		t.restarting.Store(false)
		return nil, err
	}
	t.QueueAction(ActionStart)
	s.wake()
	s.logger.WithField("task", name).Info("restart requested")
	return &api.RestartResult{
		Task:        name,
		PID:         pid,
		Restarts:    t.Restarts(),
		RequestedAt: s.now().UTC(),
	}, nil
}

var _ api.Controller = (*Supervisor)(nil)
