package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/warden/internal/metrics"
	"github.com/Paintersrp/warden/internal/supervise"
)

// statusRecord is the JSON line written for every lifecycle event when
// --status is set.
type statusRecord struct {
	Timestamp time.Time `json:"ts"`
	Task      string    `json:"task,omitempty"`
	Event     string    `json:"event"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	Restarts  int       `json:"restarts,omitempty"`
	Message   string    `json:"msg,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func newStatusRecord(evt supervise.Event) statusRecord {
	record := statusRecord{
		Timestamp: evt.Timestamp,
		Task:      evt.Task,
		Event:     string(evt.Type),
		PID:       evt.PID,
		Outcome:   evt.Outcome,
		Signal:    evt.Signal,
		Restarts:  evt.Restarts,
		Message:   evt.Message,
	}
	if evt.ExitCode >= 0 {
		code := evt.ExitCode
		record.ExitCode = &code
	}
	if evt.Err != nil {
		record.Error = evt.Err.Error()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	return record
}

func encodeStatusEvent(enc *json.Encoder, stderr io.Writer, evt supervise.Event) {
	if enc == nil {
		return
	}
	record := newStatusRecord(evt)
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode status: %v\n", err)
	}
}

// consumeEvents drains events until the channel is closed. Every event updates
// the metrics and is logged at debug level; when status is not nil it is also
// written there as a JSON line.
func consumeEvents(events <-chan supervise.Event, logger logrus.FieldLogger, status io.Writer) {
	var enc *json.Encoder
	if status != nil {
		enc = json.NewEncoder(status)
	}
	for evt := range events {
		recordMetrics(evt)
		logEvent(logger, evt)
		encodeStatusEvent(enc, status, evt)
	}
}

// initTaskMetrics clears the task series left by an earlier run and publishes
// a not-running gauge for every configured task.
func initTaskMetrics(logEnabled bool) {
	metrics.ResetTask(supervise.CommandTask)
	metrics.ResetTask(supervise.LogTask)
	metrics.SetTaskRunning(supervise.CommandTask, false)
	if logEnabled {
		metrics.SetTaskRunning(supervise.LogTask, false)
	}
}

func recordMetrics(evt supervise.Event) {
	switch evt.Type {
	case supervise.EventTypeStarted:
		metrics.SetTaskRunning(evt.Task, true)
		if evt.Restarts > 0 {
			metrics.IncrementTaskRestart(evt.Task)
		}
	case supervise.EventTypeExited, supervise.EventTypeStopped:
		metrics.SetTaskRunning(evt.Task, false)
		metrics.ObserveTaskExit(evt.Task, evt.Outcome)
	case supervise.EventTypeSignaled:
		metrics.IncrementSignalForwarded(evt.Task, evt.Signal)
	}
}

func logEvent(logger logrus.FieldLogger, evt supervise.Event) {
	if logger == nil {
		return
	}
	entry := logger.WithField("event", string(evt.Type))
	if evt.Task != "" {
		entry = entry.WithField("task", evt.Task)
	}
	if evt.PID > 0 {
		entry = entry.WithField("pid", evt.PID)
	}
	if evt.ExitCode >= 0 {
		entry = entry.WithField("status", evt.ExitCode)
	}
	if evt.Signal != "" {
		entry = entry.WithField("signal", evt.Signal)
	}
	if evt.Restarts > 0 {
		entry = entry.WithField("restarts", evt.Restarts)
	}
	if evt.Err != nil {
		entry = entry.WithError(evt.Err)
	}

	msg := evt.Message
	if msg == "" {
		msg = "lifecycle event"
	}
	entry.Debug(msg)
}
