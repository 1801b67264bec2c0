package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/warden/internal/metrics"
	"github.com/Paintersrp/warden/internal/supervise"
)

func TestNewStatusRecord(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	exited := newStatusRecord(supervise.Event{
		Timestamp: ts,
		Task:      supervise.CommandTask,
		Type:      supervise.EventTypeExited,
		PID:       42,
		ExitCode:  3,
		Outcome:   supervise.OutcomeFailure,
	})
	if exited.ExitCode == nil || *exited.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %v", exited.ExitCode)
	}
	if exited.Event != "exited" || exited.Task != "cmd" || exited.PID != 42 || !exited.Timestamp.Equal(ts) {
		t.Fatalf("unexpected record %+v", exited)
	}

	failed := newStatusRecord(supervise.Event{
		Task:     supervise.LogTask,
		Type:     supervise.EventTypeFailed,
		ExitCode: -1,
		Err:      errors.New("exec: not found"),
	})
	if failed.ExitCode != nil {
		t.Fatalf("expected no exit code, got %d", *failed.ExitCode)
	}
	if failed.Error != "exec: not found" {
		t.Fatalf("unexpected error %q", failed.Error)
	}
	if failed.Timestamp.IsZero() {
		t.Fatal("expected a timestamp to be filled in")
	}
}

func TestConsumeEventsWritesStatusLines(t *testing.T) {
	events := make(chan supervise.Event, 3)
	events <- supervise.Event{Task: supervise.CommandTask, Type: supervise.EventTypeStarted, PID: 10, ExitCode: -1}
	events <- supervise.Event{Task: supervise.CommandTask, Type: supervise.EventTypeSignaled, PID: 10, Signal: "HUP", ExitCode: -1}
	events <- supervise.Event{Type: supervise.EventTypeShutdown, ExitCode: -1}
	close(events)

	logger := logrus.New()
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	logger.SetLevel(logrus.DebugLevel)

	var status bytes.Buffer
	consumeEvents(events, logger, &status)

	lines := strings.Split(strings.TrimSpace(status.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 status lines, got %d: %q", len(lines), status.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &record); err != nil {
		t.Fatalf("decode status line: %v", err)
	}
	if record["event"] != "signaled" || record["signal"] != "HUP" || record["task"] != "cmd" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["exit_code"]; ok {
		t.Fatalf("exit code should be omitted for signaled events: %v", record)
	}
	if !strings.Contains(logs.String(), "event=started") {
		t.Fatalf("expected events in debug log, got %q", logs.String())
	}
}

func TestConsumeEventsWithoutStatus(t *testing.T) {
	events := make(chan supervise.Event, 1)
	events <- supervise.Event{Task: supervise.CommandTask, Type: supervise.EventTypeStarted, ExitCode: -1}
	close(events)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	consumeEvents(events, logger, nil)
}

func taskRunningGauges(t *testing.T) map[string]float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	gauges := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "warden_task_running" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "task" {
					gauges[label.GetValue()] = m.GetGauge().GetValue()
				}
			}
		}
	}
	return gauges
}

func TestInitTaskMetricsResetsEarlierRun(t *testing.T) {
	metrics.SetTaskRunning(supervise.CommandTask, true)
	metrics.SetTaskRunning(supervise.LogTask, true)

	initTaskMetrics(false)
	gauges := taskRunningGauges(t)
	if v, ok := gauges[supervise.CommandTask]; !ok || v != 0 {
		t.Fatalf("expected command gauge reset to 0, got %v (present %v)", v, ok)
	}
	if _, ok := gauges[supervise.LogTask]; ok {
		t.Fatalf("log gauge kept without a log command: %v", gauges)
	}

	initTaskMetrics(true)
	if v, ok := taskRunningGauges(t)[supervise.LogTask]; !ok || v != 0 {
		t.Fatalf("expected log gauge published as 0, got %v (present %v)", v, ok)
	}
}
