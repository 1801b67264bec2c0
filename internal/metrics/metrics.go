package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	taskRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "task_running",
		Help:      "Whether a task is backed by a live process (1=running, 0=not running).",
	}, []string{"task"})

	taskRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "task_restarts_total",
		Help:      "Total number of restarts of each task.",
	}, []string{"task"})

	taskExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "task_exits_total",
		Help:      "Total number of task process exits by outcome.",
	}, []string{"task", "outcome"})

	signalsForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "signals_forwarded_total",
		Help:      "Total number of signals delivered to each task.",
	}, []string{"task", "signal"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "build_info",
		Help:      "Build metadata for the running warden binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(taskRunning, taskRestarts, taskExits, signalsForwarded, buildInfo)
}

// Registry returns the Prometheus registry containing all warden metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetTaskRunning records whether a task currently has a live process.
func SetTaskRunning(task string, running bool) {
	if task == "" {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	taskRunning.WithLabelValues(task).Set(value)
}

// IncrementTaskRestart increments the restart counter by one for a task.
func IncrementTaskRestart(task string) {
	if task == "" {
		return
	}
	taskRestarts.WithLabelValues(task).Inc()
}

// ObserveTaskExit counts a process exit of a task.
func ObserveTaskExit(task, outcome string) {
	if task == "" {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	taskExits.WithLabelValues(task, outcome).Inc()
}

// IncrementSignalForwarded counts a signal delivered to a task.
func IncrementSignalForwarded(task, signal string) {
	if task == "" || signal == "" {
		return
	}
	signalsForwarded.WithLabelValues(task, signal).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetTask clears every series of a task.
func ResetTask(task string) {
	if task == "" {
		return
	}
	taskRunning.DeleteLabelValues(task)
	taskRestarts.DeleteLabelValues(task)
	taskExits.DeletePartialMatch(prometheus.Labels{"task": task})
	signalsForwarded.DeletePartialMatch(prometheus.Labels{"task": task})
}
