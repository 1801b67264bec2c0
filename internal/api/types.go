package api

import (
	stdcontext "context"
	"errors"
	"time"
)

var (
	ErrUnknownTask    = errors.New("unknown task")
	ErrTaskNotRunning = errors.New("task not running")
	ErrInvalidSignal  = errors.New("invalid signal")
	ErrShuttingDown   = errors.New("supervisor shutting down")
)

// TaskReport describes the runtime state of a single task.
type TaskReport struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	Pending   string    `json:"pending"`
	Restarts  int       `json:"restarts"`
	Forward   bool      `json:"forward"`
	StartedAt time.Time `json:"started_at"`
}

// StatusReport aggregates supervisor-wide status information.
type StatusReport struct {
	PID         int                   `json:"pid"`
	Version     string                `json:"version"`
	GeneratedAt time.Time             `json:"generated_at"`
	Paused      bool                  `json:"paused"`
	Stopping    bool                  `json:"stopping"`
	Tasks       map[string]TaskReport `json:"tasks"`
}

// SignalResult captures the outcome of a signal delivery.
type SignalResult struct {
	Task        string    `json:"task"`
	Signal      string    `json:"signal"`
	PID         int       `json:"pid"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// RestartResult captures the outcome of a restart request.
type RestartResult struct {
	Task        string    `json:"task"`
	PID         int       `json:"pid"`
	Restarts    int       `json:"restarts"`
	RequestedAt time.Time `json:"requested_at"`
}

// Controller exposes supervisor operations required by control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	SignalTask(stdcontext.Context, string, string) (*SignalResult, error)
	RestartTask(stdcontext.Context, string) (*RestartResult, error)
}
