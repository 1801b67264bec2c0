package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Spec describes how to spawn one process.
type Spec struct {
	Name string
	Argv []string
	Env  []string
	Dir  string

	// Stdin, Stdout and Stderr default to the supervisor's own streams.
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	// RedirectStderr sends standard error to the same file as Stdout.
	RedirectStderr bool

	// Credential switches the user and groups of the process when set.
	Credential *syscall.Credential
}

// Runner starts processes from a Spec.
type Runner struct {
	spec Spec
}

// New validates spec and returns a Runner for it.
func New(spec Spec) (*Runner, error) {
	if len(spec.Argv) == 0 || spec.Argv[0] == "" {
		return nil, fmt.Errorf("process %s requires a command", spec.Name)
	}
	return &Runner{spec: spec}, nil
}

// Start spawns the process and returns its pid without waiting for it.
func (r *Runner) Start(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cmd := exec.Command(r.spec.Argv[0], r.spec.Argv[1:]...)
	if cmd.Err != nil {
		return 0, fmt.Errorf("process %s: %w", r.spec.Name, cmd.Err)
	}
	cmd.Env = r.spec.Env
	cmd.Dir = r.spec.Dir

	cmd.Stdin = fileOr(r.spec.Stdin, os.Stdin)
	stdout := fileOr(r.spec.Stdout, os.Stdout)
	cmd.Stdout = stdout
	if r.spec.RedirectStderr {
		cmd.Stderr = stdout
	} else {
		cmd.Stderr = fileOr(r.spec.Stderr, os.Stderr)
	}

	configureCmdSysProcAttr(cmd, r.spec.Credential)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start process %s: %w", r.spec.Name, err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// Signal delivers sig to pid.
func (r *Runner) Signal(pid int, sig unix.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal process %s: %w", r.spec.Name, err)
	}
	return nil
}

func fileOr(f, fallback *os.File) *os.File {
	if f != nil {
		return f
	}
	return fallback
}
