package process

import (
	"context"
	"os"
	"path/filepath"
	stdruntime "runtime"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func waitPID(t *testing.T, pid int) unix.WaitStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var status unix.WaitStatus
		got, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		if err != nil {
			t.Fatalf("wait4: %v", err)
		}
		if got == pid {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("process %d did not exit", pid)
	return 0
}

func TestNewRequiresCommand(t *testing.T) {
	if _, err := New(Spec{Name: "cmd"}); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func TestStartWritesToStdoutFile(t *testing.T) {
	if stdruntime.GOOS == "windows" {
		t.Skip("process runtime tests skipped on windows")
	}

	out, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("create output: %v", err)
	}
	defer out.Close()

	runner, err := New(Spec{
		Name:           "cmd",
		Argv:           []string{"/bin/sh", "-c", "echo \"$GREETING\"; echo oops >&2; exit 4"},
		Env:            []string{"GREETING=hello"},
		Stdout:         out,
		RedirectStderr: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pid, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := waitPID(t, pid)
	if !status.Exited() || status.ExitStatus() != 4 {
		t.Fatalf("unexpected status: exited=%v code=%d", status.Exited(), status.ExitStatus())
	}

	data, err := os.ReadFile(out.Name())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "hello\noops" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestStartPipesIntoLogProcess(t *testing.T) {
	if stdruntime.GOOS == "windows" {
		t.Skip("process runtime tests skipped on windows")
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	logPath := filepath.Join(t.TempDir(), "log")
	logOut, err := os.Create(logPath)
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	defer logOut.Close()

	cmd, _ := New(Spec{Name: "cmd", Argv: []string{"/bin/echo", "piped"}, Stdout: w})
	logger, _ := New(Spec{Name: "log", Argv: []string{"/bin/cat"}, Stdin: r, Stdout: logOut})

	logPID, err := logger.Start(context.Background())
	if err != nil {
		t.Fatalf("start log: %v", err)
	}
	cmdPID, err := cmd.Start(context.Background())
	if err != nil {
		t.Fatalf("start cmd: %v", err)
	}
	waitPID(t, cmdPID)
	_ = w.Close()
	_ = r.Close()
	waitPID(t, logPID)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.TrimSpace(string(data)) != "piped" {
		t.Fatalf("unexpected log output %q", data)
	}
}

func TestStartMissingBinary(t *testing.T) {
	runner, err := New(Spec{Name: "cmd", Argv: []string{"warden-test-no-such-binary"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := runner.Start(context.Background()); err == nil {
		t.Fatalf("expected start error for missing binary")
	}
}

func TestSignalDeliversToProcess(t *testing.T) {
	if stdruntime.GOOS == "windows" {
		t.Skip("process runtime tests skipped on windows")
	}

	runner, _ := New(Spec{Name: "cmd", Argv: []string{"/bin/sleep", "30"}})
	pid, err := runner.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := runner.Signal(pid, unix.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	status := waitPID(t, pid)
	if !status.Signaled() || status.Signal() != unix.SIGTERM {
		t.Fatalf("unexpected status: %v", status)
	}
}

func TestStartHonoursCanceledContext(t *testing.T) {
	runner, _ := New(Spec{Name: "cmd", Argv: []string{"/bin/true"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runner.Start(ctx); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
