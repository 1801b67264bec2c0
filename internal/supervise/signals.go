package supervise

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// forwardable lists the signals relayed to the supervised tasks. SIGALRM is
// only relayed while no watchdog timeout is configured.
var forwardable = [...]unix.Signal{
	unix.SIGCONT,
	unix.SIGALRM,
	unix.SIGQUIT,
	unix.SIGUSR1,
	unix.SIGUSR2,
	unix.SIGHUP,
}

func isForwardable(sig unix.Signal) bool {
	for _, s := range forwardable {
		if s == sig {
			return true
		}
	}
	return false
}

// WatchedSignals returns every signal the handler must be registered for.
func WatchedSignals() []os.Signal {
	sigs := []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGCHLD}
	for _, s := range forwardable {
		sigs = append(sigs, s)
	}
	return sigs
}

// ParseSignal accepts a signal name with or without the SIG prefix, in any
// case, or a signal number.
func ParseSignal(value string) (unix.Signal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty signal")
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n <= 0 || signalName(unix.Signal(n)) == "" {
			return 0, fmt.Errorf("unknown signal %d", n)
		}
		return unix.Signal(n), nil
	}
	name := strings.ToUpper(value)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig := unix.SignalNum(name)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", value)
	}
	return sig, nil
}

// signalName returns the short name of sig, such as HUP.
func signalName(sig unix.Signal) string {
	return strings.TrimPrefix(unix.SignalName(sig), "SIG")
}

// SignalName returns the short name of sig, falling back to its number.
func SignalName(sig unix.Signal) string {
	if name := signalName(sig); name != "" {
		return name
	}
	return strconv.Itoa(int(sig))
}
