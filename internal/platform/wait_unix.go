//go:build !windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Wait4 reaps at most one exited child without blocking. A zero pid means no
// child has changed state, including when the process has no children left.
func Wait4() (int, unix.WaitStatus, error) {
	var status unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return 0, 0, nil
		case err != nil:
			return 0, 0, fmt.Errorf("wait4: %w", err)
		}
		return pid, status, nil
	}
}
