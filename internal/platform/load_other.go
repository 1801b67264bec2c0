//go:build !linux

package platform

import "errors"

// ErrLoadUnsupported is returned where the load average cannot be sampled.
var ErrLoadUnsupported = errors.New("load average is not supported on this platform")

// LoadAverage returns the one-minute system load average.
func LoadAverage() (float64, error) {
	return 0, ErrLoadUnsupported
}
