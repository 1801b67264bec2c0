package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sysinfo reports load averages as fixed-point values with 16 fractional bits.
const loadScale = 1 << 16

// LoadAverage returns the one-minute system load average.
func LoadAverage() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	return float64(info.Loads[0]) / loadScale, nil
}
