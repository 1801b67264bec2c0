//go:build !windows

package platform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"golang.org/x/sys/unix"
)

type limitKind int

const (
	limitCount limitKind = iota
	limitSize
)

type limitInfo struct {
	resource    int
	kind        limitKind
	description string
}

// Limit is a parsed resource limit ready to be applied with Apply.
type Limit struct {
	Name     string
	Resource int
	Value    uint64
}

// LimitNames lists the resource names accepted by ParseLimit.
func LimitNames() []string {
	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DescribeLimit returns a short description of the named resource.
func DescribeLimit(name string) string {
	return limits[name].description
}

// ParseLimit parses name=value. Size limits accept unit suffixes such as 64m
// or 1g; "unlimited" and "infinity" lift the limit.
func ParseLimit(spec string) (Limit, error) {
	name, raw, ok := strings.Cut(spec, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	raw = strings.TrimSpace(raw)
	if !ok || name == "" || raw == "" {
		return Limit{}, fmt.Errorf("limit %q: expected name=value", spec)
	}

	info, found := limits[name]
	if !found {
		return Limit{}, fmt.Errorf("limit %q: unknown resource %q", spec, name)
	}

	value, err := parseLimitValue(raw, info.kind)
	if err != nil {
		return Limit{}, fmt.Errorf("limit %q: %w", spec, err)
	}
	return Limit{Name: name, Resource: info.resource, Value: value}, nil
}

func parseLimitValue(raw string, kind limitKind) (uint64, error) {
	switch strings.ToLower(raw) {
	case "unlimited", "infinity":
		return unix.RLIM_INFINITY, nil
	}
	if kind == limitSize {
		size, err := units.RAMInBytes(raw)
		if err != nil {
			return 0, err
		}
		if size < 0 {
			return 0, fmt.Errorf("negative size %q", raw)
		}
		return uint64(size), nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	return value, nil
}

// Apply sets both the soft and the hard limit for the current process. Child
// processes inherit it.
func (l Limit) Apply() error {
	rlim := unix.Rlimit{Cur: l.Value, Max: l.Value}
	if err := unix.Setrlimit(l.Resource, &rlim); err != nil {
		return fmt.Errorf("setrlimit %s: %w", l.Name, err)
	}
	return nil
}
