package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/warden/internal/platform"
)

// DefaultStopTimeout bounds how long shutdown waits before killing tasks.
const DefaultStopTimeout = 5 * time.Second

// ErrConflictingOptions reports options that cannot be combined.
var ErrConflictingOptions = errors.New("conflicting options")

var logFormats = map[string]struct{}{"auto": {}, "text": {}, "json": {}}

// ApplyDefaults fills in values that were not provided.
func (c *Config) ApplyDefaults() {
	if !c.StopTimeout.IsSet() {
		c.StopTimeout = NewDuration(DefaultStopTimeout)
	}
	if c.Load.High > 0 && c.Load.Low == 0 {
		c.Load.Low = c.Load.High / 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "auto"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return errors.New("no command to run given")
	}
	if len(c.Log) > 0 && strings.TrimSpace(c.Log[0]) == "" {
		return errors.New("log: empty command")
	}
	if c.Interval.Duration > 0 && c.ExitOnSuccess {
		return fmt.Errorf("%w: interval and exitOnSuccess cannot be used together", ErrConflictingOptions)
	}
	if c.Forward.Log && len(c.Log) == 0 {
		return fmt.Errorf("%w: forward.log requires a log command", ErrConflictingOptions)
	}
	if c.LogUser != "" && len(c.Log) == 0 {
		return fmt.Errorf("%w: logUser requires a log command", ErrConflictingOptions)
	}

	for name, d := range map[string]Duration{
		"timeout":     c.Timeout,
		"interval":    c.Interval,
		"stopTimeout": c.StopTimeout,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%s: must not be negative", name)
		}
	}

	if c.Load.High < 0 || c.Load.Low < 0 {
		return errors.New("load: thresholds must not be negative")
	}
	if c.Load.High > 0 && c.Load.Low > c.Load.High {
		return fmt.Errorf("load: low threshold %.2f is above high threshold %.2f", c.Load.Low, c.Load.High)
	}
	if c.Load.High == 0 && c.Load.Low > 0 {
		return errors.New("load: low threshold requires a high threshold")
	}

	for i, entry := range c.Env {
		name, _, _ := strings.Cut(entry, "=")
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("env[%d]: missing variable name in %q", i, entry)
		}
	}
	for i, spec := range c.Limits {
		if _, err := platform.ParseLimit(spec); err != nil {
			return fmt.Errorf("limits[%d]: %w", i, err)
		}
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, ok := logFormats[c.Logging.Format]; !ok {
		return fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format)
	}
	if c.API.Addr != "" {
		if err := validateAddr(c.API.Addr); err != nil {
			return fmt.Errorf("api.addr: %w", err)
		}
	}
	return nil
}

func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if _, err := nat.ParsePort(port); err != nil {
		return fmt.Errorf("invalid port %q: %w", port, err)
	}
	return nil
}
