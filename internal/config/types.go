package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	dur, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// NewDuration returns an explicitly set Duration.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d, explicit: true}
}

var longUnits = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseDuration accepts Go durations such as 1m30s, bare integers meaning
// seconds, and the day and week suffixes d and w.
func ParseDuration(text string) (time.Duration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(text, 10, 64); err == nil {
		if n > math.MaxInt64/uint64(time.Second) {
			return 0, fmt.Errorf("invalid duration %q: out of range", text)
		}
		return time.Duration(n) * time.Second, nil
	}
	if unit, ok := longUnits[text[len(text)-1]]; ok {
		n, err := strconv.ParseFloat(text[:len(text)-1], 64)
		if err != nil || n < 0 || n*float64(unit) > math.MaxInt64 {
			return 0, fmt.Errorf("invalid duration %q", text)
		}
		return time.Duration(n * float64(unit)), nil
	}
	dur, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid duration %q: negative", text)
	}
	return dur, nil
}

// Config mirrors the warden configuration document. Every field can also be
// set from the command line, which takes precedence.
type Config struct {
	Command        []string    `yaml:"command"`
	Log            []string    `yaml:"log"`
	PIDFile        string      `yaml:"pidFile"`
	Env            []string    `yaml:"env"`
	User           string      `yaml:"user"`
	LogUser        string      `yaml:"logUser"`
	RedirectStderr bool        `yaml:"redirectStderr"`
	ExitOnSuccess  bool        `yaml:"exitOnSuccess"`
	Forward        ForwardSpec `yaml:"forward"`
	Timeout        Duration    `yaml:"timeout"`
	Interval       Duration    `yaml:"interval"`
	StopTimeout    Duration    `yaml:"stopTimeout"`
	Load           LoadSpec    `yaml:"load"`
	Limits         []string    `yaml:"limits"`
	Logging        LoggingSpec `yaml:"logging"`
	API            APISpec     `yaml:"api"`
	Status         bool        `yaml:"status"`
}

// ForwardSpec selects which tasks receive forwarded signals.
type ForwardSpec struct {
	Command bool `yaml:"command"`
	Log     bool `yaml:"log"`
}

// LoadSpec configures pausing the command under high system load.
type LoadSpec struct {
	High float64 `yaml:"high"`
	Low  float64 `yaml:"low"`
}

// LoggingSpec configures the supervisor's own diagnostics.
type LoggingSpec struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APISpec configures the HTTP control API.
type APISpec struct {
	Addr string `yaml:"addr"`
}
