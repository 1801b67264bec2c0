package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// CurrentFile is the name of the file being written inside a log directory.
// Rotated files are kept next to it with a timestamp suffix.
const CurrentFile = "current"

const (
	// DefaultMaxSize is one megabyte, the smallest size lumberjack rotates at.
	DefaultMaxSize  = 1024 * 1024
	DefaultMaxFiles = 10
	DefaultMaxAge   = 5 * 24 * time.Hour
)

// RotateOptions configures a Rotator.
type RotateOptions struct {
	Dir string
	// MaxSize is rounded up to whole megabytes; smaller sizes rotate at 1MiB.
	MaxSize  int64
	MaxFiles int
	// MaxAge rotates the current file once it has been open this long.
	MaxAge time.Duration
	Now    func() time.Time
}

// Rotator writes to a directory of size and age bounded log files.
type Rotator struct {
	mu     sync.Mutex
	lj     *lumberjack.Logger
	maxAge time.Duration
	opened time.Time
	now    func() time.Time
}

// NewRotator creates the log directory and returns a Rotator writing to it.
func NewRotator(opts RotateOptions) (*Rotator, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Rotator{
		lj: &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, CurrentFile),
			MaxSize:    megabytes(opts.MaxSize),
			MaxBackups: opts.MaxFiles,
		},
		maxAge: opts.MaxAge,
		opened: opts.Now(),
		now:    opts.Now,
	}, nil
}

func megabytes(size int64) int {
	const mb = 1024 * 1024
	if size <= 0 {
		return 0
	}
	return int((size + mb - 1) / mb)
}

// Write appends p to the current file, rotating first when it is too old.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now := r.now(); r.maxAge > 0 && now.Sub(r.opened) >= r.maxAge {
		if err := r.lj.Rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
		r.opened = now
	}
	return r.lj.Write(p)
}

// Rotate closes the current file and starts a new one.
func (r *Rotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = r.now()
	return r.lj.Rotate()
}

func (r *Rotator) Close() error {
	return r.lj.Close()
}
