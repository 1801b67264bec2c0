package logsink

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenFile opens path for appending, creating it and its directory when
// missing. An empty path or "-" selects standard output.
func OpenFile(path string) (*os.File, error) {
	if path == "" || path == "-" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
