package logsink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mitchellh/go-linereader"
)

// TimestampLayout is the prefix written before every line.
const TimestampLayout = "2006-01-02/15:04:05"

// Options controls how lines are copied.
type Options struct {
	// Timestamps prefixes every line with the current UTC time.
	Timestamps bool
	// Buffered batches writes instead of writing every line as it arrives.
	Buffered bool
	Now      func() time.Time
}

// Copy writes every line read from r to w until r is exhausted or ctx is
// done. Partial lines are flushed once the input goes quiet. When ctx ends
// first, the goroutine reading r stays blocked until r returns; callers that
// outlive Copy must close r themselves.
func Copy(ctx context.Context, r io.Reader, w io.Writer, opts Options) error {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	out := w
	var buf *bufio.Writer
	if opts.Buffered {
		buf = bufio.NewWriter(w)
		out = buf
	}
	flush := func() error {
		if buf == nil {
			return nil
		}
		if err := buf.Flush(); err != nil {
			return fmt.Errorf("flush log: %w", err)
		}
		return nil
	}

	lines := linereader.New(r)
	for {
		select {
		case <-ctx.Done():
			return flush()
		case line, ok := <-lines.Ch:
			if !ok {
				return flush()
			}
			if err := writeLine(out, line, opts); err != nil {
				return err
			}
		}
	}
}

func writeLine(w io.Writer, line string, opts Options) error {
	var err error
	if opts.Timestamps {
		_, err = fmt.Fprintf(w, "%s %s\n", opts.Now().UTC().Format(TimestampLayout), line)
	} else {
		_, err = io.WriteString(w, line+"\n")
	}
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
