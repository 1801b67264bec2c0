package logsink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 17, 4, 5, 0, time.UTC)
}

func TestCopyPrefixesTimestamps(t *testing.T) {
	var out bytes.Buffer
	err := Copy(context.Background(), strings.NewReader("first\nsecond\n"), &out, Options{Timestamps: true, Now: fixedClock})
	if err != nil {
		t.Fatalf("Copy returned error: %v", err)
	}
	want := "2024-03-09/17:04:05 first\n2024-03-09/17:04:05 second\n"
	if out.String() != want {
		t.Fatalf("unexpected output: got %q want %q", out.String(), want)
	}
}

func TestCopyWithoutTimestamps(t *testing.T) {
	var out bytes.Buffer
	err := Copy(context.Background(), strings.NewReader("one\ntwo\n"), &out, Options{Buffered: true})
	if err != nil {
		t.Fatalf("Copy returned error: %v", err)
	}
	if out.String() != "one\ntwo\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestCopyStopsOnContext(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- Copy(ctx, r, &out, Options{Buffered: true}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Copy returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Copy did not stop")
	}
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	for _, line := range []string{"a\n", "b\n"} {
		f, err := OpenFile(path)
		if err != nil {
			t.Fatalf("OpenFile: %v", err)
		}
		if _, err := f.WriteString(line); err != nil {
			t.Fatalf("write: %v", err)
		}
		f.Close()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestOpenFileStdout(t *testing.T) {
	f, err := OpenFile("-")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if f != os.Stdout {
		t.Fatalf("expected stdout")
	}
}
