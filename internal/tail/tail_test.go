package tail

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a goroutine-safe bytes.Buffer for collecting follower
// output across goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForContains(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, output so far: %q", want, buf.String())
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("failed to append to %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", path, err)
	}
}

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	contents := "one\ntwo\nthree\nfour\nfive\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	lines, err := LastLines(path, 3)
	if err != nil {
		t.Fatalf("LastLines failed: %v", err)
	}
	want := []string{"three", "four", "five"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestLastLinesShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, []byte("only\n"), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	lines, err := LastLines(path, 50)
	if err != nil {
		t.Fatalf("LastLines failed: %v", err)
	}
	if len(lines) != 1 || lines[0] != "only" {
		t.Errorf("expected the single line back, got %v", lines)
	}
}

func TestLastLinesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	lines, err := LastLines(path, 50)
	if err != nil {
		t.Fatalf("LastLines failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no lines for an empty file, got %v", lines)
	}
}

func TestLastLinesMissingFile(t *testing.T) {
	if _, err := LastLines(filepath.Join(t.TempDir(), "absent.log"), 50); err == nil {
		t.Error("expected error for a missing log file")
	}
}

func TestFollowStreamsAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")
	appendLine(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, buf) }()

	// Give the watcher a moment to come up before writing.
	time.Sleep(50 * time.Millisecond)
	appendLine(t, path, "first")
	waitForContains(t, buf, "first")

	appendLine(t, path, "second")
	waitForContains(t, buf, "second")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("follow returned error: %v", err)
	}
}

func TestFollowSkipsBacklog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")
	appendLine(t, path, "historic")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, buf) }()

	time.Sleep(50 * time.Millisecond)
	appendLine(t, path, "fresh")
	waitForContains(t, buf, "fresh")

	if strings.Contains(buf.String(), "historic") {
		t.Errorf("expected follow to skip lines written before it started, got %q", buf.String())
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("follow returned error: %v", err)
	}
}

func TestFollowSurvivesRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")
	appendLine(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, buf) }()

	time.Sleep(50 * time.Millisecond)
	appendLine(t, path, "before rotation")
	waitForContains(t, buf, "before rotation")

	// Rotate the way the size-capped writer does: rename the live file
	// aside and start a fresh one at the original path.
	if err := os.Rename(path, filepath.Join(dir, "daemon-old.log")); err != nil {
		t.Fatalf("failed to rotate log: %v", err)
	}
	appendLine(t, path, "after rotation")
	waitForContains(t, buf, "after rotation")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("follow returned error: %v", err)
	}
}

func TestFollowStartsWithMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, buf) }()

	// Give the watcher a moment to come up before creating the file.
	time.Sleep(50 * time.Millisecond)
	appendLine(t, path, "late arrival")
	waitForContains(t, buf, "late arrival")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("follow returned error: %v", err)
	}
}
