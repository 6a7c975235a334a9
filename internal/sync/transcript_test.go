package sync

import (
	"strings"
	"testing"

	"github.com/memrelay/memrelay/internal/source"
)

func TestBatchKey(t *testing.T) {
	key := batchKey("project-alpha", 3)
	if key != "project-alpha-batch-3" {
		t.Errorf("expected project-alpha-batch-3, got %s", key)
	}

	// The same (source, index) pair always yields the same key.
	if again := batchKey("project-alpha", 3); again != key {
		t.Errorf("expected stable key, got %s then %s", key, again)
	}

	if batchKey("project-alpha", 4) == key {
		t.Error("expected different indexes to yield different keys")
	}
	if batchKey("project-beta", 3) == key {
		t.Error("expected different sources to yield different keys")
	}
}

func TestRenderTranscript(t *testing.T) {
	records := []source.Record{
		{Role: "user", Text: "how do I tail a file", Timestamp: "2026-01-05T10:00:00Z", Line: 1},
		{Role: "assistant", Text: "use tail -f", Line: 2},
	}

	got := renderTranscript(records)

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 transcript lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "[2026-01-05T10:00:00Z] user: how do I tail a file" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "assistant: use tail -f" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}

func TestRenderTranscript_Empty(t *testing.T) {
	if got := renderTranscript(nil); got != "" {
		t.Errorf("expected empty transcript, got %q", got)
	}
}
