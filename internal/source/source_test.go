package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}

func TestDiscover(t *testing.T) {
	tmpDir := t.TempDir()

	writeLines(t, filepath.Join(tmpDir, "alpha.jsonl"), `{"role":"user","text":"hi"}`)
	writeLines(t, filepath.Join(tmpDir, "beta.jsonl"), `{"role":"user","text":"hi"}`)
	writeLines(t, filepath.Join(tmpDir, "notes.txt"), "not a source")
	if err := os.Mkdir(filepath.Join(tmpDir, "sub.jsonl"), 0755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	sources, err := Discover(tmpDir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d: %+v", len(sources), sources)
	}
	if sources[0].ID != "alpha" || sources[1].ID != "beta" {
		t.Errorf("expected alpha and beta, got %+v", sources)
	}
	if sources[0].Path != filepath.Join(tmpDir, "alpha.jsonl") {
		t.Errorf("unexpected path %s", sources[0].Path)
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	sources, err := Discover(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Discover should tolerate a missing directory: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources, got %d", len(sources))
	}
}

func TestReadNewRecords(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "conv.jsonl")
	writeLines(t, path,
		`{"role":"user","text":"first question","timestamp":"2026-01-05T10:00:00Z"}`,
		`{"role":"assistant","text":"first answer"}`,
		`{"role":"user","text":"second question"}`,
	)

	records, err := ReadNewRecords(path, 0, 5000)
	if err != nil {
		t.Fatalf("ReadNewRecords failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Line != 1 || records[1].Line != 2 || records[2].Line != 3 {
		t.Errorf("unexpected line numbers: %+v", records)
	}
	if records[0].Timestamp != "2026-01-05T10:00:00Z" {
		t.Errorf("expected timestamp to be kept, got %q", records[0].Timestamp)
	}
}

func TestReadNewRecords_AfterLine(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "conv.jsonl")
	writeLines(t, path,
		`{"role":"user","text":"already consumed"}`,
		`{"role":"assistant","text":"also consumed"}`,
		`{"role":"user","text":"new content"}`,
	)

	records, err := ReadNewRecords(path, 2, 5000)
	if err != nil {
		t.Fatalf("ReadNewRecords failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record after line 2, got %d", len(records))
	}
	if records[0].Text != "new content" {
		t.Errorf("expected the third line, got %q", records[0].Text)
	}
	if records[0].Line != 3 {
		t.Errorf("expected line 3, got %d", records[0].Line)
	}
}

func TestReadNewRecords_FilteredLinesAdvancePosition(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "conv.jsonl")
	writeLines(t, path,
		`{"role":"user","text":"real message"}`,
		`{"role":"system","text":"session resumed"}`,
		`{"role":"user","text":"   "}`,
		`{"role":"assistant","text":"[heartbeat]"}`,
		`not json at all`,
		`{"role":"assistant","text":"real answer"}`,
	)

	records, err := ReadNewRecords(path, 0, 5000)
	if err != nil {
		t.Fatalf("ReadNewRecords failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 qualifying records, got %d: %+v", len(records), records)
	}
	// Filtered lines still occupy positions 2-5.
	if records[0].Line != 1 {
		t.Errorf("expected first record on line 1, got %d", records[0].Line)
	}
	if records[1].Line != 6 {
		t.Errorf("expected second record on line 6, got %d", records[1].Line)
	}
}

func TestReadNewRecords_Truncation(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "conv.jsonl")
	long := strings.Repeat("a", 300)
	writeLines(t, path, `{"role":"user","text":"`+long+`"}`)

	records, err := ReadNewRecords(path, 0, 100)
	if err != nil {
		t.Fatalf("ReadNewRecords failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if len(records[0].Text) != 100 {
		t.Errorf("expected text truncated to 100, got %d", len(records[0].Text))
	}
}

func TestReadNewRecords_TruncationKeepsRunesIntact(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "conv.jsonl")
	// Multi-byte runes around the cut point.
	writeLines(t, path, `{"role":"user","text":"日本語のテキストです"}`)

	records, err := ReadNewRecords(path, 0, 10)
	if err != nil {
		t.Fatalf("ReadNewRecords failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !strings.HasPrefix("日本語のテキストです", records[0].Text) {
		t.Errorf("truncation split a rune: %q", records[0].Text)
	}
	if len(records[0].Text) > 10 {
		t.Errorf("expected at most 10 bytes, got %d", len(records[0].Text))
	}
}

func TestReadNewRecords_MissingFile(t *testing.T) {
	if _, err := ReadNewRecords(filepath.Join(t.TempDir(), "gone.jsonl"), 0, 5000); err == nil {
		t.Error("expected error for missing source file")
	}
}
