// Package source discovers conversation logs and reads their records.
//
// A source is one append-only JSONL file under the conversations
// directory; each line is one message. Lines that fail to parse or
// fall below the minimum-content filter still advance the scan
// position, so a consumed span is never re-read.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxLineBytes bounds a single JSONL line; transcripts can carry long
// pasted content.
const maxLineBytes = 4 * 1024 * 1024

// Source is one conversation log.
type Source struct {
	// ID is the file base name without the .jsonl extension.
	ID string

	// Path is the file's location on disk.
	Path string
}

// Record is one message parsed from a source line.
type Record struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`

	// Line is the record's 1-based position in the file.
	Line int `json:"-"`
}

// Discover lists the *.jsonl files under dir as Sources, in file-name
// order. A missing directory yields an empty list, not an error.
func Discover(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list conversations directory: %w", err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		sources = append(sources, Source{
			ID:   strings.TrimSuffix(entry.Name(), ".jsonl"),
			Path: filepath.Join(dir, entry.Name()),
		})
	}
	return sources, nil
}

// ReadNewRecords returns the qualifying records on lines strictly after
// afterLine, with text truncated to maxChars. Malformed and filtered
// lines produce no record but still occupy their line position.
func ReadNewRecords(path string, afterLine, maxChars int) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		if line <= afterLine {
			continue
		}

		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if !qualifies(rec) {
			continue
		}

		rec.Line = line
		rec.Text = truncate(rec.Text, maxChars)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	return records, nil
}

// qualifies applies the minimum-content filter: only user and assistant
// messages with real text enter a batch. Heartbeat sentinels keep a
// session alive without saying anything and are dropped.
func qualifies(rec Record) bool {
	if rec.Role != "user" && rec.Role != "assistant" {
		return false
	}
	text := strings.TrimSpace(rec.Text)
	if text == "" {
		return false
	}
	if strings.EqualFold(text, "[heartbeat]") {
		return false
	}
	return true
}

// truncate bounds s to max bytes, cutting at a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
