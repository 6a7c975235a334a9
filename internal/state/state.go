// Package state persists per-source sync progress as a small JSON file.
//
// The file is owned by the daemon process: it is the only writer, and
// it holds exactly one State instance for its whole life. The lifecycle
// controller reads the file for display and tolerates a missing or
// partially written file by treating it as "no data yet".
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// SourceState tracks one source's consumption frontier.
type SourceState struct {
	// LastLine is the 1-based number of the last consumed line.
	// It never decreases.
	LastLine int `json:"lastLine"`

	// BatchCount is the number of batches uploaded so far; it doubles
	// as the next batch index.
	BatchCount int `json:"batchCount"`
}

// State is the daemon's durable progress record.
type State struct {
	Sources      map[string]*SourceState `json:"sources"`
	TotalSynced  int                     `json:"totalSynced"`
	LastSyncTime int64                   `json:"lastSyncTime"`

	path   string
	logger *log.Logger
}

// Load reads the state file at path. A missing or unparsable file
// yields an empty state; the parse failure is logged, never fatal.
func Load(path string, logger *log.Logger) *State {
	s := empty(path, logger)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("Warning: failed to read state file: %v", err)
		}
		return s
	}

	if err := json.Unmarshal(data, s); err != nil {
		logger.Printf("Warning: failed to parse state file, starting fresh: %v", err)
		return empty(path, logger)
	}
	if s.Sources == nil {
		s.Sources = make(map[string]*SourceState)
	}
	return s
}

func empty(path string, logger *log.Logger) *State {
	return &State{
		Sources: make(map[string]*SourceState),
		path:    path,
		logger:  logger,
	}
}

// Read loads the state file for display only. Unlike Load it reports
// failure to the caller instead of substituting defaults.
func Read(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if s.Sources == nil {
		s.Sources = make(map[string]*SourceState)
	}
	return &s, nil
}

// Source returns the entry for id, creating it on first use.
func (s *State) Source(id string) *SourceState {
	src, ok := s.Sources[id]
	if !ok {
		src = &SourceState{}
		s.Sources[id] = src
	}
	return src
}

// Save writes the state to disk. Failure is logged, not fatal: the
// in-memory state stays authoritative for the rest of the run.
func (s *State) Save() {
	if err := s.write(); err != nil {
		s.logger.Printf("Warning: failed to save sync state: %v", err)
	}
}

// write persists atomically via a temp file and rename, so a concurrent
// reader never observes a half-written file.
func (s *State) write() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
