package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/memrelay/memrelay/internal/clock"
	"github.com/memrelay/memrelay/internal/state"
	"github.com/memrelay/memrelay/internal/tail"
)

// Feeder drives the dashboard: it polls the daemon's state file on an
// interval and follows its log file, broadcasting both to the server.
type Feeder struct {
	server *Server
	cfg    *FeederConfig
}

// FeederConfig wires the feeder to the daemon's files.
type FeederConfig struct {
	// StateFile is the daemon's progress record.
	StateFile string

	// LogFile is the daemon's scrubbed log; empty disables log
	// streaming.
	LogFile string

	// Running reports whether the daemon is currently up.
	Running func() bool

	// PollInterval is the stats refresh cadence (default: 2s).
	PollInterval time.Duration

	// Clock supplies poll waits and timestamps.
	Clock clock.Clock

	// Logger for feeder activity.
	Logger *log.Logger
}

// NewFeeder creates a feeder for the given server.
func NewFeeder(server *Server, cfg *FeederConfig) (*Feeder, error) {
	if server == nil {
		return nil, fmt.Errorf("server cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.StateFile == "" {
		return nil, fmt.Errorf("state file path cannot be empty")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Feeder{server: server, cfg: cfg}, nil
}

// Run broadcasts stats snapshots and log lines until ctx is cancelled.
func (f *Feeder) Run(ctx context.Context) error {
	if f.cfg.LogFile != "" {
		go func() {
			w := &lineWriter{emit: f.emitLogLine}
			if err := tail.Follow(ctx, f.cfg.LogFile, w); err != nil {
				f.cfg.Logger.Printf("Warning: log streaming stopped: %v", err)
			}
		}()
	}

	for {
		f.broadcastStats()

		select {
		case <-ctx.Done():
			return nil
		case <-f.cfg.Clock.After(f.cfg.PollInterval):
		}
	}
}

// broadcastStats reads the state file and sends a snapshot. A missing
// or unreadable state file shows up as a zero snapshot, not an error:
// the daemon may simply not have synced yet.
func (f *Feeder) broadcastStats() {
	stats := StatsData{Sources: make(map[string]SourceStats)}
	if f.cfg.Running != nil {
		stats.Running = f.cfg.Running()
	}

	if st, err := state.Read(f.cfg.StateFile); err == nil {
		stats.TotalSynced = st.TotalSynced
		stats.LastSyncTime = st.LastSyncTime
		for id, src := range st.Sources {
			stats.Sources[id] = SourceStats{
				LastLine:   src.LastLine,
				BatchCount: src.BatchCount,
			}
		}
	}

	data, err := json.Marshal(stats)
	if err != nil {
		f.cfg.Logger.Printf("Failed to marshal stats: %v", err)
		return
	}

	f.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: f.cfg.Clock.Now(),
		Data:      data,
	})
}

func (f *Feeder) emitLogLine(line string) {
	data, err := json.Marshal(LogData{Line: line})
	if err != nil {
		return
	}
	f.server.Broadcast(Message{
		Type:      MessageTypeLog,
		Timestamp: f.cfg.Clock.Now(),
		Data:      data,
	})
}

// lineWriter buffers streamed bytes and emits complete lines.
type lineWriter struct {
	emit func(line string)
	mu   sync.Mutex
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.emit(strings.TrimRight(line, "\n"))
	}
}
