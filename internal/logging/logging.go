// Package logging builds the append-only daemon log. Every line written
// through it is scrubbed of credentials and prefixed with an ISO-8601
// timestamp; file output rotates via lumberjack.
package logging

import (
	"io"
	"log"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/memrelay/memrelay/internal/clock"
	"github.com/memrelay/memrelay/internal/scrub"
)

// Writer stamps and scrubs each message before passing it on. log.Logger
// issues exactly one Write call per output line, so no buffering is
// needed to keep lines intact.
type Writer struct {
	out io.Writer
	clk clock.Clock
}

// NewWriter wraps out with scrubbing and timestamping.
func NewWriter(out io.Writer, clk clock.Clock) *Writer {
	return &Writer{out: out, clk: clk}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	line := w.clk.Now().UTC().Format(time.RFC3339) + " " + scrub.Secrets(string(p))
	if _, err := io.WriteString(w.out, line); err != nil {
		return 0, err
	}
	return len(p), nil
}

// New returns a logger that writes scrubbed, timestamped lines to out.
func New(out io.Writer, clk clock.Clock) *log.Logger {
	return log.New(NewWriter(out, clk), "", 0)
}

// NewFile returns a logger appending to path with size-based rotation,
// plus a closer for shutdown. The parent directory is created on the
// first write if it does not exist.
func NewFile(path string, maxSizeMB, maxBackups int, clk clock.Clock) (*log.Logger, io.Closer) {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return New(sink, clk), sink
}
