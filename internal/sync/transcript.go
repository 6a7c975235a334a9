package sync

import (
	"fmt"
	"strings"

	"github.com/memrelay/memrelay/internal/source"
)

// batchKey builds the idempotent upload key for a batch. The same
// (source, index) pair always yields the same key, so re-sending a
// batch overwrites the remote document instead of duplicating it.
func batchKey(sourceID string, index int) string {
	return fmt.Sprintf("%s-batch-%d", sourceID, index)
}

// renderTranscript formats a batch as a timestamp-prefixed transcript,
// one record per line block.
func renderTranscript(records []source.Record) string {
	var b strings.Builder
	for _, rec := range records {
		if rec.Timestamp != "" {
			fmt.Fprintf(&b, "[%s] %s: %s\n", rec.Timestamp, rec.Role, rec.Text)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", rec.Role, rec.Text)
		}
	}
	return b.String()
}
