// Package sync implements the incremental batching engine: it reads new
// records from each conversation source, groups them into fixed-size
// batches, and uploads every batch under an idempotent key, advancing
// the per-source cursor only on confirmed success.
package sync

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/memrelay/memrelay/internal/clock"
	"github.com/memrelay/memrelay/internal/remote"
	"github.com/memrelay/memrelay/internal/retry"
	"github.com/memrelay/memrelay/internal/source"
	"github.com/memrelay/memrelay/internal/state"
)

// Config holds batcher tuning.
type Config struct {
	// ConversationsDir is scanned for *.jsonl sources each pass.
	ConversationsDir string

	// ContainerTag scopes every uploaded document.
	ContainerTag string

	// BatchSize is the number of records per batch. Only full batches
	// are uploaded; a shorter tail waits for more records.
	BatchSize int

	// MinNewRecords is the threshold below which a source is skipped
	// for the pass, avoiding near-empty uploads.
	MinNewRecords int

	// MaxRecordChars bounds each record's text.
	MaxRecordChars int

	// Clock stamps pass completion times.
	Clock clock.Clock

	// Logger for batcher activity.
	Logger *log.Logger
}

// Batcher drives incremental uploads for all sources.
type Batcher struct {
	client remote.Client
	exec   *retry.Executor
	state  *state.State
	cfg    *Config
}

// New creates a batcher.
//
// The batcher requires:
//   - client: the remote service the batches are uploaded to
//   - exec: the retry executor wrapping each upload
//   - st: the live sync state instance, shared with the daemon
func New(client remote.Client, exec *retry.Executor, st *state.State, cfg *Config) (*Batcher, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("state cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.ConversationsDir == "" {
		return nil, fmt.Errorf("conversations directory cannot be empty")
	}
	if cfg.ContainerTag == "" {
		return nil, fmt.Errorf("container tag cannot be empty")
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.MinNewRecords < 1 {
		return nil, fmt.Errorf("minimum new records must be at least 1, got %d", cfg.MinNewRecords)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Batcher{client: client, exec: exec, state: st, cfg: cfg}, nil
}

// RunPass processes every discovered source once. A failing source is
// logged and skipped; it never stops the pass for the others.
func (b *Batcher) RunPass(ctx context.Context) error {
	sources, err := source.Discover(b.cfg.ConversationsDir)
	if err != nil {
		return fmt.Errorf("failed to discover sources: %w", err)
	}

	for _, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.syncSource(ctx, src)
	}
	return nil
}

// syncSource uploads all complete batches of new records from one
// source, persisting progress after every batch.
func (b *Batcher) syncSource(ctx context.Context, src source.Source) {
	srcState := b.state.Source(src.ID)

	records, err := source.ReadNewRecords(src.Path, srcState.LastLine, b.cfg.MaxRecordChars)
	if err != nil {
		b.cfg.Logger.Printf("Warning: skipping source %s: %v", src.ID, err)
		return
	}

	if len(records) < b.cfg.MinNewRecords {
		return
	}

	b.cfg.Logger.Printf("Source %s: %d new records", src.ID, len(records))

	uploaded := 0
	for start := 0; start+b.cfg.BatchSize <= len(records); start += b.cfg.BatchSize {
		batch := records[start : start+b.cfg.BatchSize]
		if len(batch) < 2 {
			// A lone record is not useful context.
			break
		}

		if err := b.uploadBatch(ctx, src.ID, srcState, batch); err != nil {
			b.cfg.Logger.Printf("Warning: batch %s failed, will retry next pass: %v",
				batchKey(src.ID, srcState.BatchCount), err)
			break
		}
		uploaded += len(batch)
	}

	if uploaded > 0 {
		b.cfg.Logger.Printf("Source %s: synced %d records this pass", src.ID, uploaded)
	}

	b.state.LastSyncTime = b.cfg.Clock.Now().UnixMilli()
	b.state.Save()
}

// uploadBatch submits one batch and, on success, advances the cursor to
// the batch's final record line and persists immediately, so progress
// within a pass survives a crash.
func (b *Batcher) uploadBatch(ctx context.Context, sourceID string, srcState *state.SourceState, batch []source.Record) error {
	index := srcState.BatchCount
	key := batchKey(sourceID, index)

	req := remote.UploadRequest{
		Content:      renderTranscript(batch),
		ContainerTag: b.cfg.ContainerTag,
		CustomID:     key,
		Metadata: map[string]string{
			"source":  sourceID,
			"batch":   strconv.Itoa(index),
			"records": strconv.Itoa(len(batch)),
		},
	}

	err := b.exec.Do(ctx, "upload "+key, func(callCtx context.Context) error {
		return b.client.UploadDocument(callCtx, req)
	})
	if err != nil {
		return err
	}

	srcState.LastLine = batch[len(batch)-1].Line
	srcState.BatchCount++
	b.state.TotalSynced += len(batch)
	b.state.Save()

	b.cfg.Logger.Printf("Uploaded %s (%d records)", key, len(batch))
	return nil
}
