// Package tail streams a log file to a writer as it grows.
package tail

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// LastLines returns up to n trailing lines of the file at path.
func LastLines(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Follow copies lines appended to path into out until ctx is cancelled.
// It watches the parent directory rather than the file itself so that
// the rename-and-recreate rotation done by the size-capped log writer
// shows up as a create event for a fresh file.
func Follow(ctx context.Context, path string, out io.Writer) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	f := &follower{path: path, out: out}
	// Stream only what arrives from here on; LastLines serves the
	// backlog. The stat runs after Add so a write that lands in
	// between still raises an event.
	if info, err := os.Stat(path); err == nil {
		f.offset = info.Size()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Create) {
				// Rotation replaced the file; start over.
				f.offset = 0
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if err := f.copyNew(); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

// follower tracks how far into the file we have already copied.
type follower struct {
	path   string
	out    io.Writer
	offset int64
}

// copyNew copies everything past the current offset to the writer. A
// missing file is not an error; the next create event restarts it. A
// file shorter than the offset was truncated or rotated, so reading
// restarts from the top.
func (f *follower) copyNew() error {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.offset = 0
			return nil
		}
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		f.offset = 0
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	n, err := io.Copy(f.out, file)
	f.offset += n
	return err
}
