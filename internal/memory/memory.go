// Package memory pushes markdown memory notes to the remote service.
//
// Unlike conversation sources, notes have no cursor: each push uploads
// every note under a deterministic key derived from its file name, and
// the remote service deduplicates on that key.
package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/memrelay/memrelay/internal/remote"
	"github.com/memrelay/memrelay/internal/retry"
)

// Note is one markdown memory file.
type Note struct {
	// Slug is the stable identity derived from the file name.
	Slug string

	// Title comes from the front matter, falling back to the first
	// heading, then the slug.
	Title string

	// Tags come from the front matter.
	Tags []string

	// Body is the markdown content with the front matter stripped.
	Body string
}

// frontMatter is the optional YAML header of a note.
type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// Discover lists the notes under dir. A missing directory yields no
// notes, matching a machine where memories were never written.
func Discover(dir string) ([]Note, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read memory directory: %w", err)
	}

	var notes []Note
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".md" && ext != ".markdown" {
			continue
		}

		note, err := Parse(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(note.Body) == "" {
			continue
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// Parse reads one note file, separating YAML front matter from the
// markdown body.
func Parse(path string) (Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Note{}, fmt.Errorf("failed to read note: %w", err)
	}

	base := filepath.Base(path)
	slug := slugify(strings.TrimSuffix(base, filepath.Ext(base)))

	head, body := splitFrontMatter(data)

	var fm frontMatter
	if len(head) > 0 {
		if err := yaml.Unmarshal(head, &fm); err != nil {
			return Note{}, fmt.Errorf("failed to parse front matter of %s: %w", base, err)
		}
	}

	title := fm.Title
	if title == "" {
		title = firstHeading(string(body))
	}
	if title == "" {
		title = slug
	}

	return Note{
		Slug:  slug,
		Title: title,
		Tags:  fm.Tags,
		Body:  string(body),
	}, nil
}

// splitFrontMatter separates an optional leading YAML block delimited
// by "---" lines from the markdown body.
func splitFrontMatter(data []byte) (head, body []byte) {
	s := string(data)
	if !strings.HasPrefix(s, "---\n") {
		return nil, data
	}

	rest := s[4:]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n---") {
			return []byte(rest[:len(rest)-4]), nil
		}
		return nil, data
	}
	return []byte(rest[:end]), []byte(rest[end+5:])
}

// firstHeading returns the text of the first level-one heading.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// slugify lowercases the name and squeezes anything outside [a-z0-9]
// into single hyphens, so the upload key is stable across runs.
func slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// Config holds pusher settings.
type Config struct {
	// MemoryDir is scanned for *.md notes.
	MemoryDir string

	// ContainerTag scopes every uploaded note.
	ContainerTag string

	// Logger for pusher activity.
	Logger *log.Logger
}

// Pusher uploads notes through the shared retry executor.
type Pusher struct {
	client remote.Client
	exec   *retry.Executor
	cfg    *Config
}

// New creates a pusher.
func New(client remote.Client, exec *retry.Executor, cfg *Config) (*Pusher, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.MemoryDir == "" {
		return nil, fmt.Errorf("memory directory cannot be empty")
	}
	if cfg.ContainerTag == "" {
		return nil, fmt.Errorf("container tag cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Pusher{client: client, exec: exec, cfg: cfg}, nil
}

// PushAll uploads every note. A failing note is logged and skipped so
// one bad upload cannot block the rest; the error reports how many were
// left behind.
func (p *Pusher) PushAll(ctx context.Context) (int, error) {
	notes, err := Discover(p.cfg.MemoryDir)
	if err != nil {
		return 0, err
	}
	if len(notes) == 0 {
		p.cfg.Logger.Println("No memory notes to push")
		return 0, nil
	}

	pushed := 0
	failed := 0
	for _, note := range notes {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}
		if err := p.push(ctx, note); err != nil {
			p.cfg.Logger.Printf("Warning: failed to push note %s: %v", note.Slug, err)
			failed++
			continue
		}
		pushed++
	}

	if failed > 0 {
		return pushed, fmt.Errorf("failed to push %d of %d notes", failed, len(notes))
	}
	return pushed, nil
}

// push uploads one note under its deterministic key.
func (p *Pusher) push(ctx context.Context, note Note) error {
	key := "memory-" + note.Slug

	metadata := map[string]string{
		"source": "memory",
		"title":  note.Title,
	}
	if len(note.Tags) > 0 {
		metadata["tags"] = strings.Join(note.Tags, ",")
	}

	req := remote.UploadRequest{
		Content:      note.Body,
		ContainerTag: p.cfg.ContainerTag,
		CustomID:     key,
		Metadata:     metadata,
	}

	err := p.exec.Do(ctx, "push "+key, func(callCtx context.Context) error {
		return p.client.UploadDocument(callCtx, req)
	})
	if err != nil {
		return err
	}

	p.cfg.Logger.Printf("Pushed %s (%s)", key, note.Title)
	return nil
}
