package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MizukiMachine/discord-VC-minutes/internal/summary"
)

// MarkdownWriter appends produced minutes to one markdown file per day,
// giving operators a readable log next to the sqlite archive.
type MarkdownWriter struct {
	dir string
	mu  sync.Mutex
}

func NewMarkdownWriter(dir string) *MarkdownWriter {
	return &MarkdownWriter{dir: dir}
}

// Append writes the minutes under a dated heading.
func (w *MarkdownWriter) Append(m summary.Minutes) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	date := m.GeneratedAt.UTC().Format("2006-01-02")
	path := filepath.Join(w.dir, date+".md")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintf(f, "## %s session %s (%s to %s)\n\n%s\n\n",
		m.GeneratedAt.UTC().Format("15:04:05"),
		m.SessionID,
		m.WindowStart.UTC().Format("15:04:05"),
		m.WindowEnd.UTC().Format("15:04:05"),
		m.Body,
	); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
