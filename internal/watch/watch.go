// Package watch rebuilds the support index whenever a local corpus file
// changes. Editors often replace files instead of writing them in place, so
// the parent directory is watched and events are filtered by name.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/supportai-go/internal/ingestion"
	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/rag"
)

// DefaultDebounce coalesces bursts of events from a single save.
const DefaultDebounce = 500 * time.Millisecond

// Rebuilder replaces the index with a new corpus. *pipeline.Pipeline
// implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context, docs []rag.Document) (pipeline.Stats, error)
}

// Config configures a Watcher.
type Config struct {
	// Path is the corpus file to watch. Required.
	Path string
	// Debounce is the quiet period before a rebuild (default: 500ms).
	Debounce time.Duration
	// Logger receives progress and failures (default: slog.Default()).
	Logger *slog.Logger
}

// Watcher triggers a rebuild after the corpus file settles.
type Watcher struct {
	// path is the absolute corpus file path.
	path string
	// debounce is the quiet period before a rebuild, and the retry delay
	// when another rebuild is running.
	debounce time.Duration
	// target receives the rebuilt corpus.
	target Rebuilder
	// log is tagged with path.
	log *slog.Logger

	// rebuilt receives one value per attempted rebuild; tests use it to sync.
	rebuilt chan error
}

// New returns a Watcher for cfg.Path that rebuilds target.
func New(target Rebuilder, cfg Config) (*Watcher, error) {
	if target == nil {
		return nil, fmt.Errorf("watch: rebuilder must not be nil: %w", rag.ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("watch: path must not be empty: %w", rag.ErrInvalidConfig)
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %s: %w", cfg.Path, err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Watcher{
		path:     abs,
		debounce: cfg.Debounce,
		target:   target,
		log:      cfg.Logger.With(slog.String("path", abs)),
	}, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation and an
// error only when the watch cannot be established or fsnotify fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch: add %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Info("watch: watching corpus file", slog.Duration("debounce", w.debounce))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch: fsnotify error", slog.Any("error", err))

		case <-timer.C:
			err := w.rebuild(ctx)
			if errors.Is(err, rag.ErrRebuildInProgress) {
				timer.Reset(w.debounce)
			}
			if w.rebuilt != nil {
				w.rebuilt <- err
			}
		}
	}
}

// relevant reports whether ev changes the watched file's content.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// rebuild reads the file and replaces the index with it as the only
// document. A missing or blank file is logged and the served index is left
// as is. A concurrent rebuild is reported so Run can retry.
func (w *Watcher) rebuild(ctx context.Context) error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn("watch: read failed, keeping current index", slog.Any("error", err))
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		w.log.Warn("watch: file is empty, keeping current index")
		return fmt.Errorf("watch: %s is empty: %w", w.path, rag.ErrInvalidInput)
	}

	doc := ingestion.NewDocument(w.path, string(data), map[string]string{"topic": ingestion.TopicGeneral})
	stats, err := w.target.Rebuild(ctx, []rag.Document{doc})
	switch {
	case errors.Is(err, rag.ErrRebuildInProgress):
		w.log.Info("watch: rebuild already in progress, retrying", slog.Duration("after", w.debounce))
		return err
	case err != nil:
		w.log.Error("watch: rebuild failed", slog.Any("error", err))
		return err
	}
	w.log.Info("watch: index rebuilt",
		slog.Int("documents", stats.NumDocuments),
		slog.Int("chunks", stats.NumChunks),
	)
	return nil
}
