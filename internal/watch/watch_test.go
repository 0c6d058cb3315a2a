package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/rag"
)

// fakeRebuilder returns errs in call order, then err.
type fakeRebuilder struct {
	mu   sync.Mutex
	docs [][]rag.Document
	errs []error
	err  error
}

func (f *fakeRebuilder) Rebuild(_ context.Context, docs []rag.Document) (pipeline.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, docs)
	var st pipeline.Stats
	st.NumDocuments = len(docs)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return st, err
	}
	return st, f.err
}

func (f *fakeRebuilder) calls() [][]rag.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]rag.Document(nil), f.docs...)
}

func newTestWatcher(t *testing.T, target Rebuilder, path string) *Watcher {
	t.Helper()
	w, err := New(target, Config{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		Logger:   slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	w.rebuilt = make(chan error, 8)
	return w
}

func waitRebuild(t *testing.T, w *Watcher) error {
	t.Helper()
	select {
	case err := <-w.rebuilt:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a rebuild")
		return nil
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Path: "corpus.txt"})
	require.ErrorIs(t, err, rag.ErrInvalidConfig)

	_, err = New(&fakeRebuilder{}, Config{Path: "  "})
	require.ErrorIs(t, err, rag.ErrInvalidConfig)

	w, err := New(&fakeRebuilder{}, Config{Path: "corpus.txt"})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(w.path))
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestRelevant(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.txt")
	w := newTestWatcher(t, &fakeRebuilder{}, path)

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write", fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{"create", fsnotify.Event{Name: path, Op: fsnotify.Create}, true},
		{"rename", fsnotify.Event{Name: path, Op: fsnotify.Rename}, true},
		{"chmod", fsnotify.Event{Name: path, Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: path, Op: fsnotify.Remove}, false},
		{"sibling", fsnotify.Event{Name: filepath.Join(dir, "other.txt"), Op: fsnotify.Write}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, w.relevant(tc.ev))
		})
	}
}

func TestRun_RebuildsOnWrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	target := &fakeRebuilder{}
	w := newTestWatcher(t, target, path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("Fiber internet up to 1 Gbps."), 0o644))
	require.NoError(t, waitRebuild(t, w))

	cancel()
	require.NoError(t, <-done)

	calls := target.calls()
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	require.Len(t, last, 1)
	assert.Equal(t, path, last[0].Source)
	assert.Contains(t, last[0].Text, "1 Gbps")
}

func TestRebuild_SkipsBlankFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))
	target := &fakeRebuilder{}
	w := newTestWatcher(t, target, path)

	err := w.rebuild(context.Background())
	require.ErrorIs(t, err, rag.ErrInvalidInput)
	assert.Empty(t, target.calls())
}

func TestRun_RetriesWhileRebuildInProgress(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	target := &fakeRebuilder{errs: []error{rag.ErrRebuildInProgress}}
	w := newTestWatcher(t, target, path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("billing help"), 0o644))
	require.ErrorIs(t, waitRebuild(t, w), rag.ErrRebuildInProgress)
	require.NoError(t, waitRebuild(t, w), "the conflicting rebuild is retried without another write")

	cancel()
	require.NoError(t, <-done)

	calls := target.calls()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Contains(t, calls[len(calls)-1][0].Text, "billing help")
}

func TestRebuild_MissingFile(t *testing.T) {
	t.Parallel()
	target := &fakeRebuilder{}
	w := newTestWatcher(t, target, filepath.Join(t.TempDir(), "absent.txt"))

	require.Error(t, w.rebuild(context.Background()))
	assert.Empty(t, target.calls())
}
