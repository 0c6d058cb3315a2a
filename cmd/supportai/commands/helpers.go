package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/chunker"
	"github.com/54b3r/supportai-go/internal/config"
	"github.com/54b3r/supportai-go/internal/embedder"
	"github.com/54b3r/supportai-go/internal/generator"
	"github.com/54b3r/supportai-go/internal/index"
	"github.com/54b3r/supportai-go/internal/ingestion"
	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/provider"
	"github.com/54b3r/supportai-go/internal/rag"
	"github.com/54b3r/supportai-go/internal/server"
	"github.com/54b3r/supportai-go/internal/store"
)

// app is a fully wired pipeline plus the resources behind it.
type app struct {
	pipeline *pipeline.Pipeline
	// db is nil when the index lives in memory.
	db *store.SQLiteStore
	// mirror is nil unless QDRANT_HOST is set.
	mirror   *rag.QdrantMirror
	settings config.Settings
	closers  []func() error
}

// Close releases everything opened by buildApp, last opened first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp wires chunker, vectorizer, index, retriever, composer, fetcher
// and the optional Qdrant mirror from the environment. withGenerator is false
// for commands that never answer questions, so no chat model is constructed.
func buildApp(ctx context.Context, log *slog.Logger, withGenerator bool) (*app, error) {
	s := config.FromEnv()
	a := &app{settings: s}

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(s.Chunking)
	if err != nil {
		return nil, err
	}

	persister, err := a.openPersister(log)
	if err != nil {
		return nil, err
	}

	idx, err := index.New(index.Options{Persister: persister, Chunker: ch, Embedder: emb})
	if err != nil {
		a.Close()
		return nil, err
	}

	retriever, err := rag.NewRetriever(s.TopK, s.MinScore)
	if err != nil {
		a.Close()
		return nil, err
	}

	var gen answer.Generator = answer.Unavailable{Reason: "not used by this command"}
	if withGenerator {
		gen = generator.FromEnv(ctx, log)
	}

	opts := pipeline.Options{
		Index:     idx,
		Retriever: retriever,
		Composer:  answer.NewComposer(gen, s.Answer),
		Source:    ingestion.NewFetcher(&s.Fetcher),
		Config:    s.Pipeline,
	}
	if a.db != nil {
		opts.Recorder = a.db
	}

	if s.Qdrant != nil {
		m, err := rag.NewQdrantMirror(s.Qdrant)
		if err != nil {
			log.Warn("qdrant: mirror disabled", slog.Any("error", err))
		} else {
			a.mirror = m
			a.closers = append(a.closers, m.Close)
			opts.Mirror = m
			log.Info("qdrant: mirroring index",
				slog.String("host", s.Qdrant.Host),
				slog.String("collection", m.Collection()),
			)
		}
	}

	p, err := pipeline.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p

	log.Info("pipeline wired",
		slog.String("vectorizer", emb.Name()),
		slog.Int("chunk_size", s.Chunking.Size),
		slog.Int("chunk_overlap", s.Chunking.Overlap),
		slog.Int("top_k", s.TopK),
	)
	return a, nil
}

// openPersister opens SQLite at SUPPORTAI_DB (default ~/.supportai/index.db),
// or an in-process store when SUPPORTAI_DB=memory.
func (a *app) openPersister(log *slog.Logger) (index.Persister, error) {
	path := a.settings.DBPath
	if strings.EqualFold(path, config.MemoryDBPath) {
		log.Info("store: using in-memory index, nothing survives exit")
		return index.NewMemoryPersister(), nil
	}
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	log.Info("store: opened", slog.String("path", path))
	return db, nil
}

// history returns the ask log reader, or nil when the index lives in memory.
func (a *app) history() server.AskHistory {
	if a.db == nil {
		return nil
	}
	return a.db
}

// pingers returns the readiness probes for the wired dependencies.
func (a *app) pingers() []server.Pinger {
	ps := []server.Pinger{server.NewIndexPinger(a.pipeline.Ready)}
	if a.db != nil {
		ps = append(ps, server.NewStorePinger(a.db))
	}
	if a.mirror != nil {
		ps = append(ps, server.NewQdrantPinger(a.mirror.Client()))
	}
	if cfg := provider.ConfigFromEnv(); cfg.Backend == provider.BackendOllama {
		ps = append(ps, server.NewHTTPPinger("llm", strings.TrimRight(cfg.Ollama.Host, "/")+"/api/tags"))
	}
	return ps
}

// readDocument returns the contents of path, or of stdin for "-".
func readDocument(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// printJSON writes v as indented JSON to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
