// Package pipeline orchestrates the support assistant: it owns the index
// lifecycle (load, bootstrap, rebuild), ingests documents and answers
// questions against whichever snapshot is current.
//
// Lifecycle:
//
//	UNINITIALIZED → LOADING → READY
//	READY → REBUILDING → READY
//
// A failed rebuild leaves the previous snapshot authoritative. At most one
// rebuild runs at a time; a second request fails fast with
// rag.ErrRebuildInProgress instead of queueing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/index"
	"github.com/54b3r/supportai-go/internal/ingestion"
	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/rag"
	"github.com/54b3r/supportai-go/internal/store"
)

// Status is the lifecycle state of a Pipeline.
type Status string

const (
	// StatusUninitialized means no index has been loaded or built.
	StatusUninitialized Status = "UNINITIALIZED"
	// StatusLoading means the persisted index is being restored.
	StatusLoading Status = "LOADING"
	// StatusReady means a snapshot is being served.
	StatusReady Status = "READY"
	// StatusRebuilding means a rebuild is in flight; any previous snapshot
	// keeps serving.
	StatusRebuilding Status = "REBUILDING"
)

// DefaultFetchTimeout bounds fetching the corpus for one rebuild.
const DefaultFetchTimeout = 60 * time.Second

// ErrFetch reports that no source document could be fetched for a rebuild.
var ErrFetch = errors.New("source fetch failed")

// Source fetches corpus documents. *ingestion.Fetcher implements it.
type Source interface {
	FetchAll(ctx context.Context, urls []string) ([]rag.Document, error)
}

// Mirror receives every committed snapshot. *rag.QdrantMirror implements it.
type Mirror interface {
	Sync(ctx context.Context, entries []rag.Entry, dim int) error
}

// AskRecorder persists answered questions. *store.SQLiteStore implements it.
type AskRecorder interface {
	RecordAsk(ctx context.Context, r store.AskRecord) error
}

// Config tunes corpus bootstrapping.
type Config struct {
	// SourceURLs is the default corpus fetched by RebuildFromSource.
	SourceURLs []string
	// FetchTimeout bounds fetching the corpus (default: 60s).
	FetchTimeout time.Duration
	// SampleFallback indexes the built-in sample corpus when the bootstrap
	// fetch in Start fails.
	SampleFallback bool
}

// Options wires a Pipeline. Index, Retriever and Composer are required.
type Options struct {
	// Index holds the served snapshot.
	Index *index.Store
	// Retriever ranks chunks for a question.
	Retriever *rag.Retriever
	// Composer turns ranked chunks into an answer.
	Composer *answer.Composer
	// Source fetches the corpus for RebuildFromSource. Optional.
	Source Source
	// Mirror replicates committed snapshots. Optional.
	Mirror Mirror
	// Recorder logs answered questions. Optional.
	Recorder AskRecorder
	// Config tunes bootstrapping.
	Config Config
}

// Stats is the index summary plus the lifecycle state.
type Stats struct {
	index.Stats
	// Status is the lifecycle state.
	Status Status `json:"status"`
}

// Pipeline is safe for concurrent use. Asks never block each other or wait
// for writers.
type Pipeline struct {
	// idx holds the served snapshot and its persistence.
	idx *index.Store
	// retriever ranks snapshot entries against a question.
	retriever *rag.Retriever
	// composer builds the answer from ranked passages.
	composer *answer.Composer
	// source fetches the corpus; nil disables RebuildFromSource fetching.
	source Source
	// mirror receives committed snapshots; may be nil.
	mirror Mirror
	// recorder logs answered questions; may be nil.
	recorder AskRecorder
	// cfg holds the corpus settings with defaults applied.
	cfg Config

	// rebuilding is set for the whole duration of a rebuild, fetch included.
	rebuilding atomic.Bool

	// mu guards status.
	mu sync.Mutex
	// status is the current lifecycle state.
	status Status
}

// New validates opts and returns an UNINITIALIZED Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Index == nil || opts.Retriever == nil || opts.Composer == nil {
		return nil, fmt.Errorf("pipeline: index, retriever and composer are required: %w", rag.ErrInvalidConfig)
	}
	if opts.Config.FetchTimeout <= 0 {
		opts.Config.FetchTimeout = DefaultFetchTimeout
	}
	if len(opts.Config.SourceURLs) == 0 {
		opts.Config.SourceURLs = []string{ingestion.DefaultSourceURL}
	}
	return &Pipeline{
		idx:       opts.Index,
		retriever: opts.Retriever,
		composer:  opts.Composer,
		source:    opts.Source,
		mirror:    opts.Mirror,
		recorder:  opts.Recorder,
		cfg:       opts.Config,
		status:    StatusUninitialized,
	}, nil
}

// Status returns the lifecycle state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Ready reports whether questions can be answered.
func (p *Pipeline) Ready() bool {
	return p.serving() != nil
}

// serving returns the snapshot questions are answered from, or nil.
func (p *Pipeline) serving() *index.Snapshot {
	if p.Status() == StatusLoading {
		return nil
	}
	return p.idx.Snapshot()
}

// Start restores the persisted index. When nothing usable is stored and
// bootstrap is set, the default corpus is fetched and indexed. Without
// bootstrap the pipeline stays UNINITIALIZED and any load error is returned.
func (p *Pipeline) Start(ctx context.Context, bootstrap bool) error {
	log := logging.FromContext(ctx)
	p.setStatus(StatusLoading)

	loaded, err := p.idx.Load(ctx)
	if err == nil && loaded {
		p.setStatus(StatusReady)
		st := p.idx.Stats()
		log.Info("pipeline: index loaded",
			slog.Int("documents", st.NumDocuments),
			slog.Int("chunks", st.NumChunks),
			slog.Int("dimension", st.Dimension),
		)
		p.syncMirror(ctx)
		return nil
	}

	p.setStatus(StatusUninitialized)
	if err != nil {
		log.Warn("pipeline: could not load stored index", slog.Any("error", err))
	}
	if !bootstrap {
		if err != nil {
			return fmt.Errorf("pipeline: start: %w", err)
		}
		log.Info("pipeline: no stored index, waiting for ingest or rebuild")
		return nil
	}

	log.Info("pipeline: building index from the default corpus", slog.Any("urls", p.cfg.SourceURLs))
	if _, err := p.rebuildFromSource(ctx, nil, p.cfg.SampleFallback); err != nil {
		return fmt.Errorf("pipeline: start: %w", err)
	}
	return nil
}

// Ingest adds text as one document. A document whose content is already
// indexed is reported as skipped.
func (p *Pipeline) Ingest(ctx context.Context, text, source string) (index.AddStats, error) {
	if strings.TrimSpace(text) == "" {
		return index.AddStats{}, fmt.Errorf("pipeline: ingest: text is empty: %w", rag.ErrInvalidInput)
	}
	if p.rebuilding.Load() {
		return index.AddStats{}, fmt.Errorf("pipeline: ingest: %w", rag.ErrRebuildInProgress)
	}
	if source == "" {
		source = "inline"
	}

	doc := ingestion.NewDocument(source, text, map[string]string{"topic": ingestion.InferTopic(source)})
	stats, err := p.idx.Ingest(ctx, doc)
	if err != nil {
		return index.AddStats{}, fmt.Errorf("pipeline: ingest: %w", err)
	}

	p.mu.Lock()
	if p.status == StatusUninitialized {
		p.status = StatusReady
	}
	p.mu.Unlock()

	logging.FromContext(ctx).Info("pipeline: ingested document",
		slog.String("source", source),
		slog.String("document_id", stats.DocumentID),
		slog.Int("chunks", stats.Chunks),
		slog.Bool("skipped", stats.Skipped),
	)
	if !stats.Skipped {
		p.syncMirror(ctx)
	}
	return stats, nil
}

// Ask answers question from the current snapshot.
func (p *Pipeline) Ask(ctx context.Context, question string) (*answer.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("pipeline: ask: question is empty: %w", rag.ErrInvalidInput)
	}
	snap := p.serving()
	if snap == nil {
		return nil, fmt.Errorf("pipeline: ask: %w", rag.ErrNotReady)
	}

	start := time.Now()
	results, err := p.retriever.Retrieve(ctx, snap.Embedder, snap.Entries, question)
	if err != nil {
		return nil, fmt.Errorf("pipeline: ask: %w", err)
	}
	ans, err := p.composer.Compose(ctx, question, results)
	if err != nil {
		return nil, fmt.Errorf("pipeline: ask: %w", err)
	}
	p.record(ctx, ans, time.Since(start))
	return ans, nil
}

// record writes ans to the ask log. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, ans *answer.Answer, latency time.Duration) {
	if p.recorder == nil {
		return
	}
	r := store.AskRecord{
		Question:  ans.Question,
		Answer:    ans.Answer,
		Mode:      string(ans.Mode),
		Success:   ans.Success,
		Sources:   ans.Sources,
		Latency:   latency,
		CreatedAt: time.Now().UTC(),
	}
	if len(ans.Passages) > 0 {
		r.TopScore = ans.Passages[0].Score
	}
	if err := p.recorder.RecordAsk(ctx, r); err != nil {
		logging.FromContext(ctx).Warn("pipeline: failed to record ask", slog.Any("error", err))
	}
}

// Rebuild replaces the index with docs.
func (p *Pipeline) Rebuild(ctx context.Context, docs []rag.Document) (Stats, error) {
	if !p.rebuilding.CompareAndSwap(false, true) {
		return Stats{}, fmt.Errorf("pipeline: rebuild: %w", rag.ErrRebuildInProgress)
	}
	defer p.rebuilding.Store(false)
	return p.rebuild(ctx, func(context.Context) ([]rag.Document, error) { return docs, nil })
}

// RebuildFromSource fetches urls (the configured corpus when empty) and
// replaces the index with them. A failed fetch fails the rebuild with ErrFetch
// and the served index is kept; the sample corpus is only used by Start.
func (p *Pipeline) RebuildFromSource(ctx context.Context, urls []string) (Stats, error) {
	return p.rebuildFromSource(ctx, urls, false)
}

// rebuildFromSource indexes the sample corpus instead when sample is set and
// fetching fails.
func (p *Pipeline) rebuildFromSource(ctx context.Context, urls []string, sample bool) (Stats, error) {
	if !p.rebuilding.CompareAndSwap(false, true) {
		return Stats{}, fmt.Errorf("pipeline: rebuild: %w", rag.ErrRebuildInProgress)
	}
	defer p.rebuilding.Store(false)
	if len(urls) == 0 {
		urls = p.cfg.SourceURLs
	}
	return p.rebuild(ctx, func(ctx context.Context) ([]rag.Document, error) {
		return p.fetch(ctx, urls, sample)
	})
}

// fetch gathers the corpus within FetchTimeout.
func (p *Pipeline) fetch(ctx context.Context, urls []string, sample bool) ([]rag.Document, error) {
	log := logging.FromContext(ctx)
	var err error
	if p.source == nil {
		err = errors.New("no source configured")
	} else {
		fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
		var docs []rag.Document
		docs, err = p.source.FetchAll(fctx, urls)
		cancel()
		if err == nil && len(docs) > 0 {
			return docs, nil
		}
		if err == nil {
			err = errors.New("no documents returned")
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !sample {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	log.Warn("pipeline: fetching corpus failed, using the sample corpus", slog.Any("error", err))
	return []rag.Document{ingestion.SampleDocument()}, nil
}

// rebuild runs one rebuild. Callers hold the rebuilding flag.
func (p *Pipeline) rebuild(ctx context.Context, gather func(context.Context) ([]rag.Document, error)) (Stats, error) {
	log := logging.FromContext(ctx)
	prev := p.Status()
	p.setStatus(StatusRebuilding)

	fail := func(err error) (Stats, error) {
		restored := StatusUninitialized
		if prev == StatusReady || p.idx.Snapshot() != nil {
			restored = StatusReady
		}
		p.setStatus(restored)
		log.Error("pipeline: rebuild failed, previous index kept", slog.Any("error", err))
		return Stats{}, fmt.Errorf("pipeline: rebuild: %w", err)
	}

	start := time.Now()
	docs, err := gather(ctx)
	if err != nil {
		return fail(err)
	}
	st, err := p.idx.Rebuild(ctx, docs)
	if err != nil {
		return fail(err)
	}
	p.setStatus(StatusReady)

	log.Info("pipeline: rebuild complete",
		slog.Int("documents", st.NumDocuments),
		slog.Int("chunks", st.NumChunks),
		slog.Int("dimension", st.Dimension),
		slog.Duration("took", time.Since(start)),
	)
	p.syncMirror(ctx)
	return Stats{Stats: st, Status: StatusReady}, nil
}

// syncMirror replicates the current snapshot. Failures are logged only.
func (p *Pipeline) syncMirror(ctx context.Context) {
	if p.mirror == nil {
		return
	}
	snap := p.idx.Snapshot()
	if snap == nil || len(snap.Entries) == 0 {
		return
	}
	if err := p.mirror.Sync(ctx, snap.Entries, snap.Dimension); err != nil {
		logging.FromContext(ctx).Warn("pipeline: mirror sync failed", slog.Any("error", err))
	}
}

// Stats summarizes the served index.
func (p *Pipeline) Stats() Stats {
	return Stats{Stats: p.idx.Stats(), Status: p.Status()}
}

// Close releases the index persistence.
func (p *Pipeline) Close() error {
	return p.idx.Close()
}
