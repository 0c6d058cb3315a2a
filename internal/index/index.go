// Package index holds the in-memory similarity index. Each committed state is
// an immutable Snapshot published through an atomic pointer: readers take one
// load and never block, writers build a new snapshot off to the side and
// swap it in only after it has been persisted.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/54b3r/supportai-go/internal/chunker"
	"github.com/54b3r/supportai-go/internal/logging"
	"github.com/54b3r/supportai-go/internal/rag"
)

// DefaultBatchSize is the number of texts sent to the embedder per call.
const DefaultBatchSize = 64

// Snapshot is one immutable state of the index. Never modify a Snapshot
// obtained from Store.Snapshot.
type Snapshot struct {
	// Documents holds the indexed documents in insertion order.
	Documents []rag.Document
	// Entries holds the indexed chunks and vectors in insertion order.
	Entries []rag.Entry
	// Embedder is the vectorizer that produced Entries; queries must use it.
	Embedder rag.Embedder
	// Dimension is the shared vector length, 0 while the index is empty.
	Dimension int
	// BuiltAt is when the snapshot was committed.
	BuiltAt time.Time

	// docIDs indexes Documents by ID.
	docIDs map[string]struct{}
}

// HasDocument reports whether a document with id is indexed.
func (s *Snapshot) HasDocument(id string) bool {
	_, ok := s.docIDs[id]
	return ok
}

// Stats summarizes an index snapshot.
type Stats struct {
	// NumDocuments is the number of indexed documents.
	NumDocuments int `json:"num_documents"`
	// NumChunks is the number of indexed chunks.
	NumChunks int `json:"num_chunks"`
	// Dimension is the vector length.
	Dimension int `json:"dimension"`
	// Vectorizer is the vectorizer kind.
	Vectorizer string `json:"vectorizer"`
	// BuiltAt is when the snapshot was committed.
	BuiltAt time.Time `json:"built_at"`
}

// AddStats reports the outcome of one Add or Ingest.
type AddStats struct {
	// DocumentID is the ID of the added document.
	DocumentID string `json:"document_id"`
	// Chunks is the number of chunks added.
	Chunks int `json:"chunks"`
	// Skipped is true when the document was already indexed.
	Skipped bool `json:"skipped"`
	// Fitted is true when a statistical vectorizer was fitted for this add.
	Fitted bool `json:"fitted"`
}

// Options configures a Store.
type Options struct {
	// Persister stores committed snapshots. Required.
	Persister Persister
	// Chunker splits documents. Required.
	Chunker *chunker.Chunker
	// Embedder is the prototype vectorizer. Statistical vectorizers are
	// cloned before every fit so the served snapshot is never mutated.
	Embedder rag.Embedder
	// BatchSize is the number of texts per embedder call (default: 64).
	BatchSize int
}

// Store owns the current snapshot and its persistence.
type Store struct {
	// current is nil until the first Load, Add or Rebuild commits.
	current atomic.Pointer[Snapshot]
	// mu serializes writers (Add, Ingest, Rebuild, Load).
	mu sync.Mutex
	// persister stores committed snapshots.
	persister Persister
	// chunker splits documents.
	chunker *chunker.Chunker
	// proto is the configured vectorizer.
	proto rag.Embedder
	// batchSize bounds each embedder call.
	batchSize int
}

// New returns a Store with no snapshot; call Load or Rebuild before serving.
func New(opts Options) (*Store, error) {
	if opts.Persister == nil {
		return nil, fmt.Errorf("index: persister must not be nil: %w", rag.ErrInvalidConfig)
	}
	if opts.Chunker == nil {
		return nil, fmt.Errorf("index: chunker must not be nil: %w", rag.ErrInvalidConfig)
	}
	if opts.Embedder == nil {
		return nil, fmt.Errorf("index: embedder must not be nil: %w", rag.ErrInvalidConfig)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Store{
		persister: opts.Persister,
		chunker:   opts.Chunker,
		proto:     opts.Embedder,
		batchSize: opts.BatchSize,
	}, nil
}

// Snapshot returns the current snapshot, or nil before the first commit.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Stats summarizes the current snapshot. Before the first commit it reports
// an empty index with the configured vectorizer.
func (s *Store) Stats() Stats {
	snap := s.current.Load()
	if snap == nil {
		return Stats{Vectorizer: s.proto.Name()}
	}
	return snap.stats()
}

func (snap *Snapshot) stats() Stats {
	return Stats{
		NumDocuments: len(snap.Documents),
		NumChunks:    len(snap.Entries),
		Dimension:    snap.Dimension,
		Vectorizer:   snap.Embedder.Name(),
		BuiltAt:      snap.BuiltAt,
	}
}

// Close releases the persister.
func (s *Store) Close() error {
	return s.persister.Close()
}

// Ingest chunks doc, fits a statistical vectorizer if the index has none yet,
// embeds the chunks and adds them. An already fitted vectorizer is reused
// as is; terms it has never seen do not contribute to the new vectors.
func (s *Store) Ingest(ctx context.Context, doc rag.Document) (AddStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current.Load()
	if snap != nil && snap.HasDocument(doc.ID) {
		return AddStats{DocumentID: doc.ID, Skipped: true}, nil
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return AddStats{}, fmt.Errorf("index: ingest: %w", err)
	}
	if len(chunks) == 0 {
		return AddStats{}, fmt.Errorf("index: ingest: document %s has no text: %w", doc.Source, rag.ErrInvalidInput)
	}

	emb, fitted, err := s.embedderFor(snap, chunkTexts(chunks))
	if err != nil {
		return AddStats{}, fmt.Errorf("index: ingest: %w", err)
	}

	entries, err := s.embedChunks(ctx, emb, chunks)
	if err != nil {
		return AddStats{}, fmt.Errorf("index: ingest: %w", err)
	}

	stats, err := s.add(ctx, snap, doc, entries, emb)
	stats.Fitted = fitted
	return stats, err
}

// Add appends doc with precomputed entries produced by emb. It never mutates
// existing entries. A document that is already indexed is skipped; entries
// whose dimension differs from the index fail with rag.ErrDimensionMismatch.
func (s *Store) Add(ctx context.Context, doc rag.Document, entries []rag.Entry, emb rag.Embedder) (AddStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current.Load()
	if snap != nil && snap.HasDocument(doc.ID) {
		return AddStats{DocumentID: doc.ID, Skipped: true}, nil
	}
	return s.add(ctx, snap, doc, entries, emb)
}

// add persists and publishes doc on top of snap. Callers hold s.mu.
func (s *Store) add(ctx context.Context, snap *Snapshot, doc rag.Document, entries []rag.Entry, emb rag.Embedder) (AddStats, error) {
	serving, dim := emb, 0
	if snap != nil && len(snap.Entries) > 0 {
		if emb.Name() != snap.Embedder.Name() {
			return AddStats{}, fmt.Errorf("index: add: vectorizer %s does not match index vectorizer %s: %w",
				emb.Name(), snap.Embedder.Name(), rag.ErrDimensionMismatch)
		}
		serving, dim = snap.Embedder, snap.Dimension
	}
	for _, e := range entries {
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim || dim == 0 {
			return AddStats{}, fmt.Errorf("index: add: chunk %s has dimension %d, index has %d: %w",
				e.ID, len(e.Vector), dim, rag.ErrDimensionMismatch)
		}
	}

	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	// The vectorizer state only changes when the index had nothing to
	// constrain it.
	var vs *VectorizerState
	if serving == emb {
		var err error
		if vs, err = stateOf(emb, dim); err != nil {
			return AddStats{}, fmt.Errorf("index: add: %w", err)
		}
	}
	if err := s.persister.Append(ctx, doc, entries, vs); err != nil {
		return AddStats{}, fmt.Errorf("index: add: persist: %w", err)
	}

	next := &Snapshot{Embedder: serving, Dimension: dim, BuiltAt: time.Now().UTC()}
	if snap != nil {
		next.Documents = slices.Clip(snap.Documents)
		next.Entries = slices.Clip(snap.Entries)
	}
	next.Documents = append(next.Documents, doc)
	next.Entries = append(next.Entries, entries...)
	next.index()
	s.current.Store(next)

	return AddStats{DocumentID: doc.ID, Chunks: len(entries)}, nil
}

// Rebuild replaces the whole index with docs: every document is re-chunked,
// a statistical vectorizer is fitted afresh on the new chunks, and the result
// is persisted before it becomes visible. Readers keep the previous snapshot
// until the final swap. Zero documents clears the index.
func (s *Store) Rebuild(ctx context.Context, docs []rag.Document) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(docs))
	var (
		kept   []rag.Document
		chunks []rag.Chunk
	)
	for _, doc := range docs {
		if _, dup := seen[doc.ID]; dup {
			continue
		}
		seen[doc.ID] = struct{}{}
		if doc.IngestedAt.IsZero() {
			doc.IngestedAt = now
		}
		cs, err := s.chunker.Chunk(doc)
		if err != nil {
			return Stats{}, fmt.Errorf("index: rebuild: %w", err)
		}
		kept = append(kept, doc)
		chunks = append(chunks, cs...)
	}

	emb, _, err := s.embedderFor(nil, chunkTexts(chunks))
	if err != nil {
		return Stats{}, fmt.Errorf("index: rebuild: %w", err)
	}
	entries, err := s.embedChunks(ctx, emb, chunks)
	if err != nil {
		return Stats{}, fmt.Errorf("index: rebuild: %w", err)
	}

	next, err := s.commit(ctx, kept, entries, emb)
	if err != nil {
		return Stats{}, fmt.Errorf("index: rebuild: %w", err)
	}
	return next.stats(), nil
}

// Load restores the persisted index. It returns false when nothing has been
// persisted. Stored vectors that the current vectorizer cannot reproduce are
// repaired before the snapshot is published: a statistical vectorizer is
// re-fitted on the stored chunk texts, a neural one re-embeds them.
func (s *Store) Load(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.persister.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("index: load: %w", err)
	}
	if p == nil {
		return false, nil
	}

	emb, reason, err := s.restore(ctx, p)
	if err != nil {
		return false, fmt.Errorf("index: load: %w", err)
	}

	if reason == "" {
		next := &Snapshot{
			Documents: p.Documents,
			Entries:   p.Entries,
			Embedder:  emb,
			BuiltAt:   time.Now().UTC(),
		}
		if len(p.Entries) > 0 {
			next.Dimension = len(p.Entries[0].Vector)
		}
		next.index()
		s.current.Store(next)
		return true, nil
	}

	oldDim := 0
	if p.Vectorizer != nil {
		oldDim = p.Vectorizer.Dimension
	}

	chunks := make([]rag.Chunk, len(p.Entries))
	for i, e := range p.Entries {
		chunks[i] = e.Chunk
	}
	emb, _, err = s.embedderFor(nil, chunkTexts(chunks))
	if err != nil {
		return false, fmt.Errorf("index: load: repair: %w", err)
	}
	entries, err := s.embedChunks(ctx, emb, chunks)
	if err != nil {
		return false, fmt.Errorf("index: load: repair: %w", err)
	}
	next, err := s.commit(ctx, p.Documents, entries, emb)
	if err != nil {
		return false, fmt.Errorf("index: load: repair: %w", err)
	}

	logging.FromContext(ctx).Warn("index: stored vectors did not match the vectorizer, re-embedded all chunks",
		slog.String("reason", reason),
		slog.String("vectorizer", emb.Name()),
		slog.Int("old_dimension", oldDim),
		slog.Int("new_dimension", next.Dimension),
		slog.Int("chunks", len(entries)),
	)
	return true, nil
}

// restore rebuilds the vectorizer from p and checks the stored vectors
// against it. A non-empty reason means the index must be repaired.
func (s *Store) restore(ctx context.Context, p *Persisted) (rag.Embedder, string, error) {
	dims := make(map[int]int)
	undecodable := 0
	for _, e := range p.Entries {
		if e.Vector == nil {
			undecodable++
			continue
		}
		dims[len(e.Vector)]++
	}
	if undecodable > 0 {
		return nil, fmt.Sprintf("%d undecodable vectors", undecodable), nil
	}
	if len(dims) > 1 {
		return nil, fmt.Sprintf("mixed vector dimensions %v", dims), nil
	}
	stored := 0
	for d := range dims {
		stored = d
	}

	if f, ok := s.proto.(rag.FittableEmbedder); ok {
		vs := p.Vectorizer
		switch {
		case vs == nil:
			return nil, "missing vectorizer state", nil
		case vs.Kind != f.Name():
			return nil, fmt.Sprintf("vectorizer changed from %s to %s", vs.Kind, f.Name()), nil
		}
		emb := f.Clone()
		if err := emb.UnmarshalState(vs.Data); err != nil {
			return nil, fmt.Sprintf("unreadable vectorizer state: %v", err), nil
		}
		if emb.Dimension() != vs.Dimension || (stored != 0 && emb.Dimension() != stored) {
			return nil, fmt.Sprintf("vectorizer dimension %d, recorded %d, stored vectors %d",
				emb.Dimension(), vs.Dimension, stored), nil
		}
		return emb, "", nil
	}

	if vs := p.Vectorizer; vs != nil && vs.Kind != s.proto.Name() {
		return nil, fmt.Sprintf("vectorizer changed from %s to %s", vs.Kind, s.proto.Name()), nil
	}
	if stored == 0 {
		return s.proto, "", nil
	}
	if s.proto.Dimension() == 0 {
		// Learn the model dimension with one probe before trusting stored vectors.
		if _, err := s.proto.Embed(ctx, []string{p.Entries[0].Text}); err != nil {
			return nil, "", fmt.Errorf("probe %s dimension: %w", s.proto.Name(), err)
		}
	}
	if d := s.proto.Dimension(); d != stored {
		return nil, fmt.Sprintf("model dimension %d, stored vectors %d", d, stored), nil
	}
	return s.proto, "", nil
}

// commit persists a full replacement and publishes it. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, docs []rag.Document, entries []rag.Entry, emb rag.Embedder) (*Snapshot, error) {
	next := &Snapshot{
		Documents: docs,
		Entries:   entries,
		Embedder:  emb,
		BuiltAt:   time.Now().UTC(),
	}
	if len(entries) > 0 {
		next.Dimension = len(entries[0].Vector)
	}
	next.index()

	var vs *VectorizerState
	if len(entries) > 0 {
		var err error
		if vs, err = stateOf(emb, next.Dimension); err != nil {
			return nil, err
		}
	}
	if err := s.persister.Replace(ctx, &Persisted{Documents: docs, Entries: entries, Vectorizer: vs}); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	s.current.Store(next)
	return next, nil
}

// embedderFor returns the vectorizer for new chunks. A statistical vectorizer
// is fitted on texts when snap has nothing indexed or no fitted vectorizer;
// otherwise snap's vectorizer is reused.
func (s *Store) embedderFor(snap *Snapshot, texts []string) (rag.Embedder, bool, error) {
	if snap != nil && len(snap.Entries) > 0 {
		return snap.Embedder, false, nil
	}
	f, ok := s.proto.(rag.FittableEmbedder)
	if !ok {
		return s.proto, false, nil
	}
	emb := f.Clone()
	if len(texts) == 0 {
		return emb, false, nil
	}
	if err := emb.Fit(texts); err != nil {
		return nil, false, err
	}
	return emb, true, nil
}

// embedChunks vectorizes chunks in batches.
func (s *Store) embedChunks(ctx context.Context, emb rag.Embedder, chunks []rag.Chunk) ([]rag.Entry, error) {
	entries := make([]rag.Entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.batchSize, len(chunks))
		vecs, err := emb.Embed(ctx, chunkTexts(chunks[start:end]))
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks: %w", len(vecs), end-start, rag.ErrEmbedding)
		}
		for i, v := range vecs {
			entries = append(entries, rag.Entry{Chunk: chunks[start+i], Vector: v})
		}
	}
	return entries, nil
}

// stateOf captures the persisted identity of emb. An unfitted statistical
// vectorizer has no state to record.
func stateOf(emb rag.Embedder, dim int) (*VectorizerState, error) {
	vs := &VectorizerState{Kind: emb.Name(), Dimension: dim}
	f, ok := emb.(rag.FittableEmbedder)
	if !ok {
		return vs, nil
	}
	if !f.Fitted() {
		return nil, nil
	}
	data, err := f.MarshalState()
	if err != nil {
		return nil, fmt.Errorf("marshal vectorizer state: %w", err)
	}
	vs.Data = data
	return vs, nil
}

func (snap *Snapshot) index() {
	snap.docIDs = make(map[string]struct{}, len(snap.Documents))
	for _, d := range snap.Documents {
		snap.docIDs[d.ID] = struct{}{}
	}
}

func chunkTexts(chunks []rag.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
