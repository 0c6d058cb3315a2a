package index

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/54b3r/supportai-go/internal/rag"
)

// VectorizerState is the persisted identity of the vectorizer that produced
// the stored vectors.
type VectorizerState struct {
	// Kind is the vectorizer name (rag.Embedder.Name).
	Kind string
	// Dimension is the vector length the vectorizer produced.
	Dimension int
	// Data is the serialized fitted state. Empty for neural vectorizers.
	Data []byte
}

// Persisted is the full durable content of an index.
type Persisted struct {
	// Documents holds every stored document in insertion order.
	Documents []rag.Document
	// Entries holds every stored chunk and vector in insertion order. A nil
	// Vector marks a blob that could not be decoded.
	Entries []rag.Entry
	// Vectorizer is nil when no state was ever written or it was unreadable.
	Vectorizer *VectorizerState
}

// Persister stores index content durably. Implementations must make Replace
// and Append all-or-nothing.
type Persister interface {
	// Load returns the stored index, or nil when nothing has been persisted.
	Load(ctx context.Context) (*Persisted, error)

	// Replace discards all stored content and writes p in its place.
	Replace(ctx context.Context, p *Persisted) error

	// Append adds one document and its entries. A non-nil vs replaces the
	// stored vectorizer state in the same transaction.
	Append(ctx context.Context, doc rag.Document, entries []rag.Entry, vs *VectorizerState) error

	// Close releases any resources held by the persister.
	Close() error
}

// MemoryPersister keeps index content in process memory. It backs tests and
// the "memory" database setting.
type MemoryPersister struct {
	// mu guards data.
	mu sync.Mutex
	// data is nil until the first write.
	data *Persisted
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load returns a copy of the stored content, or nil when empty.
func (m *MemoryPersister) Load(_ context.Context) (*Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil || len(m.data.Documents) == 0 {
		return nil, nil
	}
	return clonePersisted(m.data), nil
}

// Replace swaps in a copy of p.
func (m *MemoryPersister) Replace(_ context.Context, p *Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = clonePersisted(p)
	return nil
}

// Append adds doc and entries to the stored content.
func (m *MemoryPersister) Append(_ context.Context, doc rag.Document, entries []rag.Entry, vs *VectorizerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = &Persisted{}
	}
	m.data.Documents = append(m.data.Documents, doc)
	for _, e := range entries {
		m.data.Entries = append(m.data.Entries, cloneEntry(e))
	}
	if vs != nil {
		m.data.Vectorizer = cloneState(vs)
	}
	return nil
}

// Close is a no-op.
func (m *MemoryPersister) Close() error { return nil }

func clonePersisted(p *Persisted) *Persisted {
	out := &Persisted{
		Documents:  make([]rag.Document, len(p.Documents)),
		Entries:    make([]rag.Entry, len(p.Entries)),
		Vectorizer: cloneState(p.Vectorizer),
	}
	for i, d := range p.Documents {
		d.Metadata = maps.Clone(d.Metadata)
		out.Documents[i] = d
	}
	for i, e := range p.Entries {
		out.Entries[i] = cloneEntry(e)
	}
	return out
}

func cloneEntry(e rag.Entry) rag.Entry {
	e.Metadata = maps.Clone(e.Metadata)
	e.Vector = slices.Clone(e.Vector)
	return e
}

func cloneState(vs *VectorizerState) *VectorizerState {
	if vs == nil {
		return nil
	}
	c := *vs
	c.Data = slices.Clone(vs.Data)
	return &c
}
