package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/54b3r/supportai-go/internal/index"
	"github.com/54b3r/supportai-go/internal/rag"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Compile-time check that SQLiteStore satisfies the index persistence contract.
var _ index.Persister = (*SQLiteStore)(nil)

func sampleIndex() *index.Persisted {
	at := time.UnixMilli(1_700_000_000_000).UTC()
	return &index.Persisted{
		Documents: []rag.Document{
			{ID: "d1", Source: "https://example.com/internet", Text: "fiber internet", Metadata: map[string]string{"topic": "internet"}, IngestedAt: at},
			{ID: "d2", Source: "sample://billing", Text: "pay bills", IngestedAt: at},
		},
		Entries: []rag.Entry{
			{Chunk: rag.Chunk{ID: "c1", DocumentID: "d1", Source: "https://example.com/internet", Seq: 0, Text: "fiber", Metadata: map[string]string{"topic": "internet"}}, Vector: []float32{0.5, -0.25, 1}},
			{Chunk: rag.Chunk{ID: "c2", DocumentID: "d1", Source: "https://example.com/internet", Seq: 1, Text: "internet"}, Vector: []float32{0, 1, 0}},
			{Chunk: rag.Chunk{ID: "c3", DocumentID: "d2", Source: "sample://billing", Seq: 0, Text: "pay bills"}, Vector: []float32{1, 0, 0}},
		},
		Vectorizer: &index.VectorizerState{Kind: "tfidf", Dimension: 3, Data: []byte(`{"kind":"tfidf"}`)},
	}
}

func Test_Store_LoadEmptyIsCold(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	p, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p != nil {
		t.Errorf("want nil for an empty database, got %+v", p)
	}
}

func Test_Store_ReplaceAndLoadRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	want := sampleIndex()

	if err := s.Replace(ctx, want); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func Test_Store_ReplaceDiscardsPreviousContent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Replace(ctx, sampleIndex()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	smaller := &index.Persisted{
		Documents: []rag.Document{{ID: "d9", Source: "s", Text: "t", IngestedAt: time.UnixMilli(0).UTC()}},
		Entries:   []rag.Entry{{Chunk: rag.Chunk{ID: "c9", DocumentID: "d9", Source: "s", Text: "t"}, Vector: []float32{1}}},
	}
	if err := s.Replace(ctx, smaller); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Documents) != 1 || len(got.Entries) != 1 || got.Vectorizer != nil {
		t.Errorf("want only the replacement content, got %d docs, %d entries, state %v",
			len(got.Documents), len(got.Entries), got.Vectorizer)
	}
}

func Test_Store_AppendKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := sampleIndex()

	if err := s.Replace(ctx, base); err != nil {
		t.Fatalf("replace: %v", err)
	}
	doc := rag.Document{ID: "d3", Source: "sample://tv", Text: "tv", IngestedAt: time.UnixMilli(5).UTC()}
	extra := []rag.Entry{{Chunk: rag.Chunk{ID: "c0", DocumentID: "d3", Source: "sample://tv", Text: "tv"}, Vector: []float32{0, 0, 1}}}
	if err := s.Append(ctx, doc, extra, nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids := make([]string, len(got.Entries))
	for i, e := range got.Entries {
		ids[i] = e.ID
	}
	if want := []string{"c1", "c2", "c3", "c0"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("entry order = %v, want %v", ids, want)
	}
	if got.Vectorizer == nil || got.Vectorizer.Kind != "tfidf" {
		t.Errorf("append without state must keep the stored state, got %v", got.Vectorizer)
	}
}

func Test_Store_AppendReplacesState(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := rag.Document{ID: "d1", Source: "s", Text: "t"}
	entries := []rag.Entry{{Chunk: rag.Chunk{ID: "c1", DocumentID: "d1", Text: "t"}, Vector: []float32{1, 2}}}
	state := &index.VectorizerState{Kind: "hash", Dimension: 2}
	if err := s.Append(ctx, doc, entries, state); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Vectorizer == nil || got.Vectorizer.Kind != "hash" || got.Vectorizer.Dimension != 2 {
		t.Errorf("vectorizer state = %+v", got.Vectorizer)
	}
}

func Test_Store_UndecodableVectorLoadsAsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Replace(ctx, sampleIndex()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE chunks SET vector = x'0102' WHERE id = 'c2'`); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Entries[1].Vector != nil {
		t.Errorf("want nil vector for a truncated blob, got %v", got.Entries[1].Vector)
	}
	if got.Entries[0].Vector == nil {
		t.Error("intact vector decoded as nil")
	}
}

func Test_Store_DuplicateDocumentRollsBack(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Replace(ctx, sampleIndex()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	dup := rag.Document{ID: "d1", Source: "s", Text: "t"}
	entries := []rag.Entry{{Chunk: rag.Chunk{ID: "new", DocumentID: "d1", Text: "t"}, Vector: []float32{1, 1, 1}}}
	if err := s.Append(ctx, dup, entries, nil); err == nil {
		t.Fatal("append of an existing document id succeeded")
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Entries) != 3 {
		t.Errorf("failed append leaked %d entries", len(got.Entries)-3)
	}
}

func Test_Store_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Replace(ctx, sampleIndex()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || len(got.Entries) != 3 {
		t.Fatalf("reopened store lost content: %+v", got)
	}
}

func Test_Store_AskLog(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	questions := []string{"first", "second", "third"}
	for i, q := range questions {
		r := AskRecord{
			Question:  q,
			Answer:    "answer " + q,
			Mode:      "extractive",
			Success:   i != 1,
			Sources:   []string{"https://example.com/" + q},
			TopScore:  0.5,
			Latency:   15 * time.Millisecond,
			CreatedAt: time.Unix(int64(1000+i), 0),
		}
		if err := s.RecordAsk(ctx, r); err != nil {
			t.Fatalf("record %q: %v", q, err)
		}
	}

	got, err := s.RecentAsks(ctx, 2)
	if err != nil {
		t.Fatalf("recent asks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 records, got %d", len(got))
	}
	if got[0].Question != "third" || got[1].Question != "second" {
		t.Errorf("want newest first, got %q, %q", got[0].Question, got[1].Question)
	}
	if got[1].Success {
		t.Error("success flag not preserved")
	}
	if got[0].Latency != 15*time.Millisecond || len(got[0].Sources) != 1 {
		t.Errorf("record fields not preserved: %+v", got[0])
	}
}

func Test_Store_AskLogEmpty(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	got, err := s.RecentAsks(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent asks: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want 0 records, got %d", len(got))
	}
}
