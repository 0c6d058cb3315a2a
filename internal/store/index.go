package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/54b3r/supportai-go/internal/index"
	"github.com/54b3r/supportai-go/internal/rag"
)

// Load reads the whole index in insertion order. It returns nil when no
// document has been stored. Vectors whose blob does not match the recorded
// dimension are returned as nil so the index can repair them.
func (s *SQLiteStore) Load(ctx context.Context) (*index.Persisted, error) {
	docs, err := s.loadDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	entries, err := s.loadEntries(ctx)
	if err != nil {
		return nil, err
	}

	p := &index.Persisted{Documents: docs, Entries: entries}

	var vs index.VectorizerState
	err = s.db.QueryRowContext(ctx, `SELECT kind, dim, state FROM vectorizer_state WHERE singleton = 1`).
		Scan(&vs.Kind, &vs.Dimension, &vs.Data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("store: load vectorizer state: %w", err)
	default:
		p.Vectorizer = &vs
	}
	return p, nil
}

func (s *SQLiteStore) loadDocuments(ctx context.Context) ([]rag.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, content, metadata, ingested_at FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("store: load documents: %w", err)
	}
	defer rows.Close()

	var docs []rag.Document
	for rows.Next() {
		var (
			d    rag.Document
			meta string
			ts   int64
		)
		if err := rows.Scan(&d.ID, &d.Source, &d.Text, &meta, &ts); err != nil {
			return nil, fmt.Errorf("store: load documents scan: %w", err)
		}
		d.Metadata = decodeMetadata(meta)
		d.IngestedAt = time.UnixMilli(ts).UTC()
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load documents rows: %w", err)
	}
	return docs, nil
}

func (s *SQLiteStore) loadEntries(ctx context.Context) ([]rag.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, source, seq, content, metadata, dim, vector FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("store: load chunks: %w", err)
	}
	defer rows.Close()

	var entries []rag.Entry
	for rows.Next() {
		var (
			e    rag.Entry
			meta string
			dim  int
			blob []byte
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Source, &e.Seq, &e.Text, &meta, &dim, &blob); err != nil {
			return nil, fmt.Errorf("store: load chunks scan: %w", err)
		}
		e.Metadata = decodeMetadata(meta)
		e.Vector = decodeVector(blob, dim)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load chunks rows: %w", err)
	}
	return entries, nil
}

// Replace deletes everything and writes p in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, p *index.Persisted) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{`DELETE FROM chunks`, `DELETE FROM documents`, `DELETE FROM vectorizer_state`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: replace: clear: %w", err)
		}
	}
	for _, d := range p.Documents {
		if err := insertDocument(ctx, tx, d); err != nil {
			return err
		}
	}
	if err := insertEntries(ctx, tx, p.Entries, 0); err != nil {
		return err
	}
	if err := writeState(ctx, tx, p.Vectorizer); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace: commit: %w", err)
	}
	return nil
}

// Append adds one document and its entries after the existing ones.
func (s *SQLiteStore) Append(ctx context.Context, doc rag.Document, entries []rag.Entry, vs *index.VectorizerState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM chunks`).Scan(&next); err != nil {
		return fmt.Errorf("store: append: next position: %w", err)
	}
	if err := insertDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := insertEntries(ctx, tx, entries, next); err != nil {
		return err
	}
	if vs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectorizer_state`); err != nil {
			return fmt.Errorf("store: append: clear state: %w", err)
		}
		if err := writeState(ctx, tx, vs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append: commit: %w", err)
	}
	return nil
}

func insertDocument(ctx context.Context, tx *sql.Tx, d rag.Document) error {
	const q = `INSERT INTO documents (id, source, content, metadata, ingested_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, d.ID, d.Source, d.Text, encodeMetadata(d.Metadata), d.IngestedAt.UnixMilli()); err != nil {
		return fmt.Errorf("store: insert document %s: %w", d.ID, err)
	}
	return nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []rag.Entry, position int) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, source, seq, position, content, metadata, dim, vector) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		_, err := stmt.ExecContext(ctx, e.ID, e.DocumentID, e.Source, e.Seq, position+i, e.Text,
			encodeMetadata(e.Metadata), len(e.Vector), encodeVector(e.Vector))
		if err != nil {
			return fmt.Errorf("store: insert chunk %s: %w", e.ID, err)
		}
	}
	return nil
}

func writeState(ctx context.Context, tx *sql.Tx, vs *index.VectorizerState) error {
	if vs == nil {
		return nil
	}
	const q = `INSERT INTO vectorizer_state (singleton, kind, dim, state) VALUES (1, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, vs.Kind, vs.Dimension, vs.Data); err != nil {
		return fmt.Errorf("store: write vectorizer state: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// decodeVector unpacks a blob written by encodeVector. It returns nil when
// the blob length does not match dim.
func decodeVector(blob []byte, dim int) []float32 {
	if dim <= 0 || len(blob) != 4*dim {
		return nil
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return v
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMetadata(s string) map[string]string {
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}
