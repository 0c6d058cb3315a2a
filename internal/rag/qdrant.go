package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for the optional Qdrant mirror.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: support_docs).
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// BatchSize is the number of points per upsert call (default: 256).
	BatchSize int
}

// QdrantMirror replicates committed index snapshots into a Qdrant collection
// so external tools can query the same vectors. The in-process index stays
// authoritative; the mirror is rewritten wholesale on every Sync.
type QdrantMirror struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this mirror.
	cfg *QdrantConfig
}

// NewQdrantMirror creates a QdrantMirror. The collection is created lazily
// on the first Sync, once the snapshot dimension is known.
func NewQdrantMirror(cfg *QdrantConfig) (*QdrantMirror, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "support_docs"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantMirror{client: client, cfg: cfg}, nil
}

// Client returns the underlying Qdrant client, used by the readiness pinger.
func (m *QdrantMirror) Client() *qdrant.Client {
	return m.client
}

// Collection returns the mirrored collection name.
func (m *QdrantMirror) Collection() string {
	return m.cfg.Collection
}

// Sync drops and recreates the collection with dimension dim and upserts
// every entry. An empty snapshot leaves an empty collection behind.
func (m *QdrantMirror) Sync(ctx context.Context, entries []Entry, dim int) error {
	exists, err := m.client.CollectionExists(ctx, m.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := m.client.DeleteCollection(ctx, m.cfg.Collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", m.cfg.Collection, err)
		}
	}
	if dim <= 0 {
		return nil
	}

	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", m.cfg.Collection, err)
	}

	for start := 0; start < len(entries); start += m.cfg.BatchSize {
		end := min(start+m.cfg.BatchSize, len(entries))
		if err := m.upsert(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// upsert writes one batch of entries as Qdrant points.
func (m *QdrantMirror) upsert(ctx context.Context, batch []Entry) error {
	points := make([]*qdrant.PointStruct, 0, len(batch))
	for _, e := range batch {
		payload := map[string]any{
			"content":     e.Text,
			"source":      e.Source,
			"document_id": e.DocumentID,
			"seq":         int64(e.Seq),
		}
		for k, v := range e.Metadata {
			if _, taken := payload[k]; !taken {
				payload[k] = v
			}
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(e.ID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (m *QdrantMirror) Close() error {
	return m.client.Close()
}
