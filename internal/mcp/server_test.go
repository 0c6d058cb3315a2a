package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/index"
	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/rag"
)

type mockService struct {
	ans       *answer.Answer
	err       error
	ingested  []string
	addStats  index.AddStats
	stats     pipeline.Stats
	questions []string
}

func (m *mockService) Ask(_ context.Context, q string) (*answer.Answer, error) {
	m.questions = append(m.questions, q)
	return m.ans, m.err
}

func (m *mockService) Ingest(_ context.Context, text, _ string) (index.AddStats, error) {
	m.ingested = append(m.ingested, text)
	return m.addStats, m.err
}

func (m *mockService) Stats() pipeline.Stats { return m.stats }

func TestNewServer(t *testing.T) {
	t.Run("nil service returns error", func(t *testing.T) {
		s, err := NewServer(nil)
		require.ErrorIs(t, err, ErrMissingService)
		assert.Nil(t, s)
	})

	t.Run("valid service creates server", func(t *testing.T) {
		s, err := NewServer(&mockService{})
		require.NoError(t, err)
		assert.NotNil(t, s)
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("maps answer and passages", func(t *testing.T) {
		svc := &mockService{ans: &answer.Answer{
			Question: "What internet speeds do you offer?",
			Answer:   "Based on the documentation: up to 1 Gbps fiber.",
			Sources:  []string{"https://www.ziggo.nl/internet"},
			Passages: []rag.Result{{
				Chunk: rag.Chunk{Source: "https://www.ziggo.nl/internet", Text: "up to 1 Gbps fiber"},
				Score: 0.82,
			}},
			Success: true,
			Mode:    answer.ModeExtractive,
		}}
		s, err := NewServer(svc)
		require.NoError(t, err)

		_, out, err := s.handleAsk(ctx, nil, AskInput{Question: "What internet speeds do you offer?"})
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, "extractive", out.Mode)
		assert.Equal(t, []string{"https://www.ziggo.nl/internet"}, out.Sources)
		require.Len(t, out.Passages, 1)
		assert.Equal(t, 0.82, out.Passages[0].Score)
		assert.Equal(t, []string{"What internet speeds do you offer?"}, svc.questions)
	})

	t.Run("propagates pipeline errors", func(t *testing.T) {
		s, err := NewServer(&mockService{err: rag.ErrNotReady})
		require.NoError(t, err)

		_, _, err = s.handleAsk(ctx, nil, AskInput{Question: "hi"})
		require.ErrorIs(t, err, rag.ErrNotReady)
	})
}

func TestServer_handleIngestAndStats(t *testing.T) {
	ctx := context.Background()
	svc := &mockService{
		addStats: index.AddStats{DocumentID: "doc-1", Chunks: 2},
	}
	svc.stats.NumDocuments = 1
	svc.stats.Status = pipeline.StatusReady
	s, err := NewServer(svc)
	require.NoError(t, err)

	_, st, err := s.handleIngest(ctx, nil, IngestInput{Text: "Pay by direct debit.", Source: "billing"})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Chunks)
	assert.Equal(t, []string{"Pay by direct debit."}, svc.ingested)

	_, stats, err := s.handleStats(ctx, nil, StatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NumDocuments)
	assert.Equal(t, "READY", stats.Status)
	assert.Empty(t, stats.BuiltAt)
}
