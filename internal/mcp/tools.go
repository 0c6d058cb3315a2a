package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/supportai-go/internal/index"
)

// AskInput is the input schema for the ask_support tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the customer's question"`
}

// AskOutput is the output schema for the ask_support tool.
type AskOutput struct {
	Answer   string        `json:"answer"`
	Sources  []string      `json:"sources"`
	Mode     string        `json:"mode"`
	Success  bool          `json:"success"`
	Passages []PassageInfo `json:"passages,omitempty"`
}

// PassageInfo is one retrieved passage in an AskOutput.
type PassageInfo struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	Text   string `json:"text" jsonschema:"the document text to add"`
	Source string `json:"source,omitempty" jsonschema:"where the text came from, usually a page URL"`
}

// StatsInput is the (empty) input schema for the index_stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the index_stats tool.
type StatsOutput struct {
	Status       string `json:"status"`
	NumDocuments int    `json:"num_documents"`
	NumChunks    int    `json:"num_chunks"`
	Dimension    int    `json:"dimension"`
	Vectorizer   string `json:"vectorizer"`
	// BuiltAt is RFC3339, empty before the first build.
	BuiltAt string `json:"built_at,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_support",
		Description: "Answer a customer-support question from the indexed support pages, with sources",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Add a support document to the index",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report document and chunk counts, vector dimension and status of the support index",
	}, s.handleStats)
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	ans, err := s.svc.Ask(ctx, in.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}
	out := AskOutput{
		Answer:  ans.Answer,
		Sources: ans.Sources,
		Mode:    string(ans.Mode),
		Success: ans.Success,
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	for _, r := range ans.Passages {
		out.Passages = append(out.Passages, PassageInfo{Source: r.Chunk.Source, Score: r.Score, Text: r.Chunk.Text})
	}
	return nil, out, nil
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, in IngestInput) (*mcp.CallToolResult, index.AddStats, error) {
	st, err := s.svc.Ingest(ctx, in.Text, in.Source)
	if err != nil {
		return nil, index.AddStats{}, err
	}
	return nil, st, nil
}

func (s *Server) handleStats(_ context.Context, _ *mcp.CallToolRequest, _ StatsInput) (*mcp.CallToolResult, StatsOutput, error) {
	st := s.svc.Stats()
	out := StatsOutput{
		Status:       string(st.Status),
		NumDocuments: st.NumDocuments,
		NumChunks:    st.NumChunks,
		Dimension:    st.Dimension,
		Vectorizer:   st.Vectorizer,
	}
	if !st.BuiltAt.IsZero() {
		out.BuiltAt = st.BuiltAt.UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}
