// Package mcp exposes the support pipeline to AI assistants over the Model
// Context Protocol, so a client such as an IDE agent can ask support
// questions and add documents without going through the HTTP API.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/supportai-go/internal/answer"
	"github.com/54b3r/supportai-go/internal/index"
	"github.com/54b3r/supportai-go/internal/pipeline"
	"github.com/54b3r/supportai-go/internal/version"
)

// ErrMissingService is returned when no pipeline is provided.
var ErrMissingService = errors.New("mcp: pipeline is required")

// Service is the pipeline surface exposed as tools. *pipeline.Pipeline
// implements it.
type Service interface {
	Ask(ctx context.Context, question string) (*answer.Answer, error)
	Ingest(ctx context.Context, text, source string) (index.AddStats, error)
	Stats() pipeline.Stats
}

// Server is the MCP server for supportai.
type Server struct {
	svc    Service
	server *mcp.Server
}

// NewServer returns a Server with every tool registered.
func NewServer(svc Service) (*Server, error) {
	if svc == nil {
		return nil, ErrMissingService
	}
	s := &Server{
		svc:    svc,
		server: mcp.NewServer(&mcp.Implementation{Name: "supportai", Version: version.Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
