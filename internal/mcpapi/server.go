// Package mcpapi exposes the query service over the Model Context Protocol,
// so AI assistants can search, index, and manage a user's browsing history
// index as a set of tools.
package mcpapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/historian-labs/historian/internal/search"
)

// Server bridges AI clients to the history search service over MCP.
type Server struct {
	mcp     *mcp.Server
	service *search.Service
	logger  *slog.Logger
}

// ToolInfo describes a registered tool, for diagnostics and tests.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates an MCP server backed by svc. version is reported in the
// MCP implementation handshake.
func NewServer(svc *search.Service, version string) (*Server, error) {
	if svc == nil {
		return nil, errors.New("search service is required")
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		service: svc,
		logger:  slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "historian",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the tools this server registers.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "search", Description: "Search the user's browsing history by meaning and keyword."},
		{Name: "index", Description: "Add or refresh a page's content in the history index."},
		{Name: "delete", Description: "Remove a single page from the history index."},
		{Name: "clear", Description: "Remove every page from the history index."},
		{Name: "stats", Description: "Report index size and coverage."},
	}
}

// registerTools registers the search/index/delete/clear/stats tool set.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search the user's browsing history. Finds pages by meaning (semantic), exact terms (keyword), or both (hybrid, the default). Returns the most relevant pages with a confidence band per result.",
	}, s.handleSearch)
	s.logger.Debug("registered tool", slog.String("name", "search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index",
		Description: "Index a page's content so it becomes searchable. Re-indexing the same URL refreshes its content and counts as another visit.",
	}, s.handleIndex)
	s.logger.Debug("registered tool", slog.String("name", "index"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete",
		Description: "Remove a single indexed page by its id.",
	}, s.handleDelete)
	s.logger.Debug("registered tool", slog.String("name", "delete"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear",
		Description: "Remove every indexed page. Irreversible.",
	}, s.handleClear)
	s.logger.Debug("registered tool", slog.String("name", "clear"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Report how many pages are indexed and the approximate index size.",
	}, s.handleStats)
	s.logger.Debug("registered tool", slog.String("name", "stats"))

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}

	reqID := uuid.New().String()
	s.logger.Debug("handling search request", slog.String("request_id", reqID), slog.String("query", input.Query))

	opts := search.DefaultOptions()
	if input.Limit > 0 {
		opts.K = input.Limit
	}
	if input.Mode != "" {
		opts.Mode = search.Mode(input.Mode)
	}
	if input.MinSimilarity > 0 {
		opts.MinSimilarity = input.MinSimilarity
	}

	results, err := s.service.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultOutput{
			URL:          r.Page.URL,
			Title:        r.Page.Title,
			Snippet:      r.TopSnippet,
			Relevance:    r.Relevance,
			Confidence:   string(r.Confidence),
			MatchedTerms: r.MatchedTerms,
			VisitedAtMS:  r.Page.Timestamp,
		})
	}
	return nil, out, nil
}

func (s *Server) handleIndex(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (
	*mcp.CallToolResult,
	IndexOutput,
	error,
) {
	if input.URL == "" {
		return nil, IndexOutput{}, NewInvalidParamsError("url is required")
	}
	if input.Content == "" {
		return nil, IndexOutput{}, NewInvalidParamsError("content is required")
	}

	reqID := uuid.New().String()
	s.logger.Debug("handling index request", slog.String("request_id", reqID), slog.String("url", input.URL))

	out, err := s.service.Index(ctx, search.IndexInput{
		URL:          input.URL,
		Title:        input.Title,
		Content:      input.Content,
		VisitedAtMS:  input.VisitedAtMS,
		DwellTimeSec: input.DwellTimeSec,
	})
	if err != nil {
		return nil, IndexOutput{}, mapError(err)
	}

	return nil, IndexOutput{ID: out.ID, IndexedPassages: out.IndexedPassages}, nil
}

func (s *Server) handleDelete(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (
	*mcp.CallToolResult,
	DeleteOutput,
	error,
) {
	if input.ID == "" {
		return nil, DeleteOutput{}, NewInvalidParamsError("id is required")
	}
	if err := s.service.Delete(ctx, input.ID); err != nil {
		return nil, DeleteOutput{}, mapError(err)
	}
	return nil, DeleteOutput{}, nil
}

func (s *Server) handleClear(ctx context.Context, _ *mcp.CallToolRequest, _ ClearInput) (
	*mcp.CallToolResult,
	ClearOutput,
	error,
) {
	if err := s.service.Clear(ctx); err != nil {
		return nil, ClearOutput{}, mapError(err)
	}
	return nil, ClearOutput{}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	StatsOutput,
	error,
) {
	stats, err := s.service.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, mapError(err)
	}
	return nil, StatsOutput{
		TotalPages:     stats.TotalPages,
		StoreSizeBytes: stats.SizeBytes,
		OldestVisitMS:  stats.OldestTS,
		NewestVisitMS:  stats.NewestTS,
	}, nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}
