package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lorekeep/lorekeep/internal/search"
)

// SearchInput is the input schema for the search_semantic tool.
type SearchInput struct {
	Query             string  `json:"query" jsonschema:"the natural-language query to search the library with"`
	Limit             int     `json:"limit,omitempty" jsonschema:"maximum number of hits, default 10, capped at 100"`
	DistanceThreshold float64 `json:"distance_threshold,omitempty" jsonschema:"drop hits with cosine distance above this, default from config, -1 disables"`
}

// SearchOutput is the output schema for the search_semantic tool.
type SearchOutput struct {
	Hits  []HitOutput `json:"hits"`
	Count int         `json:"count"`
}

// HitOutput is one search hit.
type HitOutput struct {
	ChunkID  int64   `json:"chunk_id"`
	Distance float64 `json:"distance"`
	Path     string  `json:"path"`
	Title    string  `json:"title"`
	Ordinal  int     `json:"ordinal"`
	Content  string  `json:"content"`
}

// FetchInput is the input schema for the docs_fetch tool.
type FetchInput struct {
	Path string `json:"path" jsonschema:"library-relative path of the document to fetch"`
}

// FetchByHitInput is the input schema for the docs_fetch_by_hit tool.
type FetchByHitInput struct {
	ChunkID int64 `json:"chunk_id" jsonschema:"chunk id from a search hit whose owning document to fetch"`
}

// DocumentOutput is a full document.
type DocumentOutput struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Fingerprint string `json:"fingerprint"`
	SizeBytes   int64  `json:"size_bytes"`
	ModifiedAt  string `json:"modified_at"`
	IndexedAt   string `json:"indexed_at"`
}

// RebuildInput is the input schema for the index_rebuild tool (no parameters).
type RebuildInput struct{}

// UpdateInput is the input schema for the index_update tool (no parameters).
type UpdateInput struct{}

// SummaryOutput reports an indexing run.
type SummaryOutput struct {
	RunID        string          `json:"run_id"`
	Mode         string          `json:"mode"`
	DurationMs   int64           `json:"duration_ms"`
	FilesScanned int             `json:"files_scanned"`
	FilesSkipped int             `json:"files_skipped"`
	Added        int             `json:"added"`
	Modified     int             `json:"modified"`
	Removed      int             `json:"removed"`
	Unchanged    int             `json:"unchanged"`
	Indexed      int             `json:"indexed"`
	Chunks       int             `json:"chunks"`
	Vectors      int             `json:"vectors"`
	Failures     []FailureOutput `json:"failures,omitempty"`
}

// FailureOutput is one document that could not be indexed.
type FailureOutput struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// PullAllInput is the input schema for the repos_pull_all tool (no parameters).
type PullAllInput struct{}

// PullAllOutput reports the sync outcome per configured repo.
type PullAllOutput struct {
	Results []PullResultOutput `json:"results"`
}

// PullResultOutput is one repo's sync outcome.
type PullResultOutput struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Updated    bool   `json:"updated"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// StatusInput is the input schema for the system_status tool (no parameters).
type StatusInput struct{}

// StatusOutput reports index statistics and health.
type StatusOutput struct {
	Version           string   `json:"version"`
	Documents         int      `json:"documents"`
	Chunks            int      `json:"chunks"`
	Images            int      `json:"images"`
	LastIndexed       string   `json:"last_indexed,omitempty"`
	VectorBackend     string   `json:"vector_backend"`
	VectorCount       int      `json:"vector_count"`
	VectorDimensions  int      `json:"vector_dimensions"`
	EmbedderModel     string   `json:"embedder_model"`
	EmbedderAvailable bool     `json:"embedder_available"`
	Healthy           bool     `json:"healthy"`
	Problems          []string `json:"problems,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_semantic",
		Description: "Search the indexed markdown library by meaning. Returns the most relevant chunks with their document path, title, and cosine distance. Use docs_fetch_by_hit with a hit's chunk_id to read the full document.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "docs_fetch",
		Description: "Fetch a full document by its library-relative path, as returned in search hits.",
	}, s.handleFetch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "docs_fetch_by_hit",
		Description: "Fetch the full document that owns a search hit, by the hit's chunk_id.",
	}, s.handleFetchByHit)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_rebuild",
		Description: "Rebuild the index from scratch: drops all indexed state and reindexes every document. Use after changing embedding model or when the index is corrupt.",
	}, s.handleRebuild)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_update",
		Description: "Incrementally update the index: only added, modified, and removed documents are touched. Cheap when nothing changed.",
	}, s.handleUpdate)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "repos_pull_all",
		Description: "Clone or pull all configured git sources under the library root. Run index_update afterwards to pick up new content.",
	}, s.handlePullAll)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "system_status",
		Description: "Report index statistics, vector backend, embedder model, and health. Use to verify the index is ready before searching.",
	}, s.handleStatus)

	s.logger.Info("mcp_tools_registered", "count", 7)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}
	if input.Limit < 0 {
		return nil, SearchOutput{}, NewInvalidParamsError("limit must not be negative")
	}

	hits, err := s.engine.Search(ctx, input.Query, search.Options{
		Limit:             input.Limit,
		DistanceThreshold: input.DistanceThreshold,
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	return nil, toSearchOutput(hits), nil
}

func (s *Server) handleFetch(ctx context.Context, _ *mcp.CallToolRequest, input FetchInput) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.engine.FetchDocument(ctx, input.Path)
	if err != nil {
		return nil, DocumentOutput{}, MapError(err)
	}
	return nil, toDocumentOutput(doc), nil
}

func (s *Server) handleFetchByHit(ctx context.Context, _ *mcp.CallToolRequest, input FetchByHitInput) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.engine.FetchByHit(ctx, input.ChunkID)
	if err != nil {
		return nil, DocumentOutput{}, MapError(err)
	}
	return nil, toDocumentOutput(doc), nil
}

func (s *Server) handleRebuild(ctx context.Context, _ *mcp.CallToolRequest, _ RebuildInput) (*mcp.CallToolResult, SummaryOutput, error) {
	sum, err := s.indexer.Rebuild(ctx)
	if err != nil {
		return nil, SummaryOutput{}, MapError(err)
	}
	return nil, toSummaryOutput(sum), nil
}

func (s *Server) handleUpdate(ctx context.Context, _ *mcp.CallToolRequest, _ UpdateInput) (*mcp.CallToolResult, SummaryOutput, error) {
	sum, err := s.indexer.Update(ctx)
	if err != nil {
		return nil, SummaryOutput{}, MapError(err)
	}
	return nil, toSummaryOutput(sum), nil
}

func (s *Server) handlePullAll(ctx context.Context, _ *mcp.CallToolRequest, _ PullAllInput) (*mcp.CallToolResult, PullAllOutput, error) {
	if s.repos == nil || s.repos.Count() == 0 {
		return nil, PullAllOutput{Results: []PullResultOutput{}}, nil
	}

	results, err := s.repos.PullAll(ctx)
	if err != nil {
		return nil, PullAllOutput{}, MapError(err)
	}
	return nil, toPullAllOutput(results), nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	st, err := s.engine.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}
	return nil, toStatusOutput(st), nil
}
