// Package mcp exposes the pipeline's stored output over the Model Context
// Protocol: message search, segment lookup, and store statistics as tools
// on a stdio transport.
package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jbellard/chatseg/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string
}

// dbMu serializes tool calls that touch the database. mcp-go dispatches
// handlers on separate goroutines and SQLite supports one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all chatseg tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"chatseg",
		ver,
		server.WithToolCapabilities(false),
	)

	registerSearchTool(s, cfg.Store)
	registerSegmentTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	return s
}

// Serve runs the server on stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerSearchTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chatseg_search",
		mcp.WithDescription("Search normalized messages by contents substring. Returns full records, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Substring to search message contents for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := 10
		if v, err := req.RequireFloat("limit"); err == nil {
			limit = int(v)
			if limit > 50 {
				limit = 50
			}
		}

		records, err := st.SearchMessages(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(records, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSegmentTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chatseg_segment",
		mcp.WithDescription("Fetch one conversation segment by id, or list segments for a date."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("segment_id",
			mcp.Description("Segment identifier (e.g. segment_0001)"),
		),
		mcp.WithString("date",
			mcp.Description("List segments for a UTC date (YYYY-MM-DD); ignored when segment_id is given"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum segments when listing (default: 20)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		if id, err := req.RequireString("segment_id"); err == nil && id != "" {
			seg, err := st.GetSegment(ctx, id)
			if errors.Is(err, sql.ErrNoRows) {
				return mcp.NewToolResultError(fmt.Sprintf("segment %s not found", id)), nil
			}
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("segment error: %v", err)), nil
			}
			data, _ := json.MarshalIndent(seg, "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		}

		date := ""
		if d, err := req.RequireString("date"); err == nil {
			date = d
		}
		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
			limit = int(v)
		}

		segments, err := st.ListSegments(ctx, date, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("segment list error: %v", err)), nil
		}
		data, _ := json.MarshalIndent(segments, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chatseg_stats",
		mcp.WithDescription("Report store statistics: runs, messages, segments, summaries, database size."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}
		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
