// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the ticker feed to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ticker/internal/feedservice"
	"github.com/starford/ticker/internal/media"
	"github.com/starford/ticker/internal/parser"
)

const contractURI = "ticker://item-format"

// Server wraps the MCP server with the ticker tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *feedservice.Service
	files *media.Store
}

// New creates a new MCP server with all ticker tools registered.
// files may be nil, which leaves out upload_media.
func New(svc *feedservice.Service, files *media.Store) *Server {
	s := &Server{svc: svc, files: files}

	s.mcp = server.NewMCPServer(
		"Ticker",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("current_feed",
		mcp.WithDescription("Current feed window: items grouped by day (newest first) and category, "+
			"with rendered summaries."),
		mcp.WithString("date", mcp.Description("Reference date YYYY-MM-DD (default today)")),
		mcp.WithNumber("days", mcp.Description("Lookback in days (default from configuration)")),
		mcp.WithString("categories", mcp.Description("Comma-separated category ids to restrict to")),
	), s.currentFeed)

	s.mcp.AddTool(mcp.NewTool("render_item",
		mcp.WithDescription("Render one item: headline, category, rendered summary HTML and references."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("code", mcp.Description("Share link code to carry into item links")),
	), s.renderItem)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("The category tree with ids, paths and depths."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("issue_share_link",
		mcp.WithDescription("Issue a short share link for a window of the feed."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Last day of the window, YYYY-MM-DD")),
		mcp.WithNumber("days", mcp.Description("Lookback in days (default 0, the day only)")),
		mcp.WithNumber("valid_days", mcp.Required(), mcp.Description("How many days the link stays valid")),
	), s.issueShareLink)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a ticker item from a source document. "+
			"Content MUST follow the item format contract; read it first via the "+
			"get_item_contract tool or the "+contractURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Source document: YAML frontmatter and HTML summary")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("get_item_contract",
		mcp.WithDescription("Returns the item source document contract. "+
			"Call this before creating items to ensure correct structure."),
	), s.getItemContract)

	if files != nil {
		s.mcp.AddTool(mcp.NewTool("upload_media",
			mcp.WithDescription("Store a file for file references, from an http(s) URL or a base64 data URI."),
			mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI of the file")),
			mcp.WithString("filename", mcp.Description("Target file name (default derived from the URL)")),
		), s.uploadMedia)
	}

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Item Format Contract",
			mcp.WithResourceDescription("Source document format every ticker item must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) parseDate(v string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, v, s.svc.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %q", v)
	}
	return d, nil
}

func parseIDs(v string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid category id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Server) currentFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var q feedservice.FeedQuery
	if v := req.GetString("date", ""); v != "" {
		d, err := s.parseDate(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		q.Date = d
	}
	if _, ok := req.GetArguments()["days"]; ok {
		days := req.GetInt("days", 0)
		q.Days = &days
	}
	ids, err := parseIDs(req.GetString("categories", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q.Categories = ids

	view, err := s.svc.Feed(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(view)
}

func (s *Server) renderItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Item(ctx, int64(id), req.GetString("code", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item)
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.svc.Categories(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(nodes)
}

func (s *Server) issueShareLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := s.parseDate(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	validDays, err := req.RequireInt("valid_days")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if validDays < 1 {
		return mcp.NewToolResultError("valid_days must be at least 1"), nil
	}

	link, err := s.svc.IssueShareLink(ctx, date, req.GetInt("days", 0), time.Duration(validDays)*24*time.Hour)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(link)
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := parser.Parse([]byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.CreateItem(ctx, doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item)
}

func (s *Server) getItemContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ItemFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ItemFormatContract,
		},
	}, nil
}
