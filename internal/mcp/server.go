// Package mcp exposes folder ingestion, business dates and template
// rendering as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/proposal-builder/internal/config"
	"github.com/a3tai/proposal-builder/internal/descriptions"
	perrors "github.com/a3tai/proposal-builder/internal/errors"
	"github.com/a3tai/proposal-builder/internal/ingest"
	"github.com/a3tai/proposal-builder/internal/render"
	"github.com/a3tai/proposal-builder/internal/resolve"
	"github.com/a3tai/proposal-builder/internal/security"
)

// dateArgLayout is the layout of the optional "today" argument
const dateArgLayout = "2006-01-02"

// FolderIngestor scans a source folder
type FolderIngestor interface {
	ProcessFolder(ctx context.Context, dir string) (*ingest.Corpus, error)
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	guard     *security.RootGuard
	ingestor  FolderIngestor
	mcpServer *server.MCPServer
	logger    *slog.Logger
	now       func() time.Time
}

// NewServer creates a new MCP server instance. Folder arguments are
// confined to the guard's root.
func NewServer(cfg *config.Config, guard *security.RootGuard, ingestor FolderIngestor, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if guard == nil {
		return nil, fmt.Errorf("root guard cannot be nil")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		guard:     guard,
		ingestor:  ingestor,
		mcpServer: mcpServer,
		logger:    logger,
		now:       time.Now,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	ingestTool := mcp.NewTool(
		"proposal_ingest_folder",
		mcp.WithDescription(descriptions.IngestFolderDescription),
		mcp.WithString("folder",
			mcp.Required(),
			mcp.Description("Folder to ingest, absolute or relative to the served directory"),
		),
	)
	s.mcpServer.AddTool(ingestTool, s.handleIngestFolder)

	datesTool := mcp.NewTool(
		"proposal_business_dates",
		mcp.WithDescription(descriptions.BusinessDatesDescription),
		mcp.WithNumber("weeks",
			mcp.Required(),
			mcp.Description("Weeks from today until the auction ends (0 or more)"),
		),
		mcp.WithString("today",
			mcp.Description("Run date as YYYY-MM-DD (defaults to the current date)"),
		),
	)
	s.mcpServer.AddTool(datesTool, s.handleBusinessDates)

	renderTool := mcp.NewTool(
		"proposal_render_template",
		mcp.WithDescription(descriptions.RenderTemplateDescription),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Template text"),
		),
		mcp.WithString("values",
			mcp.Required(),
			mcp.Description("JSON object mapping field names to values"),
		),
	)
	s.mcpServer.AddTool(renderTool, s.handleRenderTemplate)

	infoTool := mcp.NewTool(
		"proposal_server_info",
		mcp.WithDescription(descriptions.ServerInfoDescription),
	)
	s.mcpServer.AddTool(infoTool, s.handleServerInfo)
}

// ingestResult is the JSON body of proposal_ingest_folder
type ingestResult struct {
	Folder    string              `json:"folder"`
	Documents []ingest.Document   `json:"documents"`
	Images    []string            `json:"images"`
	Errors    []perrors.FileError `json:"errors"`
	Summary   string              `json:"summary"`
	Corpus    string              `json:"corpus"`
}

func (s *Server) handleIngestFolder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder, err := request.RequireString("folder")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dir, err := s.guard.ResolveDir(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	corpus, err := s.ingestor.ProcessFolder(ctx, dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	col := perrors.NewErrorCollection()
	col.Append(corpus.Errors...)
	out := ingestResult{
		Folder:    dir,
		Documents: nonNil(corpus.Documents),
		Images:    nonNil(corpus.Images),
		Errors:    col.Entries(),
		Summary:   col.Summary(),
		Corpus:    corpus.Text,
	}
	s.logger.Info("mcp.ingest", "folder", dir, "documents", len(out.Documents), "errors", len(out.Errors))
	return jsonResult(out)
}

func (s *Server) handleBusinessDates(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	weeks, err := intArg(args, "weeks")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if weeks < 0 {
		return mcp.NewToolResultError("weeks must be 0 or more"), nil
	}

	today := s.now()
	if raw, ok := args["today"].(string); ok && strings.TrimSpace(raw) != "" {
		today, err = time.ParseInLocation(dateArgLayout, strings.TrimSpace(raw), time.Local)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("today must be YYYY-MM-DD: %v", err)), nil
		}
	}

	return jsonResult(resolve.BusinessDates(today, weeks).Fields())
}

func (s *Server) handleRenderTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	template, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("values")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("values must be a JSON object of strings: %v", err)), nil
	}

	res := render.Substitute(template, values)
	text := res.Text
	if len(res.Missing) > 0 {
		text += "\n\n---\nMissing fields: " + strings.Join(res.Missing, ", ")
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// Run serves MCP over stdio until the client disconnects
func (s *Server) Run(_ context.Context) error {
	s.logger.Info("mcp.serve", "transport", "stdio", "root", s.guard.Root())
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// intArg reads a whole number argument sent as a JSON number or a string
func intArg(args map[string]any, name string) (int, error) {
	switch v := args[name].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a whole number", name)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s must be a whole number", name)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("required argument %q not found", name)
	default:
		return 0, fmt.Errorf("%s must be a whole number", name)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
