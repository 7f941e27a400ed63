// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the test case backend as tools for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/casedeck/internal/apperr"
	"github.com/starford/casedeck/internal/models"
)

// RecordFormatURI identifies the record format resource.
const RecordFormatURI = "casedeck://record-format"

// Backend is the subset of the backend client the tools call.
type Backend interface {
	List(ctx context.Context, f models.Filters) ([]models.Record, error)
	Get(ctx context.Context, id int64) (*models.Record, error)
	Create(ctx context.Context, d models.Draft) (*models.Record, error)
	Update(ctx context.Context, id int64, d models.Draft) (*models.Record, error)
	Delete(ctx context.Context, id int64) error
}

// Server wraps the MCP server with test case tools.
type Server struct {
	mcp     *server.MCPServer
	backend Backend
	logger  *slog.Logger
}

// New creates a new MCP server with all test case tools registered.
func New(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{backend: backend, logger: logger}

	s.mcp = server.NewMCPServer(
		"Casedeck",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_test_cases",
		mcp.WithDescription("List test cases, optionally narrowed by a search term, priority and status. "+
			"Results keep the backend order (newest first)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("search", mcp.Description("Case-insensitive substring match on title or feature name")),
		mcp.WithString("priority", mcp.Description("Only records with this priority"), mcp.Enum(enum(models.Priorities)...)),
		mcp.WithString("status", mcp.Description("Only records with this status"), mcp.Enum(enum(models.Statuses)...)),
	), s.listTestCases)

	s.mcp.AddTool(mcp.NewTool("get_test_case",
		mcp.WithDescription("Read a single test case by numeric id."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id (the N in TC-N)"), mcp.Min(1)),
	), s.getTestCase)

	s.mcp.AddTool(mcp.NewTool("create_test_case",
		mcp.WithDescription("Create a new test case. Read the record format first via the "+
			RecordFormatURI+" resource."),
		mcp.WithString("feature_name", mcp.Required(), mcp.Description("Feature under test, at most 255 characters")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short title, at most 500 characters")),
		mcp.WithString("steps", mcp.Required(), mcp.Description("Steps to reproduce")),
		mcp.WithString("expected_result", mcp.Required(), mcp.Description("Expected outcome")),
		mcp.WithString("priority", mcp.Description("Defaults to Medium"), mcp.Enum(enum(models.Priorities)...)),
		mcp.WithString("status", mcp.Description("Defaults to Draft"), mcp.Enum(enum(models.Statuses)...)),
	), s.createTestCase)

	s.mcp.AddTool(mcp.NewTool("update_test_case",
		mcp.WithDescription("Update a test case. Omitted fields keep their current value; "+
			"the backend always receives the full record."),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id"), mcp.Min(1)),
		mcp.WithString("feature_name", mcp.Description("New feature name")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("steps", mcp.Description("New steps")),
		mcp.WithString("expected_result", mcp.Description("New expected result")),
		mcp.WithString("priority", mcp.Description("New priority"), mcp.Enum(enum(models.Priorities)...)),
		mcp.WithString("status", mcp.Description("New status"), mcp.Enum(enum(models.Statuses)...)),
	), s.updateTestCase)

	s.mcp.AddTool(mcp.NewTool("delete_test_case",
		mcp.WithDescription("Permanently delete a test case. This cannot be undone, so confirm must be true."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id"), mcp.Min(1)),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true to delete")),
	), s.deleteTestCase)

	s.mcp.AddTool(mcp.NewTool("test_case_stats",
		mcp.WithDescription("Count all test cases by status."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.testCaseStats)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource(RecordFormatURI, "Test Case Record Format",
			mcp.WithResourceDescription("Fields, limits and enumerations of a test case record."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
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

func (s *Server) listTestCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.Filters{
		Search:   req.GetString("search", ""),
		Priority: models.Priority(req.GetString("priority", "")),
		Status:   models.Status(req.GetString("status", "")),
	}
	if f.Priority != "" && !slices.Contains(models.Priorities, f.Priority) {
		return mcp.NewToolResultErrorf("unknown priority %q", f.Priority), nil
	}
	if f.Status != "" && !slices.Contains(models.Statuses, f.Status) {
		return mcp.NewToolResultErrorf("unknown status %q", f.Status), nil
	}

	records, err := s.backend.List(ctx, f)
	if err != nil {
		return s.failure("list", err), nil
	}
	return jsonResult(records)
}

func (s *Server) getTestCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.backend.Get(ctx, id)
	if err != nil {
		return s.failure("get", err), nil
	}
	return jsonResult(rec)
}

func (s *Server) createTestCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d := overlay(models.NewDraft(), req).Normalize()
	if err := d.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.backend.Create(ctx, d)
	if err != nil {
		return s.failure("create", err), nil
	}
	s.logger.Info("test case created", slog.Int64("id", rec.ID))
	return jsonResult(rec)
}

func (s *Server) updateTestCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cur, err := s.backend.Get(ctx, id)
	if err != nil {
		return s.failure("get", err), nil
	}

	d := overlay(cur.Draft(), req).Normalize()
	if err := d.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.backend.Update(ctx, id, d)
	if err != nil {
		return s.failure("update", err), nil
	}
	s.logger.Info("test case updated", slog.Int64("id", id))
	return jsonResult(rec)
}

func (s *Server) deleteTestCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	confirm, err := req.RequireBool("confirm")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !confirm {
		return mcp.NewToolResultError("not deleted: confirm must be true"), nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return s.failure("delete", err), nil
	}
	s.logger.Info("test case deleted", slog.Int64("id", id))
	return mcp.NewToolResultText(fmt.Sprintf("deleted: TC-%d", id)), nil
}

func (s *Server) testCaseStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.backend.List(ctx, models.Filters{})
	if err != nil {
		return s.failure("list", err), nil
	}
	return jsonResult(models.ComputeStats(records))
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RecordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}

// failure logs a backend error and turns it into a tool error result.
func (s *Server) failure(op string, err error) *mcp.CallToolResult {
	s.logger.Warn("backend call failed", slog.String("op", op), slog.String("error", err.Error()))
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("test case not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func requireID(req mcp.CallToolRequest) (int64, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return int64(id), nil
}

// overlay replaces the fields of d that req carries.
func overlay(d models.Draft, req mcp.CallToolRequest) models.Draft {
	d.FeatureName = req.GetString("feature_name", d.FeatureName)
	d.Title = req.GetString("title", d.Title)
	d.Steps = req.GetString("steps", d.Steps)
	d.ExpectedResult = req.GetString("expected_result", d.ExpectedResult)
	d.Priority = models.Priority(req.GetString("priority", string(d.Priority)))
	d.Status = models.Status(req.GetString("status", string(d.Status)))
	return d
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func enum[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
