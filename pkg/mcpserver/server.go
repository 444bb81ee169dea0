package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/elonfeng/patternradar/internal/store"
	"github.com/elonfeng/patternradar/pkg/dashboard"
)

// Server exposes the dashboard to chat assistants over MCP.
type Server struct {
	svc       *dashboard.Service
	window    time.Duration
	mcpServer *server.MCPServer
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

const (
	toolDashboard   = "pattern_dashboard"
	toolInteraction = "record_interaction"
)

// NewServer creates an MCP server with the pattern tools registered.
func NewServer(svc *dashboard.Service, window time.Duration, version string) *Server {
	s := &Server{svc: svc, window: window}
	s.mcpServer = server.NewMCPServer(
		"patternradar",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes one raw JSON-RPC message.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: toolDashboard, Description: "Build the post performance dashboard for a user"},
		{Name: toolInteraction, Description: "Count one assistant interaction toward the user's learning phase"},
	}
}

// CallTool executes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case toolDashboard:
		return s.handleDashboard(ctx, args)
	case toolInteraction:
		return s.handleInteraction(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(toolDashboard,
		mcp.WithDescription("Build the post performance dashboard for a user: per-post signals tagged gold, gray, red or neutral, tag summaries, top hashtags, learning phase and achievements."),
		mcp.WithString("user_id",
			mcp.Description("The user whose posts are analyzed"),
			mcp.Required(),
		),
		mcp.WithString("window",
			mcp.Description("Publish-time window such as 30d, 2w, 72h or all (default: configured window)"),
		),
	), s.mcpHandleDashboard)

	s.mcpServer.AddTool(mcp.NewTool(toolInteraction,
		mcp.WithDescription("Count one assistant interaction toward the user's learning phase. Retries with the same idempotency_key are not counted twice."),
		mcp.WithString("user_id",
			mcp.Description("The user who interacted"),
			mcp.Required(),
		),
		mcp.WithString("idempotency_key",
			mcp.Description("Unique key for this interaction (default: generated)"),
		),
		mcp.WithBoolean("rag_hit",
			mcp.Description("Whether retrieved context was used in the answer"),
		),
	), s.mcpHandleInteraction)
}

func (s *Server) mcpHandleDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleDashboard(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func (s *Server) mcpHandleInteraction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.handleInteraction(ctx, req.GetArguments())
	if err != nil {
		return nil, err
	}
	return toMCPResult(result), nil
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
		IsError: r.IsError,
	}
}

func (s *Server) handleDashboard(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return &ToolResult{Content: "user_id is required", IsError: true}, nil
	}
	windowArg, _ := args["window"].(string)
	window, err := dashboard.ParseWindow(windowArg, s.window)
	if err != nil {
		return &ToolResult{Content: err.Error(), IsError: true}, nil
	}

	payload, err := s.svc.Build(ctx, userID, window)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("build dashboard: %v", err), IsError: true}, nil
	}
	return jsonResult(payload)
}

func (s *Server) handleInteraction(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return &ToolResult{Content: "user_id is required", IsError: true}, nil
	}
	key, _ := args["idempotency_key"].(string)
	ragHit, _ := args["rag_hit"].(bool)

	state, counted, err := s.svc.RecordInteraction(ctx, userID, key, ragHit)
	if errors.Is(err, store.ErrInvalidInput) {
		return &ToolResult{Content: err.Error(), IsError: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"counted": counted, "learning": state})
}

func jsonResult(v any) (*ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &ToolResult{Content: string(data)}, nil
}
