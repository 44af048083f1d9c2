// Package mcp exposes workflow execution and outline rendering as Model
// Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	workflow "github.com/delta5-hq/d5-sub001"
	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Executor runs one request against a stored workflow.
type Executor interface {
	Execute(ctx context.Context, req domain.Request) (*domain.Response, error)
}

// Workflows reads stored documents.
type Workflows interface {
	Load(ctx context.Context, workflowID string) (*domain.Snapshot, error)
	List(ctx context.Context) ([]string, error)
}

// ExecuteArgs are the arguments of the execute_command tool.
type ExecuteArgs struct {
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id"`
	QueryType  string `json:"query_type,omitempty"`
	Context    string `json:"context,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

// ExecuteResult summarizes one execution.
type ExecuteResult struct {
	QueryType    domain.QueryType `json:"query_type" jsonschema_description:"The command that ran"`
	NodesChanged []string         `json:"nodes_changed" jsonschema_description:"Ids of the nodes created or updated, in order"`
	Outline      string           `json:"outline" jsonschema_description:"The executed node and its latest output as an indented outline"`
}

// RenderArgs are the arguments of the render_outline tool.
type RenderArgs struct {
	WorkflowID     string `json:"workflow_id"`
	NodeID         string `json:"node_id,omitempty"`
	UseCommand     bool   `json:"use_command,omitempty"`
	IncludePrompts bool   `json:"include_prompts,omitempty"`
	FoldEdges      bool   `json:"fold_edges,omitempty"`
}

// RenderResult carries rendered outline text.
type RenderResult struct {
	Text string `json:"text" jsonschema_description:"The resolved outline"`
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	exec      Executor
	workflows Workflows
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server.
func NewServer(exec Executor, workflows Workflows, opts ...Option) *Server {
	s := &Server{
		exec:      exec,
		workflows: workflows,
		mcpServer: server.NewMCPServer("workflow-mcp", strings.TrimSpace(workflow.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("execute_command",
		mcp.WithDescription("Run the command recorded on a node of a stored workflow and persist the result."),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Stored workflow id")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to execute")),
		mcp.WithString("query_type", mcp.Description("Command to run; inferred from the node when omitted")),
		mcp.WithString("context", mcp.Description("Text prepended to every prompt")),
		mcp.WithString("prompt", mcp.Description("Extra prompt text")),
		mcp.WithOutputSchema[ExecuteResult](),
	), mcp.NewStructuredToolHandler(s.handleExecute))

	s.mcpServer.AddTool(mcp.NewTool("render_outline",
		mcp.WithDescription("Resolve references and render a node of a stored workflow as an indented outline."),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Stored workflow id")),
		mcp.WithString("node_id", mcp.Description("Node to render; every root when omitted")),
		mcp.WithBoolean("use_command", mcp.Description("Render recorded commands instead of titles")),
		mcp.WithBoolean("include_prompts", mcp.Description("Include the output of the last run")),
		mcp.WithBoolean("fold_edges", mcp.Description("Inline edge targets after their source")),
		mcp.WithOutputSchema[RenderResult](),
	), mcp.NewStructuredToolHandler(s.handleRender))

	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List the stored workflow ids."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.workflows.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		data, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest, args ExecuteArgs) (ExecuteResult, error) {
	if args.WorkflowID == "" || args.NodeID == "" {
		return ExecuteResult{}, errors.New("workflow_id and node_id are required")
	}
	snap, err := s.workflows.Load(ctx, args.WorkflowID)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("load failed: %w", err)
	}
	cell, ok := snap.Nodes[args.NodeID]
	if !ok {
		return ExecuteResult{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, args.NodeID)
	}

	resp, err := s.exec.Execute(ctx, domain.Request{
		QueryType:  domain.QueryType(args.QueryType),
		Cell:       cell,
		Context:    args.Context,
		Prompt:     args.Prompt,
		WorkflowID: args.WorkflowID,
	})
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("execute failed: %w", err)
	}

	outline, err := workflow.RenderOutline(&domain.Snapshot{
		Nodes: resp.WorkflowNodes,
		Edges: resp.WorkflowEdges,
	}, args.NodeID, workflow.RenderOptions{IncludePrompts: true})
	if err != nil {
		s.logger.Warn("mcp: outline render failed", "workflow_id", args.WorkflowID, "err", err)
	}
	return ExecuteResult{
		QueryType:    resp.QueryType,
		NodesChanged: resp.ChangedNodeIDs(),
		Outline:      outline,
	}, nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest, args RenderArgs) (RenderResult, error) {
	snap, err := s.workflows.Load(ctx, args.WorkflowID)
	if err != nil {
		return RenderResult{}, fmt.Errorf("load failed: %w", err)
	}
	text, err := workflow.RenderOutline(snap, args.NodeID, workflow.RenderOptions{
		UseCommand:     args.UseCommand,
		IncludePrompts: args.IncludePrompts,
		FoldEdges:      args.FoldEdges,
	})
	if err != nil {
		return RenderResult{}, err
	}
	return RenderResult{Text: text}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate("workflow://{id}", "Stored workflow document",
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(request.Params.URI, "workflow://")
		snap, err := s.workflows.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow: %w", err)
		}
		data, _ := json.Marshal(snap)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
