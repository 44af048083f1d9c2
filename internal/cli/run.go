package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	workflow "github.com/delta5-hq/d5-sub001"
	"github.com/delta5-hq/d5-sub001/internal/presentation/graph"
	"github.com/delta5-hq/d5-sub001/internal/presentation/tui"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// Output formats of run and inspect.
const (
	OutputOutline  = "outline"
	OutputMarkdown = "markdown"
	OutputMermaid  = "mermaid"
	OutputJSON     = "json"
)

// ErrNoDocument is returned when neither a document file nor a workflow id is given.
var ErrNoDocument = errors.New("a document file or a workflow id is required")

// Executor runs one request.
type Executor interface {
	Execute(ctx context.Context, req domain.Request) (*domain.Response, error)
}

// Workflows reads stored documents.
type Workflows interface {
	Load(ctx context.Context, workflowID string) (*domain.Snapshot, error)
}

// RunOptions configures a single command execution.
type RunOptions struct {
	DocumentPath string
	WorkflowID   string
	NodeID       string
	QueryType    string
	Context      string
	Prompt       string
	UserID       string
	Write        bool
	Output       string
}

// Run executes the command of one node and prints the result.
// With a document file the mutated document is written back when Write is
// set; with a workflow id the executor is expected to persist it.
func Run(ctx context.Context, exec Executor, workflows Workflows, opts RunOptions, w io.Writer) error {
	// 1. Load
	snap, err := loadDocument(ctx, workflows, opts.DocumentPath, opts.WorkflowID)
	if err != nil {
		return err
	}
	cell, ok := snap.Nodes[opts.NodeID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, opts.NodeID)
	}

	req := domain.Request{
		QueryType:  domain.QueryType(opts.QueryType),
		Cell:       cell,
		Context:    opts.Context,
		Prompt:     opts.Prompt,
		WorkflowID: opts.WorkflowID,
		UserID:     opts.UserID,
	}
	if opts.DocumentPath != "" {
		req.WorkflowNodes = snap.Nodes
		req.WorkflowEdges = snap.Edges
		req.WorkflowFiles = snap.Files
	}

	// 2. Execute
	resp, err := exec.Execute(ctx, req)
	if err != nil {
		return err
	}
	out := &domain.Snapshot{Nodes: resp.WorkflowNodes, Edges: resp.WorkflowEdges, Files: resp.WorkflowFiles}

	// 3. Persist
	if opts.Write && opts.DocumentPath != "" {
		if err := WriteDocument(opts.DocumentPath, out); err != nil {
			return err
		}
	}

	// 4. Print
	switch opts.Output {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case OutputMermaid:
		_, err := io.WriteString(w, graph.GenerateMermaid(out, &graph.Overlay{
			ChangedNodes: resp.ChangedNodeIDs(),
			Cell:         opts.NodeID,
		}))
		return err
	default:
		return printOutline(w, out, opts.NodeID, workflow.RenderOptions{IncludePrompts: true}, opts.Output)
	}
}

// InspectOptions configures the rendering of a document without executing it.
type InspectOptions struct {
	DocumentPath string
	WorkflowID   string
	NodeID       string
	UseCommand   bool
	FoldEdges    bool
	Output       string
}

// Inspect prints a document as an outline, markdown list or Mermaid chart.
func Inspect(ctx context.Context, workflows Workflows, opts InspectOptions, w io.Writer) error {
	snap, err := loadDocument(ctx, workflows, opts.DocumentPath, opts.WorkflowID)
	if err != nil {
		return err
	}
	switch opts.Output {
	case OutputMermaid:
		_, err := io.WriteString(w, graph.GenerateMermaid(snap, nil))
		return err
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	default:
		return printOutline(w, snap, opts.NodeID, workflow.RenderOptions{
			UseCommand:     opts.UseCommand,
			IncludePrompts: true,
			FoldEdges:      opts.FoldEdges,
		}, opts.Output)
	}
}

func loadDocument(ctx context.Context, workflows Workflows, path, workflowID string) (*domain.Snapshot, error) {
	switch {
	case path != "":
		return ReadDocument(path)
	case workflowID != "" && workflows != nil:
		return workflows.Load(ctx, workflowID)
	default:
		return nil, ErrNoDocument
	}
}

func printOutline(w io.Writer, snap *domain.Snapshot, nodeID string, opts workflow.RenderOptions, format string) error {
	text, err := workflow.RenderOutline(snap, nodeID, opts)
	if err != nil {
		return err
	}
	if format == OutputMarkdown {
		rendered, err := tui.NewRenderer()(tui.OutlineMarkdown(text))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, rendered)
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
