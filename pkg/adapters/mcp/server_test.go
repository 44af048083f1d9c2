package mcp

import (
	"context"
	"testing"

	workflow "github.com/delta5-hq/d5-sub001"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/memory"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ids"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	"github.com/delta5-hq/d5-sub001/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managed struct {
	mgr *session.Manager
	eng *workflow.Engine
}

func (m managed) Execute(ctx context.Context, req domain.Request) (*domain.Response, error) {
	return m.mgr.Execute(ctx, m.eng, req)
}

func setup(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	eng := workflow.New(
		workflow.WithFallbackGenerator(ports.GeneratorFunc(func(ctx context.Context, req ports.GenerateRequest) (string, error) {
			return "- answer to " + req.Prompt, nil
		})),
		workflow.WithIDGenerator(ids.NewSequence("n")),
	)
	mgr := session.NewManager(memory.NewStore())

	snap := domain.NewSnapshot()
	snap.Nodes["q"] = &domain.Node{ID: "q", Title: "/chatgpt why"}
	require.NoError(t, mgr.Save(context.Background(), "wf", snap))

	return NewServer(managed{mgr, eng}, mgr), mgr
}

func TestServer_ExecuteCommand(t *testing.T) {
	s, mgr := setup(t)
	ctx := context.Background()

	res, err := s.handleExecute(ctx, mcp.CallToolRequest{}, ExecuteArgs{WorkflowID: "wf", NodeID: "q"})
	require.NoError(t, err)
	assert.Equal(t, domain.QueryChat, res.QueryType)
	assert.Equal(t, []string{"q", "n1"}, res.NodesChanged)
	assert.Equal(t, "/chatgpt why\n  answer to why", res.Outline)

	snap, err := mgr.Load(ctx, "wf")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, snap.Nodes["q"].Prompts)
}

func TestServer_ExecuteCommandErrors(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.handleExecute(ctx, mcp.CallToolRequest{}, ExecuteArgs{WorkflowID: "wf"})
	assert.Error(t, err)

	_, err = s.handleExecute(ctx, mcp.CallToolRequest{}, ExecuteArgs{WorkflowID: "wf", NodeID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	_, err = s.handleExecute(ctx, mcp.CallToolRequest{}, ExecuteArgs{WorkflowID: "missing", NodeID: "q"})
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestServer_RenderOutline(t *testing.T) {
	s, _ := setup(t)

	res, err := s.handleRender(context.Background(), mcp.CallToolRequest{}, RenderArgs{WorkflowID: "wf", NodeID: "q"})
	require.NoError(t, err)
	assert.Equal(t, "/chatgpt why", res.Text)

	_, err = s.handleRender(context.Background(), mcp.CallToolRequest{}, RenderArgs{WorkflowID: "wf", NodeID: "zz"})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}
