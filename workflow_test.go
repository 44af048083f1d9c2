package workflow_test

import (
	"context"
	"strings"
	"testing"

	"github.com/delta5-hq/d5-sub001"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ids"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo() ports.Generator {
	return ports.GeneratorFunc(func(ctx context.Context, req ports.GenerateRequest) (string, error) {
		return "- result " + strings.ReplaceAll(req.Prompt, "\n", " "), nil
	})
}

func TestExecute_StepsEndToEnd(t *testing.T) {
	eng := workflow.New(
		workflow.WithFallbackGenerator(echo()),
		workflow.WithIDGenerator(ids.NewSequence("n")),
	)
	cell := &domain.Node{ID: "cell", Title: "/steps plan", Children: []string{"s0", "s1"}}

	resp, err := eng.Execute(context.Background(), domain.Request{
		QueryType: domain.QuerySteps,
		Cell:      cell,
		UserID:    "u1",
		WorkflowNodes: map[string]*domain.Node{
			"s0":  {ID: "s0", Title: "#0 /refine draft", Parent: "cell", Children: []string{"old"}, Prompts: []string{"old"}},
			"old": {ID: "old", Title: "result of an earlier run", Parent: "s0"},
			"s1":  {ID: "s1", Title: "#1 /chatgpt expand", Parent: "cell"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cell", "s0", "s1", "n1", "n2"}, resp.ChangedNodeIDs())
	assert.Equal(t, []string{"n1"}, resp.WorkflowNodes["s0"].Prompts)
	assert.Equal(t, []string{"n2"}, resp.WorkflowNodes["s1"].Prompts)
	assert.Equal(t, "result draft", resp.WorkflowNodes["n1"].Title)
	assert.Equal(t, "result expand", resp.WorkflowNodes["n2"].Title)
	assert.Equal(t, "/refine draft", resp.WorkflowNodes["s0"].Command)
	assert.NotContains(t, resp.WorkflowNodes, "old")
	assert.Equal(t, domain.QuerySteps, resp.QueryType)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "cell", resp.Cell.ID)
}

func TestExecute_InfersQueryType(t *testing.T) {
	eng := workflow.New(workflow.WithFallbackGenerator(echo()), workflow.WithIDGenerator(ids.NewSequence("n")))

	resp, err := eng.Execute(context.Background(), domain.Request{
		Cell: &domain.Node{ID: "c", Title: "notes", Command: "/chatgpt hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.QueryChat, resp.QueryType)
	assert.Equal(t, []string{"n1"}, resp.Cell.Prompts)
}

func TestExecute_Errors(t *testing.T) {
	eng := workflow.New()
	ctx := context.Background()

	_, err := eng.Execute(ctx, domain.Request{QueryType: domain.QueryChat})
	assert.True(t, domain.IsValidation(err))

	_, err = eng.Execute(ctx, domain.Request{Cell: &domain.Node{ID: "c", Title: "plain"}})
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)

	_, err = eng.Execute(ctx, domain.Request{QueryType: "bogus", Cell: &domain.Node{ID: "c"}})
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)

	resp, err := eng.Execute(ctx, domain.Request{Cell: &domain.Node{ID: "c", Title: "/chatgpt hi"}})
	require.NoError(t, err, "a failing provider yields an empty response")
	assert.Empty(t, resp.Cell.Prompts)
	assert.Equal(t, []string{"c"}, resp.ChangedNodeIDs())
}

func TestRenderOutline(t *testing.T) {
	snap := domain.NewSnapshot()
	snap.Nodes["a"] = &domain.Node{ID: "a", Title: "@intro Welcome", Children: []string{"b"}}
	snap.Nodes["b"] = &domain.Node{ID: "b", Title: "to the tour", Parent: "a"}
	snap.Nodes["c"] = &domain.Node{ID: "c", Title: "Start: @@intro"}

	out, err := workflow.RenderOutline(snap, "c", workflow.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Start: Welcome\n  to the tour", out)

	all, err := workflow.RenderOutline(snap, "", workflow.RenderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Welcome\n  to the tour\nStart: Welcome\n  to the tour", all)

	_, err = workflow.RenderOutline(snap, "zzz", workflow.RenderOptions{})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestExecute_RejectsMalformedDocument(t *testing.T) {
	eng := workflow.New(workflow.WithFallbackGenerator(echo()))
	ctx := context.Background()
	cell := &domain.Node{ID: "c", Title: "/chatgpt hi"}

	_, err := eng.Execute(ctx, domain.Request{
		Cell:          cell,
		WorkflowNodes: map[string]*domain.Node{"x": nil},
	})
	assert.True(t, domain.IsValidation(err), "got %v", err)

	_, err = eng.Execute(ctx, domain.Request{
		Cell:          cell,
		WorkflowEdges: map[string]*domain.Edge{"e": nil},
	})
	assert.True(t, domain.IsValidation(err), "got %v", err)

	// A node stored under a foreign key must not be swept away silently.
	_, err = eng.Execute(ctx, domain.Request{
		Cell: cell,
		WorkflowNodes: map[string]*domain.Node{
			"p": {ID: "p", Title: "parent", Children: []string{"a"}},
			"a": {ID: "b", Title: "child", Parent: "p"},
		},
	})
	assert.True(t, domain.IsValidation(err), "got %v", err)

	_, err = workflow.RenderOutline(&domain.Snapshot{Nodes: map[string]*domain.Node{"x": nil}}, "", workflow.RenderOptions{})
	assert.True(t, domain.IsValidation(err), "got %v", err)
}
