package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/delta5-hq/d5-sub001/internal/runtime"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ProviderImportsAnswer(t *testing.T) {
	gen := newRecorder(func(req ports.GenerateRequest) (string, error) {
		return "- apple\n- pear", nil
	})
	d, s := setup(t, gen, []*domain.Node{
		{ID: "cell", Title: "/chatgpt list fruits --lang=en", Children: []string{"ctx"}},
		{ID: "ctx", Title: "only red ones", Parent: "cell"},
	})

	err := d.Run(context.Background(), runtime.Request{QueryType: domain.QueryChat, CellID: "cell", Context: "be brief"}, nil)
	require.NoError(t, err)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, "be brief\nlist fruits\nonly red ones", gen.calls[0].Prompt)
	assert.Equal(t, map[string]string{"lang": "en"}, gen.calls[0].Flags)
	assert.Equal(t, domain.QueryChat, gen.calls[0].QueryType)

	assert.Equal(t, []string{"apple", "pear"}, promptTitles(t, s, "cell"))
	assert.Equal(t, []string{"only red ones", "apple", "pear"}, titles(s.Children("cell")))
}

func TestRun_ReplacesPreviousAnswer(t *testing.T) {
	gen := newRecorder(func(req ports.GenerateRequest) (string, error) { return "fresh", nil })
	d, s := setup(t, gen, []*domain.Node{
		{ID: "cell", Title: "/claude again", Children: []string{"old"}, Prompts: []string{"old"}},
		{ID: "old", Title: "stale", Parent: "cell", Children: []string{"old-child"}},
		{ID: "old-child", Title: "stale child", Parent: "old"},
	})

	require.NoError(t, d.Run(context.Background(), runtime.Request{QueryType: domain.QueryClaude, CellID: "cell"}, nil))
	assert.Equal(t, []string{"fresh"}, promptTitles(t, s, "cell"))
	assert.False(t, s.Has("old"))
	assert.False(t, s.Has("old-child"))
	assert.Equal(t, "again", gen.calls[0].Prompt, "previous prompts are not part of the prompt")
}

func TestRun_Errors(t *testing.T) {
	d, s := setup(t, nil, []*domain.Node{
		{ID: "cell", Title: "/chatgpt x", Children: []string{}},
		{ID: "orphan", Title: "dangling", Parent: "cell"},
	})
	ctx := context.Background()

	err := d.Run(ctx, runtime.Request{QueryType: "nope", CellID: "cell"}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownCommand)

	err = d.Run(ctx, runtime.Request{QueryType: domain.QueryChat, CellID: "missing"}, nil)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	err = d.Run(ctx, runtime.Request{QueryType: domain.QueryChat, CellID: "cell"}, nil)
	assert.ErrorIs(t, err, domain.ErrNoGenerator)
	assert.False(t, s.Has("orphan"), "sweep runs after a failed command")
}

func TestRun_HooksAndMetrics(t *testing.T) {
	var (
		mu     sync.Mutex
		events []domain.EventType
	)
	hook := func(ctx context.Context, e *domain.CommandEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	}
	reg := prometheus.NewRegistry()
	gen := newRecorder(func(req ports.GenerateRequest) (string, error) { return "", errors.New("provider down") })
	d, _ := setup(t, gen, []*domain.Node{{ID: "cell", Title: "/web search"}},
		runtime.WithHooks(domain.LifecycleHooks{OnCommandStart: hook, OnCommandFinish: hook}),
		runtime.WithMetrics(runtime.NewMetrics(reg)),
	)

	reporter := progress.New()
	err := d.Run(context.Background(), runtime.Request{QueryType: domain.QueryWeb, CellID: "cell"}, reporter.Root())
	require.Error(t, err)
	assert.Equal(t, []domain.EventType{domain.EventCommandStart, domain.EventCommandFinish}, events)
	assert.Equal(t, 0, reporter.Inflight())
	assert.Equal(t, "root", reporter.Dump())

	mfs, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "workflow_commands_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["query_type"] == "web" && labels["status"] == "error" {
				found = true
				assert.Equal(t, float64(1), m.GetCounter().GetValue())
			}
		}
	}
	assert.True(t, found)
}

func TestPostProcess_PriorityAndRecursion(t *testing.T) {
	gen := newRecorder(func(req ports.GenerateRequest) (string, error) {
		switch req.QueryType {
		case domain.QuerySummarize:
			return "short summary", nil
		case domain.QueryChat:
			if req.Prompt == "list" {
				return "- apple\n- pear", nil
			}
			return "info " + req.Prompt, nil
		}
		return "", errors.New("unexpected")
	})
	d, s := setup(t, gen, []*domain.Node{
		{ID: "cell", Title: "/chatgpt list", Children: []string{"sum", "fe"}},
		{ID: "sum", Title: "/summarize", Parent: "cell"},
		{ID: "fe", Title: "/foreach /chatgpt describe @@", Parent: "cell"},
	})

	require.NoError(t, d.Run(context.Background(), runtime.Request{QueryType: domain.QueryChat, CellID: "cell"}, nil))

	prompts := gen.prompts()
	require.Len(t, prompts, 4)
	assert.Equal(t, "list", prompts[0])
	assert.ElementsMatch(t, []string{"describe apple", "describe pear"}, prompts[1:3])
	assert.Equal(t, domain.QuerySummarize, gen.calls[3].QueryType)
	assert.Contains(t, prompts[3], "apple")

	cell := get(t, s, "cell")
	apple, pear := cell.Prompts[0], cell.Prompts[1]
	assert.Equal(t, "/chatgpt describe apple", get(t, s, apple).Command)
	assert.Equal(t, []string{"info describe apple"}, promptTitles(t, s, apple))
	assert.Equal(t, []string{"info describe pear"}, promptTitles(t, s, pear))
	assert.Equal(t, []string{"short summary"}, promptTitles(t, s, "sum"))
}

func TestPostProcess_Prevented(t *testing.T) {
	gen := newRecorder(func(req ports.GenerateRequest) (string, error) { return "x", nil })
	d, _ := setup(t, gen, []*domain.Node{
		{ID: "cell", Title: "/chatgpt go", Children: []string{"sum"}},
		{ID: "sum", Title: "/summarize", Parent: "cell"},
	})
	require.NoError(t, d.Run(context.Background(), runtime.Request{QueryType: domain.QueryChat, CellID: "cell", PreventPostProcess: true}, nil))
	assert.Len(t, gen.calls, 1)
}
