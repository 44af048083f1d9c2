package runtime_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/delta5-hq/d5-sub001/internal/runtime"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ids"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	"github.com/delta5-hq/d5-sub001/pkg/registry"
	"github.com/delta5-hq/d5-sub001/pkg/store"
	"github.com/stretchr/testify/require"
)

// recorder is a Generator that logs every call.
type recorder struct {
	mu     sync.Mutex
	calls  []ports.GenerateRequest
	events []string
	reply  func(req ports.GenerateRequest) (string, error)
}

func newRecorder(reply func(req ports.GenerateRequest) (string, error)) *recorder {
	if reply == nil {
		reply = func(req ports.GenerateRequest) (string, error) {
			return "answer: " + req.Prompt, nil
		}
	}
	return &recorder{reply: reply}
}

func (r *recorder) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.events = append(r.events, "start "+req.Prompt)
	r.mu.Unlock()

	out, err := r.reply(req)

	r.mu.Lock()
	r.events = append(r.events, "end "+req.Prompt)
	r.mu.Unlock()
	return out, err
}

func (r *recorder) prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.Prompt)
	}
	return out
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// barrier replies only once n calls are in flight, failing after timeout.
func barrier(n int, timeout time.Duration) func(req ports.GenerateRequest) (string, error) {
	var (
		mu    sync.Mutex
		count int
	)
	ready := make(chan struct{})
	return func(req ports.GenerateRequest) (string, error) {
		mu.Lock()
		count++
		if count == n {
			close(ready)
		}
		mu.Unlock()
		select {
		case <-ready:
			return "done " + req.Prompt, nil
		case <-time.After(timeout):
			return "", errors.New("peers never started")
		}
	}
}

func setup(t *testing.T, gen ports.Generator, nodes []*domain.Node, opts ...runtime.Option) (*runtime.Dispatcher, *store.Store) {
	t.Helper()
	snap := domain.NewSnapshot()
	for _, n := range nodes {
		snap.Nodes[n.ID] = n
	}
	s := store.New(snap, store.WithIDGenerator(ids.NewSequence("gen")))
	reg := registry.NewRegistry()
	if gen != nil {
		reg.SetFallback(gen)
	}
	opts = append([]runtime.Option{runtime.WithGenerators(reg)}, opts...)
	return runtime.NewDispatcher(s, opts...), s
}

func get(t *testing.T, s *store.Store, id string) *domain.Node {
	t.Helper()
	n, ok := s.Node(id)
	require.True(t, ok, "node %s missing", id)
	return n
}

func titles(nodes []*domain.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Title)
	}
	return out
}

func promptTitles(t *testing.T, s *store.Store, id string) []string {
	t.Helper()
	var out []string
	for _, pid := range get(t, s, id).Prompts {
		out = append(out, get(t, s, pid).Title)
	}
	return out
}

func indexOf(list []string, prefix string) int {
	for i, s := range list {
		if strings.HasPrefix(s, prefix) {
			return i
		}
	}
	return -1
}
