package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/delta5-hq/d5-sub001/internal/runtime"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ids"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	"github.com/delta5-hq/d5-sub001/pkg/registry"
	"github.com/delta5-hq/d5-sub001/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the high-level entry point of the library.
// It is safe for concurrent use; every Execute works on its own store.
type Engine struct {
	generators *registry.Registry
	classifier ports.Classifier
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	reporter   *progress.Reporter
	metrics    *runtime.Metrics
	ids        ids.Generator
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry sets the generator registry used by provider commands.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.generators = r
	}
}

// WithGenerator registers gen for one query type on the engine's registry.
func WithGenerator(qt domain.QueryType, gen ports.Generator) Option {
	return func(e *Engine) {
		e.generators.Register(qt, gen)
	}
}

// WithFallbackGenerator serves every provider query type without its own generator.
func WithFallbackGenerator(gen ports.Generator) Option {
	return func(e *Engine) {
		e.generators.SetFallback(gen)
	}
}

// WithClassifier sets the classifier used by /switch.
func WithClassifier(c ports.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithReporter shares a progress reporter across executions.
func WithReporter(r *progress.Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithMetrics registers command counters and durations on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.metrics = runtime.NewMetrics(reg)
	}
}

// WithIDGenerator sets the generator of new node and edge ids.
func WithIDGenerator(gen ids.Generator) Option {
	return func(e *Engine) {
		e.ids = gen
	}
}

// New creates an engine. Without generators every provider command fails
// with domain.ErrNoGenerator and produces no output.
func New(opts ...Option) *Engine {
	e := &Engine{
		generators: registry.NewRegistry(),
		logger:     logging.NewNop(),
		ids:        ids.UUID{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the generator registry.
func (e *Engine) Registry() *registry.Registry {
	return e.generators
}

// Execute runs one command on the request's cell.
//
// The cell is merged into the workflow nodes, the command runs with its
// post-process pipeline and the response carries the touched objects plus the
// full mutated maps. A failing command is logged and yields a response
// without its output; only malformed requests and unknown query types return
// an error.
func (e *Engine) Execute(ctx context.Context, req domain.Request) (*domain.Response, error) {
	// 1. Validate
	if req.Cell == nil || req.Cell.ID == "" {
		return nil, &domain.ValidationError{Op: "Execute", Reason: "cell with id is required"}
	}
	qt := req.QueryType
	if qt == "" {
		inferred, ok := domain.QueryTypeOf(req.Cell.Text())
		if !ok {
			return nil, fmt.Errorf("%w: cell %s carries no command", domain.ErrUnknownCommand, req.Cell.ID)
		}
		qt = inferred
	}

	// 2. Build the store
	s, err := store.Open(req.Snapshot(), store.WithIDGenerator(e.ids))
	if err != nil {
		return nil, err
	}
	if _, err := s.EditNode(domain.PatchFrom(*req.Cell)); err != nil {
		return nil, err
	}

	// 3. Dispatch
	d := runtime.NewDispatcher(s,
		runtime.WithLogger(e.logger),
		runtime.WithGenerators(e.generators),
		runtime.WithClassifier(e.classifier),
		runtime.WithHooks(e.hooks),
		runtime.WithMetrics(e.metrics),
		runtime.WithIdentity(req.UserID, req.WorkflowID),
	)
	err = d.Run(ctx, runtime.Request{
		QueryType: qt,
		CellID:    req.Cell.ID,
		Context:   req.Context,
		Prompt:    req.Prompt,
	}, e.reporter.Root())
	switch {
	case errors.Is(err, domain.ErrUnknownCommand), domain.IsValidation(err):
		return nil, err
	case err != nil:
		e.logger.Warn("command produced no output", "workflow_id", req.WorkflowID, "node_id", req.Cell.ID, "query_type", qt, "err", err)
	}

	// 4. Collect
	nodes, edges := s.Output()
	snap := s.Snapshot()
	cell, _ := s.Node(req.Cell.ID)
	return &domain.Response{
		QueryType:     qt,
		Cell:          cell,
		Context:       req.Context,
		Prompt:        req.Prompt,
		WorkflowID:    req.WorkflowID,
		UserID:        req.UserID,
		NodesChanged:  nodes,
		EdgesChanged:  edges,
		WorkflowNodes: snap.Nodes,
		WorkflowEdges: snap.Edges,
		WorkflowFiles: snap.Files,
	}, nil
}
