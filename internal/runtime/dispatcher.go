// Package runtime executes commands against a document store.
//
// The Dispatcher maps a query type to a Command, runs it on a cell, runs the
// post-process pipeline over the cell's children and finally sweeps orphaned
// nodes. Control-flow commands (/foreach, /steps, /switch) call back into the
// Dispatcher for every unit they schedule.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/delta5-hq/d5-sub001/internal/resolve"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
	"github.com/delta5-hq/d5-sub001/pkg/registry"
	"github.com/delta5-hq/d5-sub001/pkg/store"
)

// Command is one executable slash-directive bound to an Env.
type Command interface {
	Run(ctx context.Context, cell *domain.Node) error
}

// Constructor builds a Command for one dispatch.
type Constructor func(env Env) Command

// Env carries what a command needs for one dispatch.
type Env struct {
	QueryType  domain.QueryType
	UserID     string
	WorkflowID string
	Context    string
	Prompt     string

	Store      *store.Store
	Resolver   *resolve.Resolver
	Generators *registry.Registry
	Classifier ports.Classifier
	Dispatcher *Dispatcher
	Scope      *progress.Scope
	Logger     *slog.Logger
}

// Request describes one dispatch.
type Request struct {
	QueryType domain.QueryType
	CellID    string
	Context   string
	Prompt    string
	// PreventPostProcess skips the post-process pipeline. /steps never post-processes.
	PreventPostProcess bool
}

// Dispatcher runs commands against one store.
type Dispatcher struct {
	store      *store.Store
	resolver   *resolve.Resolver
	generators *registry.Registry
	classifier ports.Classifier
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	metrics    *Metrics
	userID     string
	workflowID string
	commands   map[domain.QueryType]Constructor
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithGenerators sets the provider registry used by provider commands.
func WithGenerators(r *registry.Registry) Option {
	return func(d *Dispatcher) {
		d.generators = r
	}
}

// WithClassifier sets the classifier used by /switch.
func WithClassifier(c ports.Classifier) Option {
	return func(d *Dispatcher) {
		d.classifier = c
	}
}

// WithHooks registers lifecycle hooks fired around every command.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = h
	}
}

// WithMetrics records command counts and durations.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithIdentity sets the user and workflow ids passed to commands.
func WithIdentity(userID, workflowID string) Option {
	return func(d *Dispatcher) {
		d.userID = userID
		d.workflowID = workflowID
	}
}

// WithCommand replaces the constructor of one query type.
func WithCommand(qt domain.QueryType, c Constructor) Option {
	return func(d *Dispatcher) {
		d.commands[qt] = c
	}
}

// NewDispatcher creates a dispatcher over s with the default command table.
func NewDispatcher(s *store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		resolver: resolve.New(s),
		logger:   logging.NewNop(),
		commands: DefaultCommands(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DefaultCommands returns the command table: every provider query type plus
// the /foreach, /steps and /switch control-flow commands.
func DefaultCommands() map[domain.QueryType]Constructor {
	table := make(map[domain.QueryType]Constructor, len(ProviderTypes)+3)
	for _, qt := range ProviderTypes {
		table[qt] = newProviderCommand
	}
	table[domain.QueryForeach] = newForeachCommand
	table[domain.QuerySteps] = newStepsCommand
	table[domain.QuerySwitch] = newSwitchCommand
	return table
}

// Store returns the store the dispatcher works on.
func (d *Dispatcher) Store() *store.Store {
	return d.store
}

// Run executes one command on a cell.
//
// The returned error is the command's own failure; post-process failures are
// logged and never returned. Orphaned nodes are swept in every case.
func (d *Dispatcher) Run(ctx context.Context, req Request, parent *progress.Scope) error {
	ctor, ok := d.commands[req.QueryType]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCommand, req.QueryType)
	}
	cell, ok := d.store.Node(req.CellID)
	if !ok {
		return fmt.Errorf("run %s: %w: %s", req.QueryType, domain.ErrNodeNotFound, req.CellID)
	}

	scope := parent.Child("runCommand")
	defer scope.Dispose()
	defer d.store.RemoveOrphanedNodes()

	// 1. Run the command itself
	label := string(req.QueryType) + ":" + cell.ID
	scope.Add(label)
	err := d.execute(ctx, ctor, req, cell, scope)
	scope.Remove(label)
	if err != nil {
		return fmt.Errorf("%s on node %s: %w", req.QueryType, cell.ID, err)
	}

	// 2. Expand marker children
	if !req.PreventPostProcess && req.QueryType != domain.QuerySteps {
		d.PostProcess(ctx, cell.ID, scope)
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, ctor Constructor, req Request, cell *domain.Node, scope *progress.Scope) error {
	event := &domain.CommandEvent{
		Timestamp:  time.Now(),
		Type:       domain.EventCommandStart,
		WorkflowID: d.workflowID,
		NodeID:     cell.ID,
		QueryType:  req.QueryType,
	}
	if d.hooks.OnCommandStart != nil {
		d.hooks.OnCommandStart(ctx, event)
	}
	d.logger.Debug("command start", "node_id", cell.ID, "query_type", req.QueryType)

	cmd := ctor(Env{
		QueryType:  req.QueryType,
		UserID:     d.userID,
		WorkflowID: d.workflowID,
		Context:    req.Context,
		Prompt:     req.Prompt,
		Store:      d.store,
		Resolver:   d.resolver,
		Generators: d.generators,
		Classifier: d.classifier,
		Dispatcher: d,
		Scope:      scope,
		Logger:     d.logger.With("node_id", cell.ID, "query_type", req.QueryType),
	})
	err := cmd.Run(ctx, cell)

	elapsed := time.Since(event.Timestamp)
	d.metrics.observe(req.QueryType, elapsed, err)
	if d.hooks.OnCommandFinish != nil {
		d.hooks.OnCommandFinish(ctx, &domain.CommandEvent{
			Timestamp:  time.Now(),
			Type:       domain.EventCommandFinish,
			WorkflowID: d.workflowID,
			NodeID:     cell.ID,
			QueryType:  req.QueryType,
			Duration:   elapsed,
			Err:        err,
		})
	}
	d.logger.Debug("command finish", "node_id", cell.ID, "query_type", req.QueryType, "duration", elapsed, "err", err)
	return err
}

// runUnit dispatches one scheduled unit and logs its failure.
// Units never fail their siblings.
func (d *Dispatcher) runUnit(ctx context.Context, req Request, scope *progress.Scope) {
	if err := d.Run(ctx, req, scope); err != nil {
		d.logger.Warn("unit failed", "node_id", req.CellID, "query_type", req.QueryType, "err", err)
	}
}
