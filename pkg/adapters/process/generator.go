// Package process serves provider commands by running local programs.
//
// Only commands registered for a query type are run; nothing from the
// document ever reaches the argument list. The prompt is written to stdin
// and the request metadata is passed as WORKFLOW_* environment variables, so
// a node title cannot inject flags. Stdout becomes the generated outline.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/delta5-hq/d5-sub001/internal/logging"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ports"
)

// ErrNotRegistered is returned for query types without a command.
var ErrNotRegistered = errors.New("process not registered")

var envKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Generator runs the command registered for a request's query type.
type Generator struct {
	registry map[domain.QueryType]Config
	logger   *slog.Logger
}

var _ ports.Generator = (*Generator)(nil)

// Option configures the Generator.
type Option func(*Generator)

// WithRegistry registers every entry of cfg, keyed by query type.
func WithRegistry(cfg map[string]Config) Option {
	return func(g *Generator) {
		for qt, c := range cfg {
			g.Register(domain.QueryType(qt), c)
		}
	}
}

// WithLogger configures a logger for the Generator.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		registry: make(map[domain.QueryType]Config),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a trusted command to the allow-list.
func (g *Generator) Register(qt domain.QueryType, cfg Config) {
	g.registry[qt] = cfg
}

// Types returns the registered query types, sorted.
func (g *Generator) Types() []domain.QueryType {
	out := make([]domain.QueryType, 0, len(g.registry))
	for qt := range g.registry {
		out = append(out, qt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	proc, ok := g.registry[req.QueryType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, req.QueryType)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = proc.Dir
	cmd.Env = append(cmd.Environ(), environment(proc, req)...)
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.logger.Debug("running process", "query_type", req.QueryType, "command", proc.Command)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("process %s failed: %w: %s", proc.Command, err, strings.TrimSpace(stderr.String()))
	}
	return decodeOutput(stdout.String()), nil
}

func environment(proc Config, req ports.GenerateRequest) []string {
	env := make([]string, 0, len(proc.Env)+len(req.Flags)+3)
	for k, v := range proc.Env {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"WORKFLOW_QUERY_TYPE="+string(req.QueryType),
		"WORKFLOW_ID="+req.WorkflowID,
		"WORKFLOW_USER_ID="+req.UserID,
	)
	for k, v := range req.Flags {
		env = append(env, "WORKFLOW_FLAG_"+envKey.ReplaceAllString(strings.ToUpper(k), "_")+"="+v)
	}
	return env
}

// decodeOutput turns a JSON array of strings into one outline item per line.
// Anything else is returned trimmed.
func decodeOutput(out string) string {
	trimmed := strings.TrimSpace(out)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		var items []string
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			lines := make([]string, len(items))
			for i, item := range items {
				lines[i] = "- " + item
			}
			return strings.Join(lines, "\n")
		}
	}
	return trimmed
}
