package runtime

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/delta5-hq/d5-sub001/internal/clone"
	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/delta5-hq/d5-sub001/internal/steps"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

const (
	chainMarker   = "@@@"
	parentsMarker = "@@parents"
	chainDepth    = 3
)

// foreachCommand runs its inner command once per leaf found among the
// siblings of the /foreach node.
type foreachCommand struct {
	env Env
}

func newForeachCommand(env Env) Command {
	return &foreachCommand{env: env}
}

// foreachRun is the per-execution state shared by the leaf units.
type foreachRun struct {
	inner     string
	innerType domain.QueryType
	opts      foreachOptions
	templates []steps.Step
	scope     *progress.Scope
}

func (c *foreachCommand) Run(ctx context.Context, cell *domain.Node) error {
	pc, ok := domain.ParseCommand(cell.Text())
	if !ok || pc.Type != domain.QueryForeach {
		return fmt.Errorf("not a foreach command: %q", cell.Text())
	}

	opts, err := decodeForeachOptions(domain.ParseFlags(pc.Body))
	if err != nil {
		return fmt.Errorf("foreach flags: %w", err)
	}
	inner := withoutFlags(pc.Body, "parallel", "file")
	innerCmd, ok := domain.ParseCommand(inner)
	if !ok {
		return fmt.Errorf("foreach: inner text %q is not a command", inner)
	}

	leaves := c.leaves(cell, opts.File)
	if len(leaves) == 0 {
		c.env.Logger.Debug("foreach found no leaves")
		return nil
	}

	run := &foreachRun{inner: inner, innerType: innerCmd.Type, opts: opts}
	if innerCmd.Type == domain.QuerySteps {
		plan := steps.Traverse(c.env.Store, cell.ID)
		for _, order := range plan.Orders() {
			run.templates = append(run.templates, plan.ByOrder[order]...)
		}
		run.templates = append(run.templates, plan.WithoutOrder...)
	}

	name := "parallel"
	if opts.sequential() {
		name = "sequential"
	}
	run.scope = c.env.Scope.Child(name)
	defer run.scope.Dispose()

	if opts.sequential() {
		for _, leaf := range leaves {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.runLeaf(ctx, run, leaf)
		}
		return nil
	}

	var g errgroup.Group
	for _, leaf := range leaves {
		g.Go(func() error {
			c.runLeaf(ctx, run, leaf)
			return nil
		})
	}
	return g.Wait()
}

// leaves walks the other children of the foreach node's parent in document
// order. /foreach and /summarize markers are skipped; a node with a recorded
// command is a leaf even when it has children.
func (c *foreachCommand) leaves(self *domain.Node, fileOnly bool) []*domain.Node {
	if self.Parent == "" {
		return nil
	}
	var out []*domain.Node
	visited := map[string]bool{self.ID: true}

	var walk func(id string)
	walk = func(id string) {
		for _, n := range c.env.Store.Children(id) {
			if visited[n.ID] {
				continue
			}
			visited[n.ID] = true

			if qt, ok := domain.QueryTypeOf(n.Text()); ok && (qt == domain.QueryForeach || qt == domain.QuerySummarize) {
				continue
			}
			if n.Command == "" && len(n.Children) > 0 {
				walk(n.ID)
				continue
			}
			if fileOnly && n.File == "" {
				continue
			}
			out = append(out, n)
		}
	}
	walk(self.Parent)
	return out
}

func (c *foreachCommand) runLeaf(ctx context.Context, run *foreachRun, leaf *domain.Node) {
	run.scope.Add(leaf.ID)
	defer run.scope.Remove(leaf.ID)
	log := c.env.Logger.With("leaf_id", leaf.ID)

	text := c.substitute(run.inner, leaf, run.opts)
	qt := run.innerType

	var copies []string
	if qt == domain.QuerySteps {
		var err error
		if copies, err = c.instantiate(run, leaf); err != nil {
			log.Warn("foreach copies failed", "err", err)
			return
		}
		c.env.Store.OrphanMatchingNodes(leaf.ID, isForeachMarker)
	}

	if err := c.env.Store.SetCommand(leaf.ID, text); err != nil {
		log.Warn("foreach leaf vanished", "err", err)
		return
	}
	c.env.Dispatcher.runUnit(ctx, Request{QueryType: qt, CellID: leaf.ID}, run.scope)

	if qt == domain.QuerySteps {
		if err := c.env.Store.AddPromptsToNode(leaf.ID, copies); err != nil {
			log.Warn("foreach prompts not recorded", "err", err)
		}
	}
}

// instantiate places one copy of every step template under the leaf:
// templates with children are deep-cloned, childless ones created fresh. The
// copy's title keeps the template order with markers substituted; its command
// is the substituted prompt.
func (c *foreachCommand) instantiate(run *foreachRun, leaf *domain.Node) ([]string, error) {
	var (
		roots []string
		nodes map[string]*domain.Node
	)
	for _, tpl := range run.templates {
		title := c.substitute(tpl.Node.Title, leaf, run.opts)
		command := c.substitute(tpl.Prompt, leaf, run.opts)

		if len(tpl.Node.Children) == 0 {
			n, err := c.env.Store.CreateNode(domain.Node{Title: title, Command: command, Parent: leaf.ID}, false)
			if err != nil {
				return roots, err
			}
			roots = append(roots, n.ID)
			continue
		}

		if nodes == nil {
			nodes = c.env.Store.Snapshot().Nodes
		}
		clones := clone.Clone(tpl.Node.ID, nodes, leaf.ID, c.env.Store.NewID)
		if len(clones) == 0 {
			continue
		}
		clones[0].Title = title
		clones[0].Command = command
		if err := c.env.Store.ImportNodes(clones); err != nil {
			return roots, err
		}
		roots = append(roots, clones[0].ID)
	}
	return roots, nil
}

// substitute expands the foreach markers of text for one leaf: "@@@" first,
// then "@@parents" (the command gets --parents=0), then bare "@@".
// Named references such as "@@parentsGuide" are left to the resolver.
func (c *foreachCommand) substitute(text string, leaf *domain.Node, opts foreachOptions) string {
	if strings.Contains(text, chainMarker) {
		text = strings.ReplaceAll(text, chainMarker, c.chain(leaf, chainDepth))
	}
	if replaced, ok := replaceMarker(text, parentsMarker, c.chain(leaf, opts.Parents)); ok {
		text = setFlag(replaced, "parents", "0")
	}
	return replaceBareMarker(text, leaf.Title)
}

// chain joins up to depth non-command ancestor titles, outermost first, and the leaf title.
func (c *foreachCommand) chain(leaf *domain.Node, depth int) string {
	var titles []string
	seen := map[string]bool{leaf.ID: true}
	id := leaf.Parent
	for id != "" && len(titles) < depth && !seen[id] {
		seen[id] = true
		n, ok := c.env.Store.Node(id)
		if !ok {
			break
		}
		if !domain.IsCommand(n.Text()) && strings.TrimSpace(n.Title) != "" {
			titles = append(titles, strings.TrimSpace(n.Title))
		}
		id = n.Parent
	}
	slices.Reverse(titles)
	return strings.Join(append(titles, leaf.Title), ", ")
}

func isForeachMarker(n *domain.Node) bool {
	return domain.IsCommandType(n.Text(), domain.QueryForeach)
}
