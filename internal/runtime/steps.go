package runtime

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/delta5-hq/d5-sub001/internal/steps"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// stepsCommand runs the executable descendants of a /steps node: order
// buckets ascending, members of a bucket concurrently, then the unordered
// members concurrently.
type stepsCommand struct {
	env Env
}

func newStepsCommand(env Env) Command {
	return &stepsCommand{env: env}
}

func (c *stepsCommand) Run(ctx context.Context, cell *domain.Node) error {
	plan := steps.Traverse(c.env.Store, cell.ID)
	if plan.Len() == 0 {
		c.env.Logger.Debug("steps found no members")
		return nil
	}

	// 1. Ordered buckets, strictly ascending
	orders := plan.Orders()
	ordered := c.env.Scope.Child("ordered")
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			ordered.Dispose()
			return err
		}
		label := "#" + strconv.Itoa(order)
		ordered.Add(label)
		bucket := ordered.Child("parallel")
		c.fanOut(ctx, plan.ByOrder[order], bucket)
		bucket.Dispose()
		ordered.Remove(label)
	}
	ordered.Dispose()

	// 2. Unordered members
	if len(plan.WithoutOrder) > 0 {
		flat := c.env.Scope.Child("parallel")
		c.fanOut(ctx, plan.WithoutOrder, flat)
		flat.Dispose()
	}
	return ctx.Err()
}

// record overwrites the member's command with its resolved prompt, the
// permanent record of what ran. Resolution happens at dispatch time so
// references see the output of earlier buckets.
func (c *stepsCommand) record(s steps.Step) {
	n, ok := c.env.Store.Node(s.Node.ID)
	if !ok {
		n = s.Node
	}
	if err := c.env.Store.SetCommand(n.ID, c.env.Resolver.ResolveText(s.Prompt, n)); err != nil {
		c.env.Logger.Warn("step command not recorded", "step_id", n.ID, "err", err)
	}
}

// fanOut runs members concurrently and waits for all of them.
func (c *stepsCommand) fanOut(ctx context.Context, members []steps.Step, scope *progress.Scope) {
	var g errgroup.Group
	for _, s := range members {
		g.Go(func() error {
			scope.Add(s.Node.ID)
			defer scope.Remove(s.Node.ID)
			c.record(s)
			c.env.Dispatcher.runUnit(ctx, Request{QueryType: s.Type, CellID: s.Node.ID}, scope)
			return nil
		})
	}
	_ = g.Wait()
}
