package runtime

import (
	"context"
	"sort"

	"github.com/delta5-hq/d5-sub001/internal/progress"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// postKind orders marker children; lower runs first.
type postKind int

const (
	postForeach postKind = iota
	postSummarize
	postMemorize
	postOutline
	postOther
)

type postItem struct {
	node *domain.Node
	kind postKind
	qt   domain.QueryType
}

func postKindOf(n *domain.Node) (postKind, domain.QueryType) {
	text := n.Text()
	qt, ok := domain.QueryTypeOf(text)
	switch {
	case !ok:
		return postOther, ""
	case qt == domain.QueryForeach:
		return postForeach, qt
	case qt == domain.QuerySummarize:
		return postSummarize, qt
	case qt == domain.QueryMemorize:
		return postMemorize, qt
	case qt == domain.QueryOutline && domain.IsOutlineSummarize(text):
		return postOutline, qt
	}
	return postOther, qt
}

// PostProcess runs the marker children of a cell: /foreach, /summarize,
// /memorize and /outline --summarize, in that priority. Children in the
// cell's prompts are skipped and each child runs at most once. Summarize,
// memorize and outline recurse into the child they just ran; foreach owns its
// own recursion. Failures are logged and skipped.
func (d *Dispatcher) PostProcess(ctx context.Context, cellID string, parent *progress.Scope) {
	cell, ok := d.store.Node(cellID)
	if !ok {
		return
	}

	var items []postItem
	for _, child := range d.store.Children(cellID) {
		kind, qt := postKindOf(child)
		if kind != postOther {
			items = append(items, postItem{node: child, kind: kind, qt: qt})
		}
	}
	if len(items) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].kind < items[j].kind })

	// Sequential loop; the claimed set needs no synchronization.
	claimed := make(map[string]bool, len(cell.Prompts)+len(items))
	for _, id := range cell.Prompts {
		claimed[id] = true
	}

	scope := parent.Child("postProcess")
	defer scope.Dispose()

	for _, it := range items {
		if claimed[it.node.ID] {
			continue
		}
		claimed[it.node.ID] = true
		if ctx.Err() != nil {
			return
		}

		scope.Add(it.node.ID)
		err := d.Run(ctx, Request{QueryType: it.qt, CellID: it.node.ID, PreventPostProcess: true}, scope)
		scope.Remove(it.node.ID)
		if err != nil {
			d.logger.Warn("post-process failed", "node_id", it.node.ID, "query_type", it.qt, "err", err)
			continue
		}
		if it.kind != postForeach {
			d.PostProcess(ctx, it.node.ID, scope)
		}
	}
}
