// Package steps classifies the executable descendants of a /steps node.
package steps

import (
	"sort"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// Reader is the read side of the store the traverser needs.
type Reader interface {
	Node(id string) (*domain.Node, bool)
}

// Step is one executable member of a steps tree.
type Step struct {
	Node *domain.Node
	// Prompt is the command text to run, without its order prefix.
	Prompt string
	Type   domain.QueryType
}

// Plan groups the members of a steps tree by their "#<int>" order.
type Plan struct {
	ByOrder      map[int][]Step
	WithoutOrder []Step
}

// Orders returns the order keys ascending.
func (p Plan) Orders() []int {
	keys := make([]int, 0, len(p.ByOrder))
	for k := range p.ByOrder {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Len returns the number of members.
func (p Plan) Len() int {
	n := len(p.WithoutOrder)
	for _, bucket := range p.ByOrder {
		n += len(bucket)
	}
	return n
}

// Traverse walks the subtree below rootID depth-first.
//
// Descent stops at the first executable node of each branch. /foreach nodes
// are skipped, nested /steps and /switch nodes become members without being
// entered, and nodes listed in their parent's prompts are ignored.
func Traverse(doc Reader, rootID string) Plan {
	plan := Plan{ByOrder: make(map[int][]Step)}
	root, ok := doc.Node(rootID)
	if !ok {
		return plan
	}

	visited := map[string]bool{rootID: true}
	var walk func(parent *domain.Node)
	walk = func(parent *domain.Node) {
		for _, id := range parent.Children {
			if visited[id] || parent.HasPrompt(id) {
				continue
			}
			visited[id] = true

			n, ok := doc.Node(id)
			if !ok {
				continue
			}
			step, order, hasOrder, exec := classify(n)
			if !exec {
				walk(n)
				continue
			}
			if step.Type == domain.QueryForeach {
				continue
			}
			if hasOrder {
				plan.ByOrder[order] = append(plan.ByOrder[order], step)
			} else {
				plan.WithoutOrder = append(plan.WithoutOrder, step)
			}
		}
	}
	walk(root)
	return plan
}

// classify reads the order and the prompt from the first executable of
// (title, command). Titles keep the authored text; commands record what ran.
func classify(n *domain.Node) (Step, int, bool, bool) {
	pc, ok := domain.ParseCommand(n.Title)
	if !ok {
		pc, ok = domain.ParseCommand(n.Command)
	}
	if !ok {
		return Step{}, 0, false, false
	}
	return Step{Node: n, Prompt: pc.Text, Type: pc.Type}, pc.Order, pc.HasOrder, true
}
