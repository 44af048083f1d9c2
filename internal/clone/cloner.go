// Package clone copies node subtrees under fresh ids.
package clone

import "github.com/delta5-hq/d5-sub001/pkg/domain"

// Clone copies the subtree at rootID into a flat pre-order list.
//
// Every distinct original id gets exactly one fresh id from newID, reused for
// each reference to it. The copy of the root is re-parented to targetParentID.
// Children entries missing from nodes are dropped, and so are prompts that
// are not cloned through children, so no reference is left dangling. The
// input map is never modified.
func Clone(rootID string, nodes map[string]*domain.Node, targetParentID string, newID func() string) []*domain.Node {
	c := &cloner{
		nodes:   nodes,
		newID:   newID,
		mapping: make(map[string]string),
		visited: make(map[string]bool),
	}
	c.visit(rootID, targetParentID)

	// Prompts last: only now is every cloned id known.
	for _, cp := range c.out {
		cp.Prompts = c.rewritePrompts(cp.Prompts)
	}
	return c.out
}

type cloner struct {
	nodes   map[string]*domain.Node
	newID   func() string
	mapping map[string]string
	visited map[string]bool
	out     []*domain.Node
}

func (c *cloner) fresh(id string) string {
	if v, ok := c.mapping[id]; ok {
		return v
	}
	v := c.newID()
	c.mapping[id] = v
	return v
}

func (c *cloner) visit(id, parent string) {
	if c.visited[id] {
		return
	}
	c.visited[id] = true
	src, ok := c.nodes[id]
	if !ok {
		return
	}

	cp := src.Clone()
	cp.ID = c.fresh(id)
	cp.Parent = parent
	cp.Children = c.rewrite(src.Children)
	c.out = append(c.out, cp)

	for _, cid := range src.Children {
		c.visit(cid, cp.ID)
	}
}

// rewritePrompts maps original prompt ids to the ids of their clones.
func (c *cloner) rewritePrompts(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.mapping[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *cloner) rewrite(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.nodes[id]; ok {
			out = append(out, c.fresh(id))
		}
	}
	return out
}
