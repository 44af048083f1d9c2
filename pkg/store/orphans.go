package store

import (
	"fmt"
	"sort"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// isOrphanLocked applies the orphan rule: the parent exists, has a children
// list, and does not list the node.
func (s *Store) isOrphanLocked(n *domain.Node) bool {
	if n.Parent == "" {
		return false
	}
	parent, ok := s.nodes[n.Parent]
	if !ok || parent.Children == nil {
		return false
	}
	return !contains(parent.Children, n.ID)
}

// RemoveOrphanedNodes deletes every orphan together with the subtree it owns
// and the edges touching deleted nodes, then drops prompt ids that no longer
// point at a listed child. It returns the deleted node ids, sorted.
func (s *Store) RemoveOrphanedNodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orphans []string
	for id, n := range s.nodes {
		if s.isOrphanLocked(n) {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return nil
	}

	deleted := make(map[string]bool)
	var drop func(id string)
	drop = func(id string) {
		n, ok := s.nodes[id]
		if !ok || deleted[id] {
			return
		}
		deleted[id] = true
		for _, cid := range n.Children {
			if c, ok := s.nodes[cid]; ok && c.Parent == id {
				drop(cid)
			}
		}
	}
	for _, id := range orphans {
		drop(id)
	}

	for id := range deleted {
		delete(s.nodes, id)
	}
	for id, e := range s.edges {
		if deleted[e.Start] || deleted[e.End] {
			delete(s.edges, id)
		}
	}
	for _, n := range s.nodes {
		if len(n.Prompts) == 0 {
			continue
		}
		kept := n.Prompts[:0:0]
		for _, p := range n.Prompts {
			if deleted[p] {
				continue
			}
			if n.Children != nil && !contains(n.Children, p) {
				continue
			}
			kept = append(kept, p)
		}
		n.Prompts = kept
	}

	out := make([]string, 0, len(deleted))
	for id := range deleted {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OrphanPromptNode removes id from the parent's prompts only.
func (s *Store) OrphanPromptNode(parentID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.nodes[parentID]
	if !ok {
		return fmt.Errorf("OrphanPromptNode '%s': %w", parentID, domain.ErrNodeNotFound)
	}
	s.orphanPromptLocked(parent, id)
	return nil
}

func (s *Store) orphanPromptLocked(parent *domain.Node, id string) {
	if !contains(parent.Prompts, id) {
		return
	}
	parent.Prompts = without(parent.Prompts, []string{id})
	s.touch(kindNode, parent.ID)
}

// OrphanMatchingNodes walks the descendants of rootID and removes every node
// matching pred from its parent's prompts. It returns the matched ids.
func (s *Store) OrphanMatchingNodes(rootID string, pred func(*domain.Node) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.nodes[rootID]
	if !ok {
		return nil
	}

	var matched []string
	visited := map[string]bool{rootID: true}
	var walk func(n *domain.Node)
	walk = func(n *domain.Node) {
		for _, cid := range n.Children {
			if visited[cid] {
				continue
			}
			visited[cid] = true
			c, ok := s.nodes[cid]
			if !ok {
				continue
			}
			if pred(c.Clone()) {
				matched = append(matched, cid)
				if parent, ok := s.nodes[c.Parent]; ok {
					s.orphanPromptLocked(parent, cid)
				}
			}
			walk(c)
		}
	}
	walk(root)
	return matched
}
