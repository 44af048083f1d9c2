package resolve

import (
	"strings"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// lookup returns the substitution for a consumer token, or "" when nothing matches.
func (r *Resolver) lookup(tok token, self *domain.Node, v visited) string {
	var producers []*domain.Node
	if tok.sigil == "@@" {
		producers = r.namedProducers(tok.name)
	} else {
		producers = r.hashProducers(self, tok.name, tok.wildcard)
		switch tok.selector {
		case "first":
			if len(producers) > 0 {
				producers = producers[:1]
			}
		case "last":
			if len(producers) > 0 {
				producers = producers[len(producers)-1:]
			}
		}
	}

	parts := make([]string, 0, len(producers))
	for _, p := range producers {
		if v.has(p.ID) {
			continue
		}
		if text := r.renderProducer(p, v.with(p.ID)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// namedProducers returns, in document order, every node whose title starts with "@name".
func (r *Resolver) namedProducers(name string) []*domain.Node {
	var out []*domain.Node
	for _, n := range r.doc.DocumentOrder() {
		if anchor, ok := anchorOf(producerText(n)); ok && anchor == name {
			out = append(out, n)
		}
	}
	return out
}

// hashProducers searches outward from the consumer. At each level the parent
// is checked first, then the siblings of the current node with their
// subtrees in document order. The first level with a match wins.
func (r *Resolver) hashProducers(consumer *domain.Node, name string, prefix bool) []*domain.Node {
	matches := func(n *domain.Node) bool {
		for _, tag := range hashtagsOf(producerText(n)) {
			if tag == name || (prefix && strings.HasPrefix(tag, name)) {
				return true
			}
		}
		return false
	}

	cur := consumer
	climbed := map[string]bool{consumer.ID: true}
	for {
		var (
			found    []*domain.Node
			siblings []string
		)
		parent, hasParent := r.parentOf(cur)
		if hasParent {
			if matches(parent) {
				found = append(found, parent)
			}
			siblings = parent.Children
		} else {
			siblings = r.doc.Roots()
		}

		seen := map[string]bool{cur.ID: true}
		for _, id := range siblings {
			if id == cur.ID {
				continue
			}
			found = r.collect(id, matches, seen, found)
		}
		if len(found) > 0 || !hasParent || climbed[parent.ID] {
			return found
		}
		climbed[parent.ID] = true
		cur = parent
	}
}

func (r *Resolver) parentOf(n *domain.Node) (*domain.Node, bool) {
	if n.Parent == "" || n.Parent == n.ID {
		return nil, false
	}
	return r.doc.Node(n.Parent)
}

// collect appends the matching nodes of the subtree at id in pre-order.
func (r *Resolver) collect(id string, match func(*domain.Node) bool, seen map[string]bool, acc []*domain.Node) []*domain.Node {
	if seen[id] {
		return acc
	}
	seen[id] = true
	n, ok := r.doc.Node(id)
	if !ok {
		return acc
	}
	if match(n) {
		acc = append(acc, n)
	}
	for _, cid := range n.Children {
		acc = r.collect(cid, match, seen, acc)
	}
	return acc
}
