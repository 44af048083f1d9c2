// Package resolve implements reference substitution over node text.
//
// Two grammars are supported. Named references: a producer's title begins
// with "@name"; consumers write "@name" (stripped) or "@@name" (substituted).
// Hash references: a producer's title contains "#_name"; consumers write
// "#_name" (stripped) or "##_name" (substituted), with "*" prefix matching and
// ":first"/":last" selection. Named lookups search the whole document; hash
// lookups search outward from the consumer, nearest enclosing scope first.
//
// Resolution never fails. Unmatched tokens and cycles resolve to empty text.
package resolve

import (
	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// Document is the read side of the store the resolver works on.
type Document interface {
	Node(id string) (*domain.Node, bool)
	Roots() []string
	DocumentOrder() []*domain.Node
	OutgoingEdges(id string) []*domain.Edge
}

// Resolver substitutes references against a Document.
type Resolver struct {
	doc Document
}

// New creates a resolver over doc.
func New(doc Document) *Resolver {
	return &Resolver{doc: doc}
}

// IndentOptions parametrizes IndentedText.
type IndentOptions struct {
	// UseCommand renders the root's command text instead of its title.
	UseCommand bool
	// StripCommand drops the order prefix, slash token and flags from a
	// root line that is a command.
	StripCommand bool
	// IncludePrompts keeps the root's prompt children (its previous output).
	IncludePrompts bool
	// Offset is the indentation level of the root line.
	Offset int
	// ChildrenOnly omits the root line; children keep their Offset+1 indentation.
	ChildrenOnly bool
	// FoldEdges appends outgoing edges to the source line ("A is B, is C")
	// and suppresses the separate lines of their targets.
	FoldEdges bool
}

// ResolveSelf substitutes the references of the node's own text only.
func (r *Resolver) ResolveSelf(n *domain.Node, useCommand bool) string {
	text := n.Title
	if useCommand {
		text = n.Text()
	}
	return r.substitute(text, n, newVisited(n.ID))
}

// ResolveText substitutes the references in text as if it were written on node n.
func (r *Resolver) ResolveText(text string, n *domain.Node) string {
	return r.substitute(text, n, newVisited(n.ID))
}

// ResolveChildrenAndSelf renders the body of the node's command followed by
// its children, excluding its previous prompts. Children start at the left
// margin. This is the text sent to a provider when the node runs.
func (r *Resolver) ResolveChildrenAndSelf(n *domain.Node) string {
	return r.IndentedText(n, IndentOptions{UseCommand: true, StripCommand: true, Offset: -1})
}

// visited is an immutable id set; with returns a copy so sibling branches
// never observe each other's entries.
type visited map[string]struct{}

func newVisited(ids ...string) visited {
	v := make(visited, len(ids))
	for _, id := range ids {
		v[id] = struct{}{}
	}
	return v
}

func (v visited) has(id string) bool {
	_, ok := v[id]
	return ok
}

func (v visited) with(id string) visited {
	out := make(visited, len(v)+1)
	for k := range v {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}
