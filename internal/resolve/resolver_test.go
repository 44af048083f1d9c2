package resolve_test

import (
	"testing"

	"github.com/delta5-hq/d5-sub001/internal/resolve"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, title, parent string, children ...string) *domain.Node {
	n := &domain.Node{ID: id, Title: title, Parent: parent}
	if len(children) > 0 {
		n.Children = children
	}
	return n
}

func setup(t *testing.T, nodes []*domain.Node, edges ...*domain.Edge) (*resolve.Resolver, *store.Store) {
	t.Helper()
	snap := domain.NewSnapshot()
	for _, n := range nodes {
		snap.Nodes[n.ID] = n
	}
	for _, e := range edges {
		snap.Edges[e.ID] = e
	}
	s := store.New(snap)
	return resolve.New(s), s
}

func mustNode(t *testing.T, s *store.Store, id string) *domain.Node {
	t.Helper()
	n, ok := s.Node(id)
	require.True(t, ok, "node %s", id)
	return n
}

func TestResolveSelf_Identity(t *testing.T) {
	texts := []string{
		"plain text",
		"mail me at a@b.com",
		"#1 ordered note",
		"  spaced   out  ",
		"bare @@ marker and @@@ too",
	}
	for _, text := range texts {
		r, s := setup(t, []*domain.Node{node("n", text, "")})
		assert.Equal(t, text, r.ResolveSelf(mustNode(t, s, "n"), false))
	}
}

func TestResolveSelf_UndefinedReferencesVanish(t *testing.T) {
	r, s := setup(t, []*domain.Node{
		node("a", "a @@missing b", ""),
		node("b", "##_nothing tail", ""),
		node("c", "head @@missing", ""),
	})
	assert.Equal(t, "a b", r.ResolveSelf(mustNode(t, s, "a"), false))
	assert.Equal(t, "tail", r.ResolveSelf(mustNode(t, s, "b"), false))
	assert.Equal(t, "head", r.ResolveSelf(mustNode(t, s, "c"), false))
}

func TestResolveSelf_Named(t *testing.T) {
	r, s := setup(t, []*domain.Node{
		node("p", "@intro Hello", "", "w"),
		node("w", "world", "p"),
		node("c", "Say: @@intro", ""),
	})
	assert.Equal(t, "Say: Hello\n  world", r.ResolveSelf(mustNode(t, s, "c"), false))
	assert.Equal(t, "Hello", r.ResolveSelf(mustNode(t, s, "p"), false))
}

func TestResolveSelf_NamedCommandProducer(t *testing.T) {
	r, s := setup(t, []*domain.Node{
		node("p", "@poem /chatgpt write a poem", "", "l1", "l2"),
		node("l1", "roses", "p"),
		node("l2", "violets", "p"),
		node("c", "Critique @@poem", ""),
	})
	assert.Equal(t, "Critique roses\nviolets", r.ResolveSelf(mustNode(t, s, "c"), false))
}

func TestResolveSelf_Cycle(t *testing.T) {
	r, s := setup(t, []*domain.Node{
		node("a", "@a uses @@b", ""),
		node("b", "@b uses @@a", ""),
	})
	assert.Equal(t, "uses uses", r.ResolveSelf(mustNode(t, s, "a"), false))
}

func hashTree() []*domain.Node {
	return []*domain.Node{
		node("R", "root", "", "P1", "P2"),
		node("P1", "section one", "R", "c", "near"),
		node("c", "use ##_fact", "P1"),
		node("near", "#_fact near value", "P1"),
		node("P2", "section two", "R", "far", "d"),
		node("far", "#_fact far value", "P2"),
		node("d", "see ##_fact", "P2"),
		node("top", "top ##_fact:last", ""),
		node("wild", "use ##_fa*", "P1"),
	}
}

func TestResolveSelf_HashNearestScope(t *testing.T) {
	r, s := setup(t, hashTree())
	assert.Equal(t, "use near value", r.ResolveSelf(mustNode(t, s, "c"), false))
	assert.Equal(t, "see far value", r.ResolveSelf(mustNode(t, s, "d"), false))
	assert.Equal(t, "use near value", r.ResolveSelf(mustNode(t, s, "wild"), false))
}

func TestResolveSelf_HashSelectors(t *testing.T) {
	nodes := hashTree()
	r, s := setup(t, nodes)
	assert.Equal(t, "top far value", r.ResolveSelf(mustNode(t, s, "top"), false))

	r, s = setup(t, append(nodes, node("top2", "##_fact:first", ""), node("all", "##_fact", "")))
	assert.Equal(t, "near value", r.ResolveSelf(mustNode(t, s, "top2"), false))
	assert.Equal(t, "near value\nfar value", r.ResolveSelf(mustNode(t, s, "all"), false))
}

func TestResolveChildrenAndSelf(t *testing.T) {
	cell := node("cell", "/chatgpt summarize", "", "n1", "fe", "st", "out")
	cell.Prompts = []string{"out"}
	r, s := setup(t, []*domain.Node{
		cell,
		node("n1", "point one", "cell", "n1a"),
		node("n1a", "detail\nmore", "n1"),
		node("fe", "/foreach /chatgpt @@", "cell", "skip"),
		node("skip", "skip me", "fe"),
		node("st", "/steps", "cell", "inner"),
		node("inner", "inner", "st"),
		node("out", "previous answer", "cell"),
	})

	got := r.ResolveChildrenAndSelf(mustNode(t, s, "cell"))
	assert.Equal(t, "summarize\npoint one\n  detail\n  more\ninner", got)

	cell.Command = "#2 /claude condense --lang=en @@missing"
	r, s = setup(t, []*domain.Node{cell, node("n1", "point one", "cell")})
	assert.Equal(t, "condense\npoint one", r.ResolveChildrenAndSelf(mustNode(t, s, "cell")))

	withPrompts := r.IndentedText(mustNode(t, s, "cell"), resolve.IndentOptions{IncludePrompts: true, Offset: 1})
	assert.Equal(t, "  /chatgpt summarize\n    point one\n      detail\n      more\n    inner\n    previous answer", withPrompts)
}

func TestIndentedText_FoldEdges(t *testing.T) {
	r, s := setup(t, []*domain.Node{
		node("x", "Topics", "", "a", "b", "c"),
		node("a", "Alice", "x"),
		node("b", "Bob", "x"),
		node("c", "Carol", "x"),
	},
		&domain.Edge{ID: "e1", Start: "a", End: "b", Title: "knows"},
		&domain.Edge{ID: "e2", Start: "a", End: "c"},
	)

	got := r.IndentedText(mustNode(t, s, "x"), resolve.IndentOptions{FoldEdges: true})
	assert.Equal(t, "Topics\n  Alice knows Bob, -> Carol", got)

	plain := r.IndentedText(mustNode(t, s, "x"), resolve.IndentOptions{})
	assert.Equal(t, "Topics\n  Alice\n  Bob\n  Carol", plain)
}
