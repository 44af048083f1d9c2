package clone_test

import (
	"testing"

	"github.com/delta5-hq/d5-sub001/internal/clone"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClone_ThreeLevels(t *testing.T) {
	nodes := map[string]*domain.Node{
		"r":  {ID: "r", Title: "#1 /chatgpt root", Parent: "old", Children: []string{"c1", "c2", "ghost"}, Prompts: []string{"c2"}},
		"c1": {ID: "c1", Title: "child one", Parent: "r", Children: []string{"g1"}},
		"c2": {ID: "c2", Title: "child two", Parent: "r"},
		"g1": {ID: "g1", Title: "grandchild", Parent: "c1", Tags: []string{"t"}},
	}
	seq := ids.NewSequence("n")

	out := clone.Clone("r", nodes, "target", seq.New)
	require.Len(t, out, 4)

	originals := map[string]bool{"r": true, "c1": true, "c2": true, "g1": true, "ghost": true}
	fresh := make(map[string]bool)
	for _, n := range out {
		assert.False(t, originals[n.ID], "clone kept original id %s", n.ID)
		assert.False(t, fresh[n.ID], "id %s allocated twice", n.ID)
		fresh[n.ID] = true
	}
	for _, n := range out {
		for _, id := range append(append([]string{}, n.Children...), n.Prompts...) {
			assert.True(t, fresh[id], "reference %s of %s does not point to a clone", id, n.ID)
		}
	}

	root, c1, g1, c2 := out[0], out[1], out[2], out[3]
	assert.Equal(t, "target", root.Parent)
	assert.Equal(t, "#1 /chatgpt root", root.Title)
	assert.Equal(t, []string{c1.ID, c2.ID}, root.Children)
	assert.Equal(t, []string{c2.ID}, root.Prompts)
	assert.Equal(t, root.ID, c1.Parent)
	assert.Equal(t, c1.ID, g1.Parent)
	assert.Equal(t, []string{"t"}, g1.Tags)
	assert.Nil(t, c2.Children)

	assert.Equal(t, "old", nodes["r"].Parent)
	assert.Equal(t, []string{"c1", "c2", "ghost"}, nodes["r"].Children)
}

func TestClone_Cycle(t *testing.T) {
	nodes := map[string]*domain.Node{
		"a": {ID: "a", Children: []string{"b"}},
		"b": {ID: "b", Parent: "a", Children: []string{"a"}},
	}
	out := clone.Clone("a", nodes, "", ids.NewSequence("x").New)
	require.Len(t, out, 2)
	assert.Equal(t, []string{out[0].ID}, out[1].Children)
}

func TestClone_MissingRoot(t *testing.T) {
	assert.Empty(t, clone.Clone("none", map[string]*domain.Node{}, "p", ids.NewSequence("x").New))
}

func TestClone_DropsStalePrompts(t *testing.T) {
	nodes := map[string]*domain.Node{
		"r":     {ID: "r", Children: []string{"a"}, Prompts: []string{"stale", "a", "gone"}},
		"a":     {ID: "a", Parent: "r"},
		"stale": {ID: "stale", Parent: "elsewhere"},
	}
	out := clone.Clone("r", nodes, "", ids.NewSequence("x").New)
	require.Len(t, out, 2)

	assert.Equal(t, []string{out[1].ID}, out[0].Prompts)
	assert.Equal(t, []string{"stale", "a", "gone"}, nodes["r"].Prompts)
}
