package store_test

import (
	"testing"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportText_Outline(t *testing.T) {
	s := newStore(t, &domain.Node{ID: "cell", Title: "/chatgpt list", Children: []string{}})

	text := "- Fruits\n  - apple\n  - pear\n\n- Vegetables\n\t- leek\n"
	top, err := s.ImportText("cell", text)
	require.NoError(t, err)
	require.Len(t, top, 2)

	cell, _ := s.Node("cell")
	assert.Equal(t, top, cell.Prompts)
	assert.Equal(t, top, cell.Children)

	fruits, _ := s.Node(top[0])
	assert.Equal(t, "Fruits", fruits.Title)
	children := s.Children(top[0])
	require.Len(t, children, 2)
	assert.Equal(t, "apple", children[0].Title)
	assert.Equal(t, "pear", children[1].Title)

	veg := s.Children(top[1])
	require.Len(t, veg, 1)
	assert.Equal(t, "leek", veg[0].Title)
}

func TestImportText_ReplacesPreviousPrompts(t *testing.T) {
	s := newStore(t, &domain.Node{ID: "cell", Children: []string{"note"}})

	first, err := s.ImportText("cell", "1. one\n2. two")
	require.NoError(t, err)
	second, err := s.ImportText("cell", "three")
	require.NoError(t, err)

	cell, _ := s.Node("cell")
	assert.Equal(t, second, cell.Prompts)
	assert.Equal(t, append([]string{"note"}, second...), cell.Children)

	removed := s.RemoveOrphanedNodes()
	assert.ElementsMatch(t, first, removed)
}

func TestImportText_Empty(t *testing.T) {
	s := newStore(t, &domain.Node{ID: "cell", Prompts: []string{"x"}, Children: []string{"x"}}, &domain.Node{ID: "x", Parent: "cell"})

	top, err := s.ImportText("cell", "  \n\n")
	require.NoError(t, err)
	assert.Empty(t, top)

	cell, _ := s.Node("cell")
	assert.Equal(t, []string{"x"}, cell.Prompts)
}
