package tui_test

import (
	"bytes"
	"testing"

	"github.com/delta5-hq/d5-sub001/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
)

func TestOutlineMarkdown(t *testing.T) {
	in := "fruits\n  apple\n    red\n\n  pear"
	assert.Equal(t, "- fruits\n  - apple\n    - red\n  - pear\n", tui.OutlineMarkdown(in))
	assert.Empty(t, tui.OutlineMarkdown(""))
}

func TestRenderer_KeepsText(t *testing.T) {
	out, err := tui.NewRenderer()("- apple\n")
	assert.NoError(t, err)
	assert.Contains(t, out, "apple")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "1.2.3")
}
