// Package tui renders outlines for terminals.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a function that renders markdown using glamour.
// Output wraps at the width of stdout when it is a terminal.
func NewRenderer() func(string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return r.Render
}

// OutlineMarkdown turns an indented outline into a nested markdown list.
// Two spaces of indentation are one level.
func OutlineMarkdown(outline string) string {
	var b strings.Builder
	for _, line := range strings.Split(outline, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		depth := (len(line) - len(trimmed)) / 2
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString("- ")
		b.WriteString(trimmed)
		b.WriteByte('\n')
	}
	return b.String()
}
