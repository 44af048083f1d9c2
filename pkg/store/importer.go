package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

var bulletRe = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)

type outlineLine struct {
	depth int
	text  string
}

// parseOutline splits generated text into indented lines.
// A tab or two spaces is one level; list bullets and numbering are dropped.
func parseOutline(text string) []outlineLine {
	var lines []outlineLine
	base := -1
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		expanded := strings.ReplaceAll(raw, "\t", "  ")
		trimmed := strings.TrimLeft(expanded, " ")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		indent := len(expanded) - len(trimmed)
		if base < 0 {
			base = indent
		}
		depth := (indent - base) / 2
		if depth < 0 {
			depth = 0
		}
		clean := strings.TrimSpace(bulletRe.ReplaceAllString(trimmed, ""))
		if clean == "" {
			continue
		}
		lines = append(lines, outlineLine{depth: depth, text: clean})
	}
	return lines
}

// ImportText materializes generated outline text as nodes under parentID.
// Top-level lines become the parent's prompts; deeper lines nest under the
// closest shallower line. Empty text leaves the parent untouched.
func (s *Store) ImportText(parentID, text string) ([]string, error) {
	lines := parseOutline(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("ImportText '%s': %w", parentID, domain.ErrNodeNotFound)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	var top []string
	stack := []string{}
	for _, l := range lines {
		depth := l.depth
		if depth > len(stack) {
			depth = len(stack)
		}
		stack = stack[:depth]

		owner := parentID
		if depth > 0 {
			owner = stack[depth-1]
		}
		n := s.createLocked(domain.Node{Title: l.text, Parent: owner}, false)
		if depth == 0 {
			top = append(top, n.ID)
		}
		stack = append(stack, n.ID)
	}

	parent.Prompts = append([]string{}, top...)
	s.touch(kindNode, parentID)
	return top, nil
}
