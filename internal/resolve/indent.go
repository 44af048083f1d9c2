package resolve

import (
	"strings"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

const indentUnit = "  "

// IndentedText renders a node and its subtree as an indented outline.
//
// Command nodes are transparent: their own text is dropped and their children
// are rendered at the same depth, except /foreach and /summarize nodes whose
// subtrees are skipped entirely.
func (r *Resolver) IndentedText(n *domain.Node, opts IndentOptions) string {
	v := newVisited(n.ID)
	text := n.Title
	if opts.UseCommand {
		text = n.Text()
	}
	if opts.StripCommand {
		if pc, ok := domain.ParseCommand(text); ok {
			text = domain.StripFlags(pc.Body)
		}
	}

	var suppressed map[string]bool
	if opts.FoldEdges {
		suppressed = r.edgeTargets(n)
	}

	var lines []string
	if !opts.ChildrenOnly {
		head := strings.TrimSpace(r.substitute(text, n, v))
		if opts.FoldEdges {
			head += r.foldedEdges(n, v)
		}
		if head != "" {
			lines = append(lines, indentLines(head, opts.Offset))
		}
	}

	for _, cid := range n.Children {
		if !opts.IncludePrompts && n.HasPrompt(cid) {
			continue
		}
		lines = r.renderChild(cid, opts.Offset+1, v, suppressed, lines)
	}
	return strings.Join(lines, "\n")
}

// renderProducer renders a reference target: its text without anchors,
// followed by its indented subtree. A command producer contributes only its subtree.
func (r *Resolver) renderProducer(p *domain.Node, v visited) string {
	var lines []string
	head := strings.TrimSpace(r.substitute(producerText(p), p, v))
	if head != "" && !domain.IsCommand(head) {
		lines = append(lines, head)
	}
	depth := 1
	if len(lines) == 0 {
		depth = 0
	}
	for _, cid := range p.Children {
		lines = r.renderChild(cid, depth, v, nil, lines)
	}
	return strings.Join(lines, "\n")
}

func (r *Resolver) renderChild(id string, depth int, v visited, suppressed map[string]bool, lines []string) []string {
	if v.has(id) || suppressed[id] {
		return lines
	}
	n, ok := r.doc.Node(id)
	if !ok {
		return lines
	}
	v = v.with(id)

	if qt, isCmd := domain.QueryTypeOf(n.Text()); isCmd {
		if qt == domain.QueryForeach || qt == domain.QuerySummarize {
			return lines
		}
		if n.Title == "" || domain.IsCommand(n.Title) {
			for _, cid := range n.Children {
				lines = r.renderChild(cid, depth, v, suppressed, lines)
			}
			return lines
		}
	}

	line := strings.TrimSpace(r.substitute(n.Title, n, v))
	if suppressed != nil {
		line += r.foldedEdges(n, v)
	}
	if line != "" {
		lines = append(lines, indentLines(line, depth))
	}
	for _, cid := range n.Children {
		lines = r.renderChild(cid, depth+1, v, suppressed, lines)
	}
	return lines
}

// foldedEdges renders the outgoing edges of n as " label Target, label Target".
func (r *Resolver) foldedEdges(n *domain.Node, v visited) string {
	var parts []string
	for _, e := range r.doc.OutgoingEdges(n.ID) {
		target, ok := r.doc.Node(e.End)
		if !ok {
			continue
		}
		label := strings.TrimSpace(e.Title)
		if label == "" {
			label = "->"
		}
		name := strings.TrimSpace(r.substitute(target.Title, target, v.with(target.ID)))
		parts = append(parts, label+" "+name)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, ", ")
}

// edgeTargets collects the targets of edges whose source lies in the subtree of root.
func (r *Resolver) edgeTargets(root *domain.Node) map[string]bool {
	targets := make(map[string]bool)
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		n, ok := r.doc.Node(id)
		if !ok {
			return
		}
		for _, e := range r.doc.OutgoingEdges(id) {
			if e.End != root.ID {
				targets[e.End] = true
			}
		}
		for _, cid := range n.Children {
			walk(cid)
		}
	}
	walk(root.ID)
	return targets
}

// indentLines prefixes every line of text with depth indentation units.
func indentLines(text string, depth int) string {
	if depth <= 0 {
		return text
	}
	prefix := strings.Repeat(indentUnit, depth)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
