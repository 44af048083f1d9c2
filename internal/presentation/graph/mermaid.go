// Package graph renders workflow documents as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/store"
)

// Overlay highlights the nodes touched by an execution.
type Overlay struct {
	ChangedNodes []string
	Cell         string
}

// GenerateMermaid produces a Mermaid flowchart of the document.
// Shapes follow the node's command:
// - /steps, /foreach, /switch: {{Hexagon}}
// - other commands: [[Subroutine]]
// - output of the parent's last run: ([Stadium])
// - plain text: [Rectangle]
// Child links are solid, output links dotted, labeled edges carry their title.
func GenerateMermaid(snap *domain.Snapshot, overlay *Overlay) string {
	s := store.New(snap)

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, n := range s.DocumentOrder() {
		safeID := sanitizeMermaidID(n.ID)
		opener, closer := shape(s, n)
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label(n), closer))

		for _, cid := range n.Children {
			if !s.Has(cid) {
				continue
			}
			arrow := "-->"
			if n.HasPrompt(cid) {
				arrow = "-.->"
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, sanitizeMermaidID(cid)))
		}

		for _, e := range s.OutgoingEdges(n.ID) {
			title := strings.ReplaceAll(e.Title, "\"", "'")
			if title == "" {
				title = "->"
			}
			sb.WriteString(fmt.Sprintf("    %s == \"%s\" ==> %s\n", safeID, title, sanitizeMermaidID(e.End)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef changed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef cell fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.ChangedNodes {
			safeID := sanitizeMermaidID(id)
			if id == overlay.Cell || seen[safeID] || safeID == "" {
				continue
			}
			seen[safeID] = true
			sb.WriteString(fmt.Sprintf("    class %s changed;\n", safeID))
		}
		if overlay.Cell != "" {
			sb.WriteString(fmt.Sprintf("    class %s cell;\n", sanitizeMermaidID(overlay.Cell)))
		}
	}

	return sb.String()
}

func shape(s *store.Store, n *domain.Node) (string, string) {
	if qt, ok := domain.QueryTypeOf(n.Text()); ok {
		switch qt {
		case domain.QuerySteps, domain.QueryForeach, domain.QuerySwitch:
			return "{{", "}}"
		default:
			return "[[", "]]"
		}
	}
	if parent, ok := s.Node(n.Parent); ok && parent.HasPrompt(n.ID) {
		return "([", "])"
	}
	return "[", "]"
}

func label(n *domain.Node) string {
	text := n.Title
	if text == "" {
		text = n.Command
	}
	if text == "" {
		text = n.ID
	}
	return strings.ReplaceAll(text, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
