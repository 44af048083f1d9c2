package workflow

import (
	"fmt"

	"github.com/delta5-hq/d5-sub001/internal/resolve"
	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/store"
)

// RenderOptions parametrizes RenderOutline.
type RenderOptions struct {
	UseCommand     bool `json:"useCommand,omitempty"`
	IncludePrompts bool `json:"includePrompts,omitempty"`
	FoldEdges      bool `json:"foldEdges,omitempty"`
}

// RenderOutline resolves the references of a node and its subtree and
// returns them as an indented outline. An empty nodeID renders every root.
func RenderOutline(snap *domain.Snapshot, nodeID string, opts RenderOptions) (string, error) {
	s, err := store.Open(snap)
	if err != nil {
		return "", err
	}
	r := resolve.New(s)
	io := resolve.IndentOptions{
		UseCommand:     opts.UseCommand,
		IncludePrompts: opts.IncludePrompts,
		FoldEdges:      opts.FoldEdges,
	}

	if nodeID != "" {
		n, ok := s.Node(nodeID)
		if !ok {
			return "", fmt.Errorf("render: %w: %s", domain.ErrNodeNotFound, nodeID)
		}
		return r.IndentedText(n, io), nil
	}

	var out string
	for _, id := range s.Roots() {
		n, _ := s.Node(id)
		text := r.IndentedText(n, io)
		if text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += text
	}
	return out, nil
}
