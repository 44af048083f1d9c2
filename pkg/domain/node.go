package domain

// Node represents a unit of the outline tree.
// Parent is the only owning reference; Children and Prompts are index lists
// that are reconciled by the store's orphan sweep rather than on every write.
type Node struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	Parent  string `json:"parent,omitempty" yaml:"parent,omitempty"`

	// Children is the ordered render/traversal order.
	// A nil slice means the node has no children list at all.
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`

	// Prompts lists the children produced by the most recent command run.
	Prompts []string `json:"prompts,omitempty" yaml:"prompts,omitempty"`

	File string   `json:"file,omitempty" yaml:"file,omitempty"`
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Layout fields. Irrelevant to execution, carried through untouched.
	X         float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y         float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Color     string  `json:"color,omitempty" yaml:"color,omitempty"`
	Collapsed bool    `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
}

// Text returns the text used to classify the node: the command if set, the title otherwise.
func (n *Node) Text() string {
	if n.Command != "" {
		return n.Command
	}
	return n.Title
}

// HasPrompt reports whether id is one of the node's current prompts.
func (n *Node) HasPrompt(id string) bool {
	for _, p := range n.Prompts {
		if p == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = append(make([]string, 0, len(n.Children)), n.Children...)
	}
	if n.Prompts != nil {
		c.Prompts = append(make([]string, 0, len(n.Prompts)), n.Prompts...)
	}
	if n.Tags != nil {
		c.Tags = append(make([]string, 0, len(n.Tags)), n.Tags...)
	}
	return &c
}

// NodePatch carries the fields to merge into an existing node.
// Nil fields are left untouched.
type NodePatch struct {
	ID       string    `json:"id"`
	Title    *string   `json:"title,omitempty"`
	Command  *string   `json:"command,omitempty"`
	Parent   *string   `json:"parent,omitempty"`
	Children *[]string `json:"children,omitempty"`
	Prompts  *[]string `json:"prompts,omitempty"`
	File     *string   `json:"file,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// PatchFrom builds a patch that sets every field of n, including empty ones.
func PatchFrom(n Node) NodePatch {
	p := NodePatch{
		ID:      n.ID,
		Title:   &n.Title,
		Command: &n.Command,
		Parent:  &n.Parent,
		File:    &n.File,
	}
	if n.Children != nil {
		p.Children = &n.Children
	}
	if n.Prompts != nil {
		p.Prompts = &n.Prompts
	}
	if n.Tags != nil {
		p.Tags = &n.Tags
	}
	return p
}

// Apply merges the patch into n.
func (p NodePatch) Apply(n *Node) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Command != nil {
		n.Command = *p.Command
	}
	if p.Parent != nil {
		n.Parent = *p.Parent
	}
	if p.Children != nil {
		n.Children = append([]string{}, (*p.Children)...)
	}
	if p.Prompts != nil {
		n.Prompts = append([]string{}, (*p.Prompts)...)
	}
	if p.File != nil {
		n.File = *p.File
	}
	if p.Tags != nil {
		n.Tags = append([]string{}, (*p.Tags)...)
	}
}

// Edge is a directed, labeled relation between two nodes.
// It decorates rendered text and never drives control flow.
type Edge struct {
	ID    string `json:"id" yaml:"id"`
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// Snapshot is the full document a caller loads and saves.
type Snapshot struct {
	Nodes map[string]*Node  `json:"nodes" yaml:"nodes"`
	Edges map[string]*Edge  `json:"edges,omitempty" yaml:"edges,omitempty"`
	Files map[string]string `json:"files,omitempty" yaml:"files,omitempty"`
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Nodes: make(map[string]*Node),
		Edges: make(map[string]*Edge),
		Files: make(map[string]string),
	}
}

// Clone returns a deep copy of the snapshot.
// Nil entries are kept as nil.
func (s *Snapshot) Clone() *Snapshot {
	out := NewSnapshot()
	if s == nil {
		return out
	}
	for id, n := range s.Nodes {
		out.Nodes[id] = n.Clone()
	}
	for id, e := range s.Edges {
		if e == nil {
			out.Edges[id] = nil
			continue
		}
		c := *e
		out.Edges[id] = &c
	}
	for id, f := range s.Files {
		out.Files[id] = f
	}
	return out
}
