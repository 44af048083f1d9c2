// Package store implements the per-request document store.
//
// A Store owns the nodes, edges and files of one execution. It is built from a
// caller snapshot, mutated in place by every command of the request and
// discarded after the response is serialized. Parent is the only owning
// reference between nodes; Children and Prompts are index lists reconciled by
// RemoveOrphanedNodes.
//
// All methods are safe for concurrent use. Read methods return deep copies so
// callers never observe a node while another goroutine mutates it.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
	"github.com/delta5-hq/d5-sub001/pkg/ids"
)

type refKind int

const (
	kindNode refKind = iota
	kindEdge
)

type ref struct {
	kind refKind
	id   string
}

// Store is the mutable document of a single request.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*domain.Node
	edges map[string]*domain.Edge
	files map[string]string

	output []ref
	seen   map[ref]bool

	ids ids.Generator
}

// Option configures the Store.
type Option func(*Store)

// WithIDGenerator sets the generator used for new node and edge ids.
func WithIDGenerator(gen ids.Generator) Option {
	return func(s *Store) {
		s.ids = gen
	}
}

// New creates a store over a deep copy of snap. A nil snapshot yields an empty store.
// Nil nodes and edges are dropped; use Open to reject them instead.
func New(snap *domain.Snapshot, opts ...Option) *Store {
	c := snap.Clone()
	for id, n := range c.Nodes {
		if n == nil {
			delete(c.Nodes, id)
		}
	}
	for id, e := range c.Edges {
		if e == nil {
			delete(c.Edges, id)
		}
	}
	s := &Store{
		nodes: c.Nodes,
		edges: c.Edges,
		files: c.Files,
		seen:  make(map[ref]bool),
		ids:   ids.UUID{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open validates snap and creates a store over a deep copy of it.
func Open(snap *domain.Snapshot, opts ...Option) (*Store, error) {
	if err := Validate(snap); err != nil {
		return nil, err
	}
	return New(snap, opts...), nil
}

// Validate reports the first malformed entry of snap: a nil node or edge, an
// id that differs from its map key, or a node that fails the mutation checks.
// Keys are visited in sorted order so the reported entry is stable.
func Validate(snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	for _, key := range sortedKeys(snap.Nodes) {
		n := snap.Nodes[key]
		switch {
		case n == nil:
			return &domain.ValidationError{Op: "Open", ID: key, Reason: "nil node"}
		case n.ID != key:
			return &domain.ValidationError{Op: "Open", ID: key, Reason: fmt.Sprintf("node id %q does not match its key", n.ID)}
		}
		if err := validateNode("Open", n); err != nil {
			return err
		}
	}
	for _, key := range sortedKeys(snap.Edges) {
		e := snap.Edges[key]
		switch {
		case e == nil:
			return &domain.ValidationError{Op: "Open", ID: key, Reason: "nil edge"}
		case e.ID != key:
			return &domain.ValidationError{Op: "Open", ID: key, Reason: fmt.Sprintf("edge id %q does not match its key", e.ID)}
		case e.Start == "" || e.End == "":
			return &domain.ValidationError{Op: "Open", ID: key, Reason: "start and end are required"}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CreateNode inserts a node. The supplied id is honored only if it is unused.
// When the parent exists the new id is appended to its children, after
// removing the ids of the parent's previous prompts. With isPrompt the
// parent's prompts become exactly the new id.
func (s *Store) CreateNode(n domain.Node, isPrompt bool) (*domain.Node, error) {
	if err := validateNode("CreateNode", &n); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(n, isPrompt).Clone(), nil
}

func (s *Store) createLocked(n domain.Node, isPrompt bool) *domain.Node {
	id := n.ID
	if id == "" || s.nodes[id] != nil {
		id = ids.Fresh(s.ids, s.nodeTaken)
	}
	node := n.Clone()
	node.ID = id

	parent := s.nodes[node.Parent]
	if node.Parent != "" && parent != nil {
		s.touch(kindNode, parent.ID)
	}
	s.nodes[id] = node
	s.touch(kindNode, id)

	if node.Parent != "" && parent != nil {
		s.attachLocked(parent, id)
		if isPrompt {
			parent.Prompts = []string{id}
		}
	}
	return node
}

// attachLocked appends id to the parent's children, dropping the parent's previous prompts first.
func (s *Store) attachLocked(parent *domain.Node, id string) {
	if len(parent.Prompts) > 0 {
		parent.Children = without(parent.Children, parent.Prompts)
	}
	if !contains(parent.Children, id) {
		parent.Children = append(parent.Children, id)
	}
}

// EditNode merges the patch into an existing node, or creates the node if absent.
func (s *Store) EditNode(p domain.NodePatch) (*domain.Node, error) {
	if p.ID == "" {
		return nil, &domain.ValidationError{Op: "EditNode", Reason: "id is required"}
	}
	if err := validatePatch(&p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[p.ID]
	if !ok {
		fresh := domain.Node{ID: p.ID}
		p.Apply(&fresh)
		return s.createLocked(fresh, false).Clone(), nil
	}
	p.Apply(n)
	s.touch(kindNode, n.ID)
	return n.Clone(), nil
}

// SetCommand overwrites the command of an existing node.
func (s *Store) SetCommand(id, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("SetCommand '%s': %w", id, domain.ErrNodeNotFound)
	}
	n.Command = command
	s.touch(kindNode, id)
	return nil
}

// AddPromptsToNode replaces the node's prompts verbatim.
func (s *Store) AddPromptsToNode(id string, prompts []string) error {
	for _, p := range prompts {
		if p == "" {
			return &domain.ValidationError{Op: "AddPromptsToNode", ID: id, Reason: "empty prompt id"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("AddPromptsToNode '%s': %w", id, domain.ErrNodeNotFound)
	}
	n.Prompts = append([]string{}, prompts...)
	s.touch(kindNode, id)
	return nil
}

// ImportNodes inserts pre-built nodes keeping their ids.
// Nodes whose parent is not part of the batch are attached to that existing
// parent with CreateNode semantics.
func (s *Store) ImportNodes(nodes []*domain.Node) error {
	batch := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil || n.ID == "" {
			return &domain.ValidationError{Op: "ImportNodes", Reason: "node without id"}
		}
		if err := validateNode("ImportNodes", n); err != nil {
			return err
		}
		batch[n.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range nodes {
		if _, taken := s.nodes[n.ID]; taken {
			return &domain.ValidationError{Op: "ImportNodes", ID: n.ID, Reason: "id already in use"}
		}
	}
	for _, n := range nodes {
		node := n.Clone()
		s.nodes[node.ID] = node
		if !batch[node.Parent] {
			if parent := s.nodes[node.Parent]; node.Parent != "" && parent != nil {
				s.touch(kindNode, parent.ID)
				s.attachLocked(parent, node.ID)
			}
		}
		s.touch(kindNode, node.ID)
	}
	return nil
}

// CreateEdge inserts a new edge. It fails with domain.ErrDuplicateEdge if the id exists.
func (s *Store) CreateEdge(e domain.Edge) (*domain.Edge, error) {
	if e.Start == "" || e.End == "" {
		return nil, &domain.ValidationError{Op: "CreateEdge", ID: e.ID, Reason: "start and end are required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = ids.Fresh(s.ids, s.edgeTaken)
	} else if _, exists := s.edges[e.ID]; exists {
		return nil, fmt.Errorf("CreateEdge '%s': %w", e.ID, domain.ErrDuplicateEdge)
	}
	edge := e
	s.edges[e.ID] = &edge
	s.touch(kindEdge, e.ID)
	c := edge
	return &c, nil
}

// EditEdge merges non-empty fields into an existing edge, or creates it.
func (s *Store) EditEdge(e domain.Edge) (*domain.Edge, error) {
	if e.ID == "" {
		return nil, &domain.ValidationError{Op: "EditEdge", Reason: "id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.edges[e.ID]
	if !ok {
		if e.Start == "" || e.End == "" {
			return nil, &domain.ValidationError{Op: "EditEdge", ID: e.ID, Reason: "start and end are required"}
		}
		edge := e
		cur = &edge
		s.edges[e.ID] = cur
	} else {
		if e.Start != "" {
			cur.Start = e.Start
		}
		if e.End != "" {
			cur.End = e.End
		}
		if e.Title != "" {
			cur.Title = e.Title
		}
	}
	s.touch(kindEdge, e.ID)
	c := *cur
	return &c, nil
}

// SetFile stores file content under id.
func (s *Store) SetFile(id, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = content
}

// File returns the content of a file.
func (s *Store) File(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	return f, ok
}

// Node returns a copy of the node.
func (s *Store) Node(id string) (*domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Has reports whether the node exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Children returns copies of the existing children of id, in order.
func (s *Store) Children(id string) []*domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*domain.Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c, ok := s.nodes[cid]; ok {
			out = append(out, c.Clone())
		}
	}
	return out
}

// Edge returns a copy of the edge.
func (s *Store) Edge(id string) (*domain.Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, false
	}
	c := *e
	return &c, true
}

// OutgoingEdges returns copies of the edges starting at id, sorted by edge id.
func (s *Store) OutgoingEdges(id string) []*domain.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Edge
	for _, e := range s.edges {
		if e.Start == id {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Roots returns the ids of nodes without an existing parent, sorted.
func (s *Store) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootsLocked()
}

func (s *Store) rootsLocked() []string {
	var roots []string
	for id, n := range s.nodes {
		if _, ok := s.nodes[n.Parent]; n.Parent == "" || !ok {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// DocumentOrder returns copies of every reachable node in pre-order, roots first.
func (s *Store) DocumentOrder() []*domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Node, 0, len(s.nodes))
	visited := make(map[string]bool, len(s.nodes))
	var walk func(id string)
	walk = func(id string) {
		n, ok := s.nodes[id]
		if !ok || visited[id] {
			return
		}
		visited[id] = true
		out = append(out, n.Clone())
		for _, cid := range n.Children {
			walk(cid)
		}
	}
	for _, root := range s.rootsLocked() {
		walk(root)
	}
	return out
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&domain.Snapshot{Nodes: s.nodes, Edges: s.edges, Files: s.files}).Clone()
}

// Output resolves the output log to copies of live objects, dropping deleted ones.
func (s *Store) Output() ([]*domain.Node, []*domain.Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := []*domain.Node{}
	edges := []*domain.Edge{}
	for _, r := range s.output {
		switch r.kind {
		case kindNode:
			if n, ok := s.nodes[r.id]; ok {
				nodes = append(nodes, n.Clone())
			}
		case kindEdge:
			if e, ok := s.edges[r.id]; ok {
				c := *e
				edges = append(edges, &c)
			}
		}
	}
	return nodes, edges
}

// NewID returns an id unused by any node.
func (s *Store) NewID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ids.Fresh(s.ids, s.nodeTaken)
}

func (s *Store) touch(kind refKind, id string) {
	r := ref{kind: kind, id: id}
	if s.seen[r] {
		return
	}
	s.seen[r] = true
	s.output = append(s.output, r)
}

func (s *Store) nodeTaken(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

func (s *Store) edgeTaken(id string) bool {
	_, ok := s.edges[id]
	return ok
}

func validateNode(op string, n *domain.Node) error {
	for _, c := range n.Children {
		if c == "" {
			return &domain.ValidationError{Op: op, ID: n.ID, Reason: "empty child id"}
		}
		if n.ID != "" && c == n.ID {
			return &domain.ValidationError{Op: op, ID: n.ID, Reason: "node listed as its own child"}
		}
	}
	for _, p := range n.Prompts {
		if p == "" {
			return &domain.ValidationError{Op: op, ID: n.ID, Reason: "empty prompt id"}
		}
	}
	if n.ID != "" && n.Parent == n.ID {
		return &domain.ValidationError{Op: op, ID: n.ID, Reason: "node is its own parent"}
	}
	return nil
}

func validatePatch(p *domain.NodePatch) error {
	n := domain.Node{ID: p.ID}
	p.Apply(&n)
	return validateNode("EditNode", &n)
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func without(list []string, drop []string) []string {
	if len(drop) == 0 {
		return list
	}
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !skip[v] {
			out = append(out, v)
		}
	}
	return out
}
