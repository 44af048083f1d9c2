package domain

// Request is the input of a single execution.
// Cell is the node to execute; it is merged into the workflow nodes before dispatch.
type Request struct {
	QueryType     QueryType         `json:"queryType"`
	Cell          *Node             `json:"cell"`
	Context       string            `json:"context,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
	WorkflowID    string            `json:"workflowId,omitempty"`
	WorkflowNodes map[string]*Node  `json:"workflowNodes,omitempty"`
	WorkflowEdges map[string]*Edge  `json:"workflowEdges,omitempty"`
	WorkflowFiles map[string]string `json:"workflowFiles,omitempty"`
	UserID        string            `json:"userId,omitempty"`
}

// Snapshot returns the workflow maps of the request as a deep-copied Snapshot.
func (r *Request) Snapshot() *Snapshot {
	return (&Snapshot{
		Nodes: r.WorkflowNodes,
		Edges: r.WorkflowEdges,
		Files: r.WorkflowFiles,
	}).Clone()
}

// Response mirrors the request and carries the touched objects plus the full mutated maps.
type Response struct {
	QueryType     QueryType         `json:"queryType"`
	Cell          *Node             `json:"cell,omitempty"`
	Context       string            `json:"context,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
	WorkflowID    string            `json:"workflowId,omitempty"`
	UserID        string            `json:"userId,omitempty"`
	NodesChanged  []*Node           `json:"nodesChanged"`
	EdgesChanged  []*Edge           `json:"edgesChanged"`
	WorkflowNodes map[string]*Node  `json:"workflowNodes"`
	WorkflowEdges map[string]*Edge  `json:"workflowEdges"`
	WorkflowFiles map[string]string `json:"workflowFiles"`
}

// ChangedNodeIDs returns the ids of NodesChanged in order.
func (r *Response) ChangedNodeIDs() []string {
	ids := make([]string, 0, len(r.NodesChanged))
	for _, n := range r.NodesChanged {
		ids = append(ids, n.ID)
	}
	return ids
}
