/*
Package workflow executes slash-commands embedded in the nodes of an outline tree.

A workflow document is a tree of nodes (plus labeled edges and attached
files). A node whose title or command starts with a slash-directive such as
"/chatgpt", "/foreach", "/steps" or "/switch" can be executed: provider
commands send the node's resolved text to a text generator and import the
answer as indented child nodes, while control-flow commands schedule other
commands over the tree.

# Concept

Every Execute call works on a private copy of the caller's document. The
engine never persists anything: the response carries the touched nodes and
edges in first-touch order plus the full mutated maps, and the caller decides
what to store. Text generators and the /switch classifier are ports, so the
engine runs against OpenAI-compatible APIs, stubs or anything in between.

# References

Node text may reference other nodes. "@@name" is replaced by the subtree of
the node whose title starts with "@name"; "##_name" by the nearest nodes
whose title contains "#_name". Unknown references and cycles resolve to
empty text.

# Usage

	eng := workflow.New(
		workflow.WithFallbackGenerator(openai.NewGenerator(client)),
	)

	resp, err := eng.Execute(ctx, domain.Request{
		QueryType: domain.QuerySteps,
		Cell:      cell,
		WorkflowNodes: nodes,
	})
	if err != nil {
		log.Fatal(err)
	}
	for _, n := range resp.NodesChanged {
		log.Println(n.ID, n.Title)
	}
*/
package workflow
