/*
Package domain contains the core models of the workflow executor.

It defines the outline document (Nodes, Edges, Files), the request/response
contract used by callers, the command grammar (query types and their slash
patterns) and the sentinel errors shared by every layer. The package is kept
free of I/O and persistence.

# Key Entities

  - Node: a unit of the outline tree, optionally carrying a slash-command.
  - Edge: a labeled relation between two nodes, used only when rendering text.
  - Snapshot: the nodes/edges/files maps a caller loads and saves.
  - Request/Response: the in-process contract of a single execution.
  - QueryType: the name of a command implementation (chat, foreach, steps...).
*/
package domain
