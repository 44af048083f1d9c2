/*
Package ports defines the driven ports (interfaces) of the workflow executor.

These interfaces decouple command execution from text-generation providers,
snapshot persistence and cross-instance coordination.

# Key Interfaces

  - Generator: Produces outline text for a provider command (e.g., OpenAI).
  - Classifier: Picks one option for /switch.
  - SnapshotStore: Loads and saves workflow documents (Memory, File, Redis).
  - DistributedLocker: Serializes executions of one workflow across replicas.
*/
package ports
