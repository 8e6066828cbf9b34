/*
Package ports defines the driven ports (interfaces) of the arena.

These interfaces decouple the hub and the orchestrator from storage backends,
generation backends and the transport that carries turns to a session.

# Key Interfaces

  - RunStore: Persists run checkpoints so a crashed run can resume.
  - TranscriptStore: Persists the ordered turns of each session.
  - DistributedLocker: Serializes runs of the same session across replicas.
  - Generator: Calls the generative model.
  - Delivery: Posts a turn to a session by key.
*/
package ports
