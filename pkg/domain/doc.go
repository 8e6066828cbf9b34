/*
Package domain contains the core models of the arena.

It defines what flows between observers, the session hub and the step orchestrator.
This package is kept pure and free of I/O or persistence concerns.

# Key Entities

  - Turn: One unit of content (message, status indicator or system notice).
  - Run: One execution of the exchange pipeline and its per-step checkpoints.
  - InboundEvent: The closed set of events an observer may send.
  - LifecycleHooks: Callbacks fired by the orchestrator as steps progress.
*/
package domain
