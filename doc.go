/*
Package arena hosts a debate between two generative participants in front of
live observers.

An observer connected to a session starts an exchange by sending a topic. The
topic is appended to the session transcript and a run of the exchange pipeline
is handed to the orchestrator, which asks Agent A to argue for the topic and
Agent B to refute it. Every step of a run is checkpointed, so a run interrupted
by a crash resumes where it stopped instead of asking a participant twice.

# Layout

  - pkg/domain: turns, runs, wire events and errors.
  - pkg/transcript: the append-only transcript of one session.
  - pkg/hub: the per-session actor that owns a transcript and its observers.
  - pkg/orchestrator: the durable six-step pipeline and its work queue.
  - pkg/ports and pkg/adapters: storage, generation and delivery backends.

The arena command (cmd/arena) wires these into an HTTP and WebSocket server.
*/
package arena
