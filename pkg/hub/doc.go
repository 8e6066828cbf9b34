/*
Package hub implements the per-session hub that owns a transcript and its observers.

Each Hub is a single-writer actor: one goroutine drains a mailbox and is the only code
that touches the transcript and the live connection set. Observers, HTTP handlers and
the orchestrator all reach it through that mailbox, so every fanned-out message turn
has already been committed to the transcript.

The Registry maps session keys to hubs, creating them lazily, and implements
ports.Delivery so a resumed run can post to its session by key.
*/
package hub
