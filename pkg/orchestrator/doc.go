/*
Package orchestrator runs the exchange pipeline durably.

An exchange is six fixed steps: signal-a, gen-a, post-a, signal-b, gen-b, post-b.
The Executor persists the run state after every step, so a run that is
interrupted resumes at its first incomplete step and reuses the outputs of the
steps that already completed. Failed steps are retried with exponential backoff;
when a step exhausts its attempts the run is marked failed and a system notice
is posted to the session.

The Dispatcher is the queue in front of the Executor. It persists runs before
queueing them and re-queues unfinished runs on Recover.
*/
package orchestrator
