/*
Package session serializes work per session key.

Runs that target the same session must not interleave their turns, so the
orchestrator executes each run inside Manager.WithLock. Locks are reference
counted and dropped once no caller holds or waits for them. An optional
ports.DistributedLocker extends the guarantee across processes sharing a store.
*/
package session
