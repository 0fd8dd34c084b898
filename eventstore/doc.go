// Package eventstore defines the data model shared by the optimistic
// commit pipeline and stream-projection engine: the immutable records
// (EventMessage, CommitAttempt, Commit, Snapshot) that move between a
// client-owned Stream, the EventStore facade, and a Persistence backend,
// along with the failure taxonomy callers match against.
//
// The package is deliberately inert: it holds no mutable state and
// performs no I/O. Validate exists because a CommitAttempt built outside
// of stream.Stream (eg, by a backend's own tests) should still be
// checked against the structural invariants before it reaches a
// Persistence implementation.
package eventstore
