// Package persistence defines the abstract append-only log the core
// depends on. It is the boundary between the
// optimistic commit pipeline and a concrete storage driver: the core
// ships no backend of its own beyond the reference implementation in
// eventstore/memstore, used for its own tests and for callers without
// a durability requirement.
package persistence

import (
	"context"

	"go.eventstore.dev/core/eventstore"
)

// CommitIterator is a finite, restartable, side-effect-free cursor over
// a sequence of commits, modeled on broker/client.Reader's pull style
// rather than a fully materialized slice so a backend can stream large
// histories without loading them entirely into memory.
type CommitIterator interface {
	// Next returns the next Commit in the sequence, or (nil, nil) once
	// exhausted. It returns an error only for backend faults; reaching
	// the end of the sequence is not an error.
	Next(ctx context.Context) (*eventstore.Commit, error)
	// Close releases resources held by the iterator. Safe to call more
	// than once.
	Close() error
}

// Persistence is the append-only log contract a storage backend must
// satisfy. Every method may block on I/O; implementations must
// guarantee atomicity of a single Commit and must be safe for
// concurrent use by multiple goroutines.
type Persistence interface {
	// GetFrom returns commits of (bucketID, streamID) whose revision
	// range intersects [minRevision, maxRevision], ordered by
	// commitSequence ascending. maxRevision <= 0 means unbounded.
	GetFrom(ctx context.Context, bucketID eventstore.Bucket, streamID string, minRevision, maxRevision int64) (CommitIterator, error)

	// GetFromCheckpoint returns all commits across all streams of
	// bucketID with checkpoint strictly greater than checkpoint, in
	// checkpoint order.
	GetFromCheckpoint(ctx context.Context, bucketID eventstore.Bucket, checkpoint int64) (CommitIterator, error)

	// Commit durably appends attempt, assigning it a CheckpointToken
	// strictly greater than any previously assigned. It fails with
	// eventstore.ErrConcurrencyConflict, eventstore.ErrDuplicateCommit,
	// or eventstore.ErrStorageUnavailable.
	Commit(ctx context.Context, attempt eventstore.CommitAttempt) (*eventstore.Commit, error)

	// GetSnapshot returns the highest-revision snapshot of (bucketID,
	// streamID) not exceeding maxRevision, or nil if none exists.
	// maxRevision <= 0 means unbounded.
	GetSnapshot(ctx context.Context, bucketID eventstore.Bucket, streamID string, maxRevision int64) (*eventstore.Snapshot, error)

	// AddSnapshot durably records snap. It returns false, without
	// error, if the target stream no longer exists or snap is stale
	// (superseded by an equal-or-higher revision snapshot already held).
	AddSnapshot(ctx context.Context, snap eventstore.Snapshot) (bool, error)

	// GetStreamsToSnapshot returns streams of bucketID whose
	// (headRevision - snapshotRevision) >= minThreshold.
	GetStreamsToSnapshot(ctx context.Context, bucketID eventstore.Bucket, minThreshold int64) ([]eventstore.StreamHead, error)

	// Initialize prepares the backend (schema, indices). Idempotent.
	Initialize(ctx context.Context) error

	// Purge permanently deletes all streams of bucketID. An empty
	// bucketID purges every bucket.
	Purge(ctx context.Context, bucketID eventstore.Bucket) error

	// Drop tears down the backend entirely, including any schema
	// Initialize created.
	Drop(ctx context.Context) error

	// DeleteStream permanently deletes (bucketID, streamID).
	DeleteStream(ctx context.Context, bucketID eventstore.Bucket, streamID string) error
}
