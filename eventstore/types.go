package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// Bucket is a namespace identifier for streams. Streams sharing a
// streamID in different buckets are entirely independent.
type Bucket = string

// DefaultBucket is used by callers which have no multi-tenancy need.
const DefaultBucket Bucket = "default"

// EventMessage is an opaque event persisted within a stream. The core
// never inspects Headers values or Body; both are round-tripped as-is.
type EventMessage struct {
	Headers map[string]interface{}
	Body    []byte
}

// CommitAttempt is a client-built, transient description of a batch of
// events a Stream wishes to durably commit. See Validate for the
// structural invariants an attempt must satisfy before being handed to
// a Persistence implementation.
type CommitAttempt struct {
	BucketID        Bucket
	StreamID        string
	StreamRevision  int64
	CommitID        uuid.UUID
	CommitSequence  int64
	CommitStamp     time.Time
	Headers         map[string]interface{}
	Events          []EventMessage
}

// Commit is the durable record of a successfully persisted CommitAttempt,
// additionally carrying the store-assigned CheckpointToken that
// linearizes it against every other commit in the bucket.
type Commit struct {
	BucketID       Bucket
	StreamID       string
	StreamRevision int64
	CommitID       uuid.UUID
	CommitSequence int64
	CommitStamp    time.Time
	Headers        map[string]interface{}
	Events         []EventMessage
	CheckpointToken int64
}

// Snapshot is a cached fold of a stream's events up to StreamRevision,
// used to shortcut replay. A backend may retain multiple snapshots per
// stream; Persistence.GetSnapshot returns the highest revision not
// exceeding the caller's bound.
type Snapshot struct {
	BucketID       Bucket
	StreamID       string
	StreamRevision int64
	Payload        []byte
}

// StreamHead describes a stream's current revision and its most recent
// snapshot revision, as returned by Persistence.GetStreamsToSnapshot.
type StreamHead struct {
	BucketID         Bucket
	StreamID         string
	HeadRevision     int64
	SnapshotRevision int64
}

// EffectiveRevision returns the StreamRevision of the i'th (0-based)
// event within the commit:
// commit.StreamRevision - len(commit.Events) + 1 + i.
func (c Commit) EffectiveRevision(i int) int64 {
	return c.StreamRevision - int64(len(c.Events)) + 1 + int64(i)
}

// Validate checks the structural invariants of an attempt that must
// hold before it is handed to a Persistence implementation. previousRevision
// is the StreamRevision the stream held immediately before this attempt.
func (a CommitAttempt) Validate(previousRevision int64) error {
	switch {
	case len(a.Events) == 0:
		return errInvalidAttempt("attempt has no events")
	case a.CommitSequence < 1:
		return errInvalidAttempt("commitSequence must be >= 1")
	case a.StreamRevision < int64(len(a.Events)):
		return errInvalidAttempt("streamRevision smaller than event count")
	case a.StreamRevision-int64(len(a.Events)) != previousRevision:
		return errInvalidAttempt("streamRevision does not follow previous revision")
	case a.CommitID == uuid.Nil:
		return errInvalidAttempt("commitId must be set")
	default:
		return nil
	}
}
