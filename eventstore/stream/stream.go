// Package stream implements the OptimisticEventStream:
// the client-side object that accumulates uncommitted events, tracks a
// caller's known revision, and assembles a CommitAttempt. It is the
// single largest component of the core, the way broker.appendFSM is the
// single largest piece of gazette's append path -- both model the
// sequence of steps, retries, and back-tracking a write must go through
// before it is durable.
package stream

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"go.eventstore.dev/core/eventstore"
	"go.eventstore.dev/core/eventstore/persistence"
)

// CommitFunc durably commits attempt, exactly as eventstore/client.EventStore.Commit
// does. Streams depend on this function type rather than on the client
// package directly, so that client can depend on stream without a cycle.
type CommitFunc func(ctx context.Context, attempt eventstore.CommitAttempt) (*eventstore.Commit, error)

// GetFromFunc replays commits of a single stream, exactly as
// persistence.Persistence.GetFrom does.
type GetFromFunc func(ctx context.Context, bucketID eventstore.Bucket, streamID string, minRevision, maxRevision int64) (persistence.CommitIterator, error)

// Stream is the client-side owned buffer of uncommitted events for a
// single (bucketID, streamID), plus the replayed committed history
// within the window it was opened with. Stream is not safe for
// concurrent use: it is exclusively owned by one logical writer at a
// time.
type Stream struct {
	bucketID eventstore.Bucket
	streamID string

	minRevision, maxRevision int64

	streamRevision int64
	commitSequence int64

	committedHeaders map[string]interface{}
	committedEvents  []eventstore.EventMessage

	uncommittedHeaders map[string]interface{}
	uncommittedEvents  []eventstore.EventMessage

	identifiers map[uuid.UUID]struct{}

	commit  CommitFunc
	getFrom GetFromFunc
	clock   clockwork.Clock
}

// New returns a fresh, transient Stream at revision 0, as produced by
// EventStore.CreateStream.
func New(bucketID eventstore.Bucket, streamID string, commit CommitFunc, getFrom GetFromFunc, clock clockwork.Clock) *Stream {
	return &Stream{
		bucketID:         bucketID,
		streamID:         streamID,
		committedHeaders: make(map[string]interface{}),
		identifiers:      make(map[uuid.UUID]struct{}),
		commit:           commit,
		getFrom:          getFrom,
		clock:            clock,
	}
}

// Open returns a Stream materialized by replaying it, restricted to
// the window [minRevision, maxRevision]. maxRevision <= 0 means
// unbounded.
func Open(ctx context.Context, bucketID eventstore.Bucket, streamID string, minRevision, maxRevision int64, commit CommitFunc, getFrom GetFromFunc, clock clockwork.Clock) (*Stream, error) {
	var s = New(bucketID, streamID, commit, getFrom, clock)
	s.minRevision, s.maxRevision = minRevision, maxRevision

	var it, err = getFrom(ctx, bucketID, streamID, minRevision, maxRevision)
	if err != nil {
		return nil, errors.WithMessage(err, "GetFrom")
	}
	defer it.Close()

	for {
		var c, err = it.Next(ctx)
		if err != nil {
			return nil, errors.WithMessage(err, "replaying commit")
		}
		if c == nil {
			break
		}
		s.Merge(*c)
	}
	return s, nil
}

// OpenFromSnapshot returns a Stream materialized from snap, loading
// only commits with revision greater than snap.StreamRevision, up to
// maxRevision (<= 0 meaning unbounded).
func OpenFromSnapshot(ctx context.Context, snap eventstore.Snapshot, maxRevision int64, commit CommitFunc, getFrom GetFromFunc, clock clockwork.Clock) (*Stream, error) {
	var s, err = Open(ctx, snap.BucketID, snap.StreamID, snap.StreamRevision+1, maxRevision, commit, getFrom, clock)
	if err != nil {
		return nil, err
	}
	if s.streamRevision < snap.StreamRevision {
		// No commits beyond the snapshot yet; still reflect its revision.
		s.streamRevision = snap.StreamRevision
	}
	return s, nil
}

// BucketID returns the stream's bucket.
func (s *Stream) BucketID() eventstore.Bucket { return s.bucketID }

// StreamID returns the stream's identity within its bucket.
func (s *Stream) StreamID() string { return s.streamID }

// StreamRevision returns the revision of the last observed durable commit.
func (s *Stream) StreamRevision() int64 { return s.streamRevision }

// CommitSequence returns the commit sequence of the last observed durable commit.
func (s *Stream) CommitSequence() int64 { return s.commitSequence }

// CommittedHeaders returns the merged headers of every loaded commit.
// The returned map must not be mutated.
func (s *Stream) CommittedHeaders() map[string]interface{} { return s.committedHeaders }

// CommittedEvents returns the replayed history within the stream's
// opened window. The returned slice must not be mutated.
func (s *Stream) CommittedEvents() []eventstore.EventMessage { return s.committedEvents }

// UncommittedHeaders returns headers staged for the next commit. The
// returned map must not be mutated.
func (s *Stream) UncommittedHeaders() map[string]interface{} { return s.uncommittedHeaders }

// UncommittedEvents returns events staged for the next commit. The
// returned slice must not be mutated.
func (s *Stream) UncommittedEvents() []eventstore.EventMessage { return s.uncommittedEvents }

// Add appends event to the uncommitted buffer. Events with a nil Body
// are rejected.
func (s *Stream) Add(event eventstore.EventMessage) error {
	if event.Body == nil {
		return errors.New("event body must not be nil")
	}
	s.uncommittedEvents = append(s.uncommittedEvents, event)
	return nil
}

// SetHeader stages a header to be attached to the next commit.
func (s *Stream) SetHeader(key string, value interface{}) {
	if s.uncommittedHeaders == nil {
		s.uncommittedHeaders = make(map[string]interface{})
	}
	s.uncommittedHeaders[key] = value
}

// ClearChanges drops all uncommitted state, leaving committed state untouched.
func (s *Stream) ClearChanges() {
	s.uncommittedHeaders = nil
	s.uncommittedEvents = nil
}

// CommitChanges builds a CommitAttempt from the uncommitted buffer and
// durably commits it under commitID:
//
//  1. If commitID was already incorporated by this stream, this call is
//     an idempotent retry: the uncommitted buffer is cleared and nil is
//     returned.
//  2. If there is nothing uncommitted, this call is a no-op.
//  3. Otherwise an attempt is built and committed. A concurrency
//     conflict triggers a refresh of committed history (the uncommitted
//     buffer is preserved) before the conflict is returned to the
//     caller. A duplicate-commit response is swallowed as an idempotent
//     success. Any other failure is propagated with the buffer preserved.
func (s *Stream) CommitChanges(ctx context.Context, commitID uuid.UUID) error {
	if _, ok := s.identifiers[commitID]; ok {
		s.ClearChanges()
		return nil
	}
	if len(s.uncommittedEvents) == 0 {
		return nil
	}

	var attempt = eventstore.CommitAttempt{
		BucketID:       s.bucketID,
		StreamID:       s.streamID,
		StreamRevision: s.streamRevision + int64(len(s.uncommittedEvents)),
		CommitID:       commitID,
		CommitSequence: s.commitSequence + 1,
		CommitStamp:    s.clock.Now().UTC(),
		Headers:        copyHeaders(s.uncommittedHeaders),
		Events:         append([]eventstore.EventMessage(nil), s.uncommittedEvents...),
	}

	if err := attempt.Validate(s.streamRevision); err != nil {
		return err
	}

	var commit, err = s.commit(ctx, attempt)
	switch errors.Cause(err) {
	case nil:
		s.Merge(*commit)
		s.ClearChanges()
		return nil

	case eventstore.ErrConcurrencyConflict:
		if refreshErr := s.refresh(ctx); refreshErr != nil {
			return refreshErr
		}
		return err

	case eventstore.ErrDuplicateCommit:
		s.identifiers[commitID] = struct{}{}
		s.ClearChanges()
		return nil

	default:
		return err
	}
}

// refresh replays commits the stream hasn't yet observed, to recover
// from a concurrency conflict.
func (s *Stream) refresh(ctx context.Context) error {
	var it, err = s.getFrom(ctx, s.bucketID, s.streamID, s.streamRevision+1, 0)
	if err != nil {
		return errors.WithMessage(err, "refreshing after conflict")
	}
	defer it.Close()

	for {
		var c, err = it.Next(ctx)
		if err != nil {
			return errors.WithMessage(err, "refreshing after conflict")
		}
		if c == nil {
			return nil
		}
		s.Merge(*c)
	}
}

// Merge incorporates a durable commit into the stream's committed
// state. Open, OpenFromSnapshot, the post-conflict refresh, and a
// successful CommitChanges all apply this same rule.
func (s *Stream) Merge(commit eventstore.Commit) {
	for i := range commit.Events {
		var effective = commit.EffectiveRevision(i)
		if s.minRevision > 0 && effective < s.minRevision {
			continue
		}
		if s.maxRevision > 0 && effective > s.maxRevision {
			continue
		}
		s.committedEvents = append(s.committedEvents, commit.Events[i])
	}
	if commit.StreamRevision > s.streamRevision {
		s.streamRevision = commit.StreamRevision
	}
	if commit.CommitSequence > s.commitSequence {
		s.commitSequence = commit.CommitSequence
	}
	for k, v := range commit.Headers {
		s.committedHeaders[k] = v
	}
	s.identifiers[commit.CommitID] = struct{}{}
}

func copyHeaders(h map[string]interface{}) map[string]interface{} {
	if h == nil {
		return nil
	}
	var out = make(map[string]interface{}, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
