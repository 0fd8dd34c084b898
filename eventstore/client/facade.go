// Package client implements the EventStore facade: the
// entry point applications use to create and open streams, and the
// owner of the pre-/post-commit hook chain's lifecycle. Named "client"
// to mirror go.gazette.dev/core/broker/client, which plays the
// analogous role of the primary application-facing entry point atop a
// lower-level protocol.
package client

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.eventstore.dev/core/eventstore"
	"go.eventstore.dev/core/eventstore/persistence"
	"go.eventstore.dev/core/eventstore/pipeline"
	"go.eventstore.dev/core/eventstore/stream"
)

// EventStore opens and creates streams, and routes every commit
// through the pipeline's pre-/post-commit chain before and after
// delegating to the underlying Persistence.
type EventStore struct {
	raw    persistence.Persistence
	hooked *pipeline.HookAware
	chain  *pipeline.Chain
	clock  clockwork.Clock
}

// Option configures an EventStore at construction time.
type Option func(*EventStore)

// WithClock overrides the clock used to stamp commits. Defaults to
// clockwork.NewRealClock().
func WithClock(clock clockwork.Clock) Option {
	return func(es *EventStore) { es.clock = clock }
}

// New returns an EventStore backed by persist, dispatching pre-commit,
// post-commit, and read-path select hooks through chain in the order
// they were registered. A nil chain is treated as empty.
func New(persist persistence.Persistence, chain *pipeline.Chain, opts ...Option) *EventStore {
	if chain == nil {
		chain = pipeline.NewChain()
	}
	var es = &EventStore{
		raw:    persist,
		hooked: pipeline.NewHookAware(persist, chain),
		chain:  chain,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(es)
	}
	return es
}

// CreateStream returns a fresh, transient stream at revision 0.
func (es *EventStore) CreateStream(bucketID eventstore.Bucket, streamID string) *stream.Stream {
	return stream.New(bucketID, streamID, es.Commit, es.getFrom, es.clock)
}

// OpenStream materializes committed history for (bucketID, streamID)
// within [minRevision, maxRevision] (maxRevision <= 0 meaning
// unbounded) and returns a Stream ready for further Add/CommitChanges.
func (es *EventStore) OpenStream(ctx context.Context, bucketID eventstore.Bucket, streamID string, minRevision, maxRevision int64) (*stream.Stream, error) {
	return stream.Open(ctx, bucketID, streamID, minRevision, maxRevision, es.Commit, es.getFrom, es.clock)
}

// OpenStreamFromSnapshot materializes a stream from snap, loading only
// commits with revision greater than snap.StreamRevision, up to
// maxRevision (<= 0 meaning unbounded).
func (es *EventStore) OpenStreamFromSnapshot(ctx context.Context, snap eventstore.Snapshot, maxRevision int64) (*stream.Stream, error) {
	return stream.OpenFromSnapshot(ctx, snap, maxRevision, es.Commit, es.getFrom, es.clock)
}

// Commit threads attempt through the pre-commit chain; if not vetoed,
// durably commits it via the underlying Persistence, then threads the
// durable Commit through the post-commit chain. A vetoed commit returns
// (nil, nil): a veto is not raised as a failure.
//
// attempt is validated before anything else runs, so a CommitAttempt
// built directly rather than via Stream.CommitChanges still fails fast
// on a structural defect (no events, a non-positive CommitSequence, a
// nil CommitID, or a StreamRevision inconsistent with its own event
// count) instead of reaching persistence.
func (es *EventStore) Commit(ctx context.Context, attempt eventstore.CommitAttempt) (*eventstore.Commit, error) {
	if err := attempt.Validate(attempt.StreamRevision - int64(len(attempt.Events))); err != nil {
		return nil, err
	}

	var ok, err = es.chain.PreCommit(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var commit *eventstore.Commit
	commit, err = es.raw.Commit(ctx, attempt)
	if err != nil {
		return nil, err
	}

	es.chain.PostCommit(ctx, *commit)
	return commit, nil
}

// Advanced exposes the full persistence contract for callers needing
// administrative operations (Purge, Drop, snapshot management) not
// modeled by Stream/EventStore's everyday surface. Reads issued through
// Advanced still observe hook Select transforms; writes issued through
// it bypass the pre-/post-commit chain entirely, so callers should
// prefer EventStore.Commit for anything participating in the commit
// pipeline.
func (es *EventStore) Advanced() persistence.Persistence { return es.hooked }

// closer is satisfied by a Persistence implementation that holds
// resources (file handles, connection pools) needing explicit release.
// It is optional: most reference/test backends need no teardown.
type closer interface {
	Close() error
}

// Close disposes the persistence (if it supports it) and then each
// hook once, in registration order. A disposal failure is logged and
// suppressed -- it must never prevent the remaining hooks from
// disposing, matching consumer/resolver.go's teardown discipline.
func (es *EventStore) Close() error {
	if c, ok := es.raw.(closer); ok {
		if err := c.Close(); err != nil {
			log.WithField("err", err).Warn("persistence close failed")
		}
	}
	es.chain.Dispose()
	return nil
}

func (es *EventStore) getFrom(ctx context.Context, bucketID eventstore.Bucket, streamID string, minRevision, maxRevision int64) (persistence.CommitIterator, error) {
	var it, err = es.hooked.GetFrom(ctx, bucketID, streamID, minRevision, maxRevision)
	if err != nil {
		return nil, errors.WithMessage(err, "GetFrom")
	}
	return it, nil
}
