package pipeline

import (
	"context"

	"go.eventstore.dev/core/eventstore"
	"go.eventstore.dev/core/eventstore/persistence"
)

// HookAware wraps a raw Persistence so that every commit a read path
// yields is first run through the Chain's Select hooks, and so that
// admin operations fan out to OnPurge / OnDeleteStream. Write paths
// (Commit) pass straight through -- the facade itself drives the
// pre-/post-commit chain around Commit, not this decorator -- so that
// a hook with its own cache (eg eventstore/concurrency) observes
// exactly the same commits on reads as it sees on writes.
//
// Compose by wrapping, not by subclassing: HookAware and the raw
// Persistence it wraps satisfy the identical interface.
type HookAware struct {
	persistence.Persistence
	chain *Chain
}

// NewHookAware returns a Persistence decorating next with chain.
func NewHookAware(next persistence.Persistence, chain *Chain) *HookAware {
	return &HookAware{Persistence: next, chain: chain}
}

// GetFrom overrides the embedded Persistence to filter/transform each
// yielded commit through the Chain's Select hooks.
func (h *HookAware) GetFrom(ctx context.Context, bucketID eventstore.Bucket, streamID string, minRevision, maxRevision int64) (persistence.CommitIterator, error) {
	var it, err = h.Persistence.GetFrom(ctx, bucketID, streamID, minRevision, maxRevision)
	if err != nil {
		return nil, err
	}
	return &selectingIterator{ctx: ctx, inner: it, chain: h.chain}, nil
}

// GetFromCheckpoint overrides the embedded Persistence analogously to GetFrom.
func (h *HookAware) GetFromCheckpoint(ctx context.Context, bucketID eventstore.Bucket, checkpoint int64) (persistence.CommitIterator, error) {
	var it, err = h.Persistence.GetFromCheckpoint(ctx, bucketID, checkpoint)
	if err != nil {
		return nil, err
	}
	return &selectingIterator{ctx: ctx, inner: it, chain: h.chain}, nil
}

// Purge overrides the embedded Persistence to additionally notify OnPurge.
func (h *HookAware) Purge(ctx context.Context, bucketID eventstore.Bucket) error {
	if err := h.Persistence.Purge(ctx, bucketID); err != nil {
		return err
	}
	h.chain.OnPurge(bucketID)
	return nil
}

// DeleteStream overrides the embedded Persistence to additionally notify OnDeleteStream.
func (h *HookAware) DeleteStream(ctx context.Context, bucketID eventstore.Bucket, streamID string) error {
	if err := h.Persistence.DeleteStream(ctx, bucketID, streamID); err != nil {
		return err
	}
	h.chain.OnDeleteStream(bucketID, streamID)
	return nil
}

// selectingIterator threads each commit of an inner CommitIterator
// through the Chain before yielding it, skipping commits a hook drops.
type selectingIterator struct {
	ctx   context.Context
	inner persistence.CommitIterator
	chain *Chain
}

func (s *selectingIterator) Next(ctx context.Context) (*eventstore.Commit, error) {
	for {
		var c, err = s.inner.Next(ctx)
		if err != nil || c == nil {
			return nil, err
		}
		if selected := s.chain.Select(ctx, *c); selected != nil {
			return selected, nil
		}
		// Dropped by a hook; continue to the next commit.
	}
}

func (s *selectingIterator) Close() error { return s.inner.Close() }
