// Package concurrency implements an in-memory optimistic concurrency
// hook: a process-local fast path that rejects
// duplicate or out-of-order commits before they reach persistence.
// Its cache is advisory -- an eviction only ever degrades detection
// back to the backend's own uniqueness constraints, never produces a
// false commit.
package concurrency

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"go.eventstore.dev/core/eventstore"
)

// DefaultRecentCommitCacheSize bounds the number of recent commit ids
// retained per stream for duplicate detection.
const DefaultRecentCommitCacheSize = 256

// Hook is a pipeline.PreCommitHook, pipeline.CommitSelectHook,
// pipeline.PostCommitHook, pipeline.PurgeObserver, and
// pipeline.StreamDeleteObserver (satisfied structurally; this package
// does not import eventstore/pipeline).
type Hook struct {
	cacheSize int

	mu      sync.Mutex
	streams map[streamKey]*streamState
}

type streamKey struct {
	bucketID eventstore.Bucket
	streamID string
}

type streamState struct {
	sync.Mutex
	headRevision int64
	headSequence int64
	recentIDs    *lru.Cache // uuid.UUID -> struct{}
}

// New returns a Hook whose per-stream recent-commit-id cache holds at
// most cacheSize entries. cacheSize <= 0 selects DefaultRecentCommitCacheSize.
func New(cacheSize int) *Hook {
	if cacheSize <= 0 {
		cacheSize = DefaultRecentCommitCacheSize
	}
	return &Hook{
		cacheSize: cacheSize,
		streams:   make(map[streamKey]*streamState),
	}
}

// PreCommit rejects attempts the hook can already prove are a
// concurrency conflict or a duplicate, without consulting persistence.
func (h *Hook) PreCommit(_ context.Context, attempt eventstore.CommitAttempt) (bool, error) {
	h.mu.Lock()
	var st = h.streams[streamKey{attempt.BucketID, attempt.StreamID}]
	h.mu.Unlock()

	if st == nil {
		return true, nil
	}

	st.Lock()
	defer st.Unlock()

	if st.recentIDs != nil {
		if _, ok := st.recentIDs.Get(attempt.CommitID); ok {
			return false, eventstore.ErrDuplicateCommit
		}
	}
	if attempt.CommitSequence <= st.headSequence {
		return false, eventstore.ErrConcurrencyConflict
	}
	if attempt.StreamRevision <= st.headRevision {
		return false, eventstore.ErrConcurrencyConflict
	}
	return true, nil
}

// Select observes a commit read back from persistence, advancing the
// hook's notion of the stream head. It never drops or transforms the
// commit.
func (h *Hook) Select(_ context.Context, commit eventstore.Commit) *eventstore.Commit {
	h.observe(commit)
	return &commit
}

// PostCommit observes a commit this process just wrote, advancing the
// hook's notion of the stream head.
func (h *Hook) PostCommit(_ context.Context, commit eventstore.Commit) error {
	h.observe(commit)
	return nil
}

func (h *Hook) observe(commit eventstore.Commit) {
	var key = streamKey{commit.BucketID, commit.StreamID}

	h.mu.Lock()
	var st = h.streams[key]
	if st == nil {
		st = &streamState{}
		h.streams[key] = st
	}
	h.mu.Unlock()

	st.Lock()
	defer st.Unlock()

	if commit.StreamRevision > st.headRevision {
		st.headRevision = commit.StreamRevision
	}
	if commit.CommitSequence > st.headSequence {
		st.headSequence = commit.CommitSequence
	}
	if st.recentIDs == nil {
		st.recentIDs, _ = lru.New(h.cacheSizeOrDefault())
	}
	st.recentIDs.Add(commit.CommitID, struct{}{})
}

func (h *Hook) cacheSizeOrDefault() int {
	if h.cacheSize <= 0 {
		return DefaultRecentCommitCacheSize
	}
	return h.cacheSize
}

// OnPurge evicts all cached state for bucketID, or every bucket if
// bucketID is empty.
func (h *Hook) OnPurge(bucketID eventstore.Bucket) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if bucketID == "" {
		h.streams = make(map[streamKey]*streamState)
		return
	}
	for key := range h.streams {
		if key.bucketID == bucketID {
			delete(h.streams, key)
		}
	}
}

// OnDeleteStream evicts cached state for (bucketID, streamID).
func (h *Hook) OnDeleteStream(bucketID eventstore.Bucket, streamID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, streamKey{bucketID, streamID})
}
