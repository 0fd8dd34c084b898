// Package memstore is a reference, in-process implementation of the
// persistence.Persistence contract. It exists so the core's own tests,
// and callers with no durability requirement, can exercise a real
// Persistence rather than a mock -- the way go.gazette.dev/core's
// brokertest package gives gazette's consumer package a real (if
// ephemeral) broker to test against.
//
// Grounded on the guarded-map-of-slices shape and optimistic-version
// check of other in-process event stores in the wild: a per-stream
// slice of commits under a single RWMutex, with a monotonically
// increasing checkpoint counter shared across the whole store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.eventstore.dev/core/eventstore"
	"go.eventstore.dev/core/eventstore/persistence"
)

// Store is an in-memory Persistence. The zero value is not usable; use New.
type Store struct {
	mu         sync.RWMutex
	buckets    map[eventstore.Bucket]map[string][]eventstore.Commit
	snapshots  map[eventstore.Bucket]map[string][]eventstore.Snapshot
	checkpoint int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		buckets:   make(map[eventstore.Bucket]map[string][]eventstore.Commit),
		snapshots: make(map[eventstore.Bucket]map[string][]eventstore.Snapshot),
	}
}

// Initialize is a no-op; Store requires no external schema.
func (s *Store) Initialize(context.Context) error { return nil }

// Commit implements persistence.Persistence.
func (s *Store) Commit(_ context.Context, attempt eventstore.CommitAttempt) (*eventstore.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stream = s.buckets[attempt.BucketID][attempt.StreamID]

	for _, c := range stream {
		if c.CommitID == attempt.CommitID {
			return nil, eventstore.ErrDuplicateCommit
		}
	}

	var headRevision, headSequence int64
	if n := len(stream); n > 0 {
		headRevision = stream[n-1].StreamRevision
		headSequence = stream[n-1].CommitSequence
	}
	if attempt.CommitSequence != headSequence+1 {
		return nil, eventstore.ErrConcurrencyConflict
	}
	if attempt.StreamRevision-int64(len(attempt.Events)) != headRevision {
		return nil, eventstore.ErrConcurrencyConflict
	}

	s.checkpoint++
	var commit = eventstore.Commit{
		BucketID:        attempt.BucketID,
		StreamID:        attempt.StreamID,
		StreamRevision:  attempt.StreamRevision,
		CommitID:        attempt.CommitID,
		CommitSequence:  attempt.CommitSequence,
		CommitStamp:     attempt.CommitStamp,
		Headers:         attempt.Headers,
		Events:          attempt.Events,
		CheckpointToken: s.checkpoint,
	}

	if s.buckets[attempt.BucketID] == nil {
		s.buckets[attempt.BucketID] = make(map[string][]eventstore.Commit)
	}
	s.buckets[attempt.BucketID][attempt.StreamID] = append(stream, commit)

	return &commit, nil
}

// GetFrom implements persistence.Persistence.
func (s *Store) GetFrom(_ context.Context, bucketID eventstore.Bucket, streamID string, minRevision, maxRevision int64) (persistence.CommitIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stream = s.buckets[bucketID][streamID]
	var out = make([]eventstore.Commit, 0, len(stream))
	for _, c := range stream {
		if intersectsRevision(c, minRevision, maxRevision) {
			out = append(out, c)
		}
	}
	return newSliceIterator(out), nil
}

// GetFromCheckpoint implements persistence.Persistence.
func (s *Store) GetFromCheckpoint(_ context.Context, bucketID eventstore.Bucket, checkpoint int64) (persistence.CommitIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []eventstore.Commit
	for _, stream := range s.buckets[bucketID] {
		for _, c := range stream {
			if c.CheckpointToken > checkpoint {
				all = append(all, c)
			}
		}
	}
	// Commits across streams are appended in per-stream commit order but
	// interleaved arbitrarily; checkpoint order is the store-wide total
	// order, so sort on it explicitly.
	sort.Slice(all, func(i, j int) bool { return all[i].CheckpointToken < all[j].CheckpointToken })
	return newSliceIterator(all), nil
}

// GetSnapshot implements persistence.Persistence.
func (s *Store) GetSnapshot(_ context.Context, bucketID eventstore.Bucket, streamID string, maxRevision int64) (*eventstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *eventstore.Snapshot
	for _, snap := range s.snapshots[bucketID][streamID] {
		if maxRevision > 0 && snap.StreamRevision > maxRevision {
			continue
		}
		if best == nil || snap.StreamRevision > best.StreamRevision {
			var cp = snap
			best = &cp
		}
	}
	return best, nil
}

// AddSnapshot implements persistence.Persistence.
func (s *Store) AddSnapshot(_ context.Context, snap eventstore.Snapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stream, ok = s.buckets[snap.BucketID][snap.StreamID]
	if !ok || len(stream) == 0 {
		return false, nil
	}
	for _, existing := range s.snapshots[snap.BucketID][snap.StreamID] {
		if existing.StreamRevision >= snap.StreamRevision {
			return false, nil
		}
	}
	if s.snapshots[snap.BucketID] == nil {
		s.snapshots[snap.BucketID] = make(map[string][]eventstore.Snapshot)
	}
	s.snapshots[snap.BucketID][snap.StreamID] = append(s.snapshots[snap.BucketID][snap.StreamID], snap)
	return true, nil
}

// GetStreamsToSnapshot implements persistence.Persistence.
func (s *Store) GetStreamsToSnapshot(_ context.Context, bucketID eventstore.Bucket, minThreshold int64) ([]eventstore.StreamHead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var heads []eventstore.StreamHead
	for streamID, commits := range s.buckets[bucketID] {
		if len(commits) == 0 {
			continue
		}
		var head = commits[len(commits)-1].StreamRevision
		var snapRev int64
		for _, snap := range s.snapshots[bucketID][streamID] {
			if snap.StreamRevision > snapRev {
				snapRev = snap.StreamRevision
			}
		}
		if head-snapRev >= minThreshold {
			heads = append(heads, eventstore.StreamHead{
				BucketID:         bucketID,
				StreamID:         streamID,
				HeadRevision:     head,
				SnapshotRevision: snapRev,
			})
		}
	}
	return heads, nil
}

// Purge implements persistence.Persistence. An empty bucketID purges
// every bucket.
func (s *Store) Purge(_ context.Context, bucketID eventstore.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bucketID == "" {
		s.buckets = make(map[eventstore.Bucket]map[string][]eventstore.Commit)
		s.snapshots = make(map[eventstore.Bucket]map[string][]eventstore.Snapshot)
		return nil
	}
	delete(s.buckets, bucketID)
	delete(s.snapshots, bucketID)
	return nil
}

// Drop implements persistence.Persistence.
func (s *Store) Drop(ctx context.Context) error {
	return s.Purge(ctx, "")
}

// DeleteStream implements persistence.Persistence.
func (s *Store) DeleteStream(_ context.Context, bucketID eventstore.Bucket, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buckets[bucketID] == nil {
		return errors.Errorf("bucket %q does not exist", bucketID)
	}
	delete(s.buckets[bucketID], streamID)
	if s.snapshots[bucketID] != nil {
		delete(s.snapshots[bucketID], streamID)
	}
	return nil
}

func intersectsRevision(c eventstore.Commit, minRevision, maxRevision int64) bool {
	var commitMin = c.StreamRevision - int64(len(c.Events)) + 1
	if maxRevision > 0 && commitMin > maxRevision {
		return false
	}
	if minRevision > 0 && c.StreamRevision < minRevision {
		return false
	}
	return true
}
