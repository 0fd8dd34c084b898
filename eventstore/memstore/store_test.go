package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eventstore.dev/core/eventstore"
	"go.eventstore.dev/core/eventstore/memstore"
)

func attempt(bucket, streamID string, streamRevision, commitSequence int64, n int) eventstore.CommitAttempt {
	var events = make([]eventstore.EventMessage, n)
	for i := range events {
		events[i] = eventstore.EventMessage{Body: []byte("event")}
	}
	return eventstore.CommitAttempt{
		BucketID:       bucket,
		StreamID:       streamID,
		StreamRevision: streamRevision,
		CommitID:       uuid.New(),
		CommitSequence: commitSequence,
		CommitStamp:    time.Now().UTC(),
		Events:         events,
	}
}

func TestCommitGapless(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	var c1, err = store.Commit(ctx, attempt("b", "s", 2, 1, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 1, c1.CommitSequence)
	assert.EqualValues(t, 2, c1.StreamRevision)

	var c2 *eventstore.Commit
	c2, err = store.Commit(ctx, attempt("b", "s", 5, 2, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 2, c2.CommitSequence)
	assert.EqualValues(t, 5, c2.StreamRevision)
	assert.Greater(t, c2.CheckpointToken, c1.CheckpointToken)
}

func TestCommitRejectsSequenceGap(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	var _, err = store.Commit(ctx, attempt("b", "s", 2, 1, 2))
	require.NoError(t, err)

	// commitSequence 3 skips 2: rejected as a conflict, not silently accepted.
	_, err = store.Commit(ctx, attempt("b", "s", 5, 3, 3))
	assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)
}

func TestCommitRejectsOverlappingRevision(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	var _, err = store.Commit(ctx, attempt("b", "s", 2, 1, 2))
	require.NoError(t, err)

	var a = attempt("b", "s", 2, 2, 1) // claims to follow revision 1, not 2
	_, err = store.Commit(ctx, a)
	assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)
}

func TestCommitDuplicateIsIdempotent(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	var a = attempt("b", "s", 2, 1, 2)
	var c1, err = store.Commit(ctx, a)
	require.NoError(t, err)

	var _, err2 = store.Commit(ctx, a)
	assert.ErrorIs(t, err2, eventstore.ErrDuplicateCommit)

	var it, _ = store.GetFrom(ctx, "b", "s", 0, 0)
	var n int
	for {
		var c, err = it.Next(ctx)
		require.NoError(t, err)
		if c == nil {
			break
		}
		n++
	}
	assert.Equal(t, 1, n)
	_ = c1
}

func TestGetFromRevisionWindow(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	var _, err = store.Commit(ctx, attempt("b", "s", 3, 1, 3)) // events 1,2,3
	require.NoError(t, err)
	_, err = store.Commit(ctx, attempt("b", "s", 6, 2, 3)) // events 4,5,6
	require.NoError(t, err)

	var it, _ = store.GetFrom(ctx, "b", "s", 4, 5)
	var commits []eventstore.Commit
	for {
		var c, err = it.Next(ctx)
		require.NoError(t, err)
		if c == nil {
			break
		}
		commits = append(commits, *c)
	}
	require.Len(t, commits, 1)
	assert.EqualValues(t, 6, commits[0].StreamRevision)
}

func TestGetFromCheckpointOrdersAcrossStreams(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	_, _ = store.Commit(ctx, attempt("b", "s1", 1, 1, 1))
	_, _ = store.Commit(ctx, attempt("b", "s2", 1, 1, 1))
	_, _ = store.Commit(ctx, attempt("b", "s1", 2, 2, 1))
	_, _ = store.Commit(ctx, attempt("b", "s3", 1, 1, 1))

	var it, err = store.GetFromCheckpoint(ctx, "b", 0)
	require.NoError(t, err)

	var checkpoints []int64
	for {
		var c, err = it.Next(ctx)
		require.NoError(t, err)
		if c == nil {
			break
		}
		checkpoints = append(checkpoints, c.CheckpointToken)
	}
	require.Len(t, checkpoints, 4)
	for i := 1; i < len(checkpoints); i++ {
		assert.Less(t, checkpoints[i-1], checkpoints[i])
	}
}

func TestSnapshotHighestNotExceedingBound(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	_, _ = store.Commit(ctx, attempt("b", "s", 10, 1, 10))

	var ok, err = store.AddSnapshot(ctx, eventstore.Snapshot{BucketID: "b", StreamID: "s", StreamRevision: 5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AddSnapshot(ctx, eventstore.Snapshot{BucketID: "b", StreamID: "s", StreamRevision: 8})
	require.NoError(t, err)
	assert.True(t, ok)

	var snap, err2 = store.GetSnapshot(ctx, "b", "s", 9)
	require.NoError(t, err2)
	require.NotNil(t, snap)
	assert.EqualValues(t, 8, snap.StreamRevision)
}

func TestAddSnapshotRejectsStaleOrMissingStream(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	var ok, err = store.AddSnapshot(ctx, eventstore.Snapshot{BucketID: "b", StreamID: "missing", StreamRevision: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	_, _ = store.Commit(ctx, attempt("b", "s", 10, 1, 10))
	_, _ = store.AddSnapshot(ctx, eventstore.Snapshot{BucketID: "b", StreamID: "s", StreamRevision: 8})

	ok, err = store.AddSnapshot(ctx, eventstore.Snapshot{BucketID: "b", StreamID: "s", StreamRevision: 8})
	require.NoError(t, err)
	assert.False(t, ok, "stale snapshot at the same revision must be rejected")
}

func TestGetStreamsToSnapshot(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	_, _ = store.Commit(ctx, attempt("b", "s", 10, 1, 10))
	_, _ = store.AddSnapshot(ctx, eventstore.Snapshot{BucketID: "b", StreamID: "s", StreamRevision: 3})

	var heads, err = store.GetStreamsToSnapshot(ctx, "b", 5)
	require.NoError(t, err)
	require.Len(t, heads, 1)
	assert.Equal(t, "s", heads[0].StreamID)
	assert.EqualValues(t, 10, heads[0].HeadRevision)
	assert.EqualValues(t, 3, heads[0].SnapshotRevision)

	heads, err = store.GetStreamsToSnapshot(ctx, "b", 8)
	require.NoError(t, err)
	assert.Empty(t, heads)
}

func TestPurgeAndDeleteStream(t *testing.T) {
	var store = memstore.New()
	var ctx = context.Background()

	_, _ = store.Commit(ctx, attempt("b", "s1", 1, 1, 1))
	_, _ = store.Commit(ctx, attempt("b", "s2", 1, 1, 1))

	require.NoError(t, store.DeleteStream(ctx, "b", "s1"))
	var it, _ = store.GetFrom(ctx, "b", "s1", 0, 0)
	var c, _ = it.Next(ctx)
	assert.Nil(t, c)

	require.NoError(t, store.Purge(ctx, ""))
	it, _ = store.GetFrom(ctx, "b", "s2", 0, 0)
	c, _ = it.Next(ctx)
	assert.Nil(t, c)
}
