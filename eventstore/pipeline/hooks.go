// Package pipeline implements the ordered interceptor chain the commit
// and read paths are threaded through. A hook is
// data satisfying whichever of the optional capability interfaces below
// it needs; Chain is a tagged collection of such values, not a class
// hierarchy -- the same "compose, don't subclass" shape gazette uses
// for its task.Group of independently queued tasks.
package pipeline

import (
	"context"

	"go.eventstore.dev/core/eventstore"
)

// PreCommitHook is consulted, in registration order, before an attempt
// reaches persistence. Returning false vetoes the commit: the facade
// returns a nil Commit without invoking persistence, and no further
// hooks (pre- or post-commit) are invoked. Returning an error aborts
// the commit with that error.
type PreCommitHook interface {
	PreCommit(ctx context.Context, attempt eventstore.CommitAttempt) (bool, error)
}

// PostCommitHook is invoked, in registration order, after a commit is
// durably persisted. A failing PostCommitHook is logged and otherwise
// suppressed -- it never unwinds a commit that has already happened,
// and never prevents the remaining hooks from running.
type PostCommitHook interface {
	PostCommit(ctx context.Context, commit eventstore.Commit) error
}

// CommitSelectHook is applied to every commit a read path yields.
// Hooks compose left to right; any hook may transform a commit or
// return nil to drop it from the result entirely.
type CommitSelectHook interface {
	Select(ctx context.Context, commit eventstore.Commit) *eventstore.Commit
}

// PurgeObserver is notified when a bucket (or the whole store) is
// purged, so that hooks holding their own caches can invalidate them.
type PurgeObserver interface {
	OnPurge(bucketID eventstore.Bucket)
}

// StreamDeleteObserver is notified when a single stream is deleted.
type StreamDeleteObserver interface {
	OnDeleteStream(bucketID eventstore.Bucket, streamID string)
}

// Disposable hooks are torn down, in registration order, when the
// facade that owns the chain is closed. A disposal failure is logged
// and suppressed; it must never block teardown of subsequent hooks.
type Disposable interface {
	Dispose() error
}
