package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"

	"go.eventstore.dev/core/eventstore"
)

// Chain is an ordered collection of hooks. Each hook is type-switched
// against the capability interfaces it implements; a hook satisfying
// none of them is accepted but never invoked.
type Chain struct {
	hooks []interface{}
}

// NewChain returns a Chain which will invoke hooks in the given order.
func NewChain(hooks ...interface{}) *Chain {
	return &Chain{hooks: append([]interface{}(nil), hooks...)}
}

// PreCommit runs every registered PreCommitHook in order. It returns
// (false, nil) on the first veto, short-circuiting the remainder, or
// (false, err) on the first error. (true, nil) means every hook allowed
// the commit to proceed.
func (c *Chain) PreCommit(ctx context.Context, attempt eventstore.CommitAttempt) (bool, error) {
	for _, h := range c.hooks {
		hook, ok := h.(PreCommitHook)
		if !ok {
			continue
		}
		ok, err := hook.PreCommit(ctx, attempt)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// PostCommit runs every registered PostCommitHook in order. Hooks never
// short-circuit each other: a returned error, or even a panic, is
// logged at Warn and suppressed so the remaining hooks still run,
// matching Dispose's teardown discipline.
func (c *Chain) PostCommit(ctx context.Context, commit eventstore.Commit) {
	for _, h := range c.hooks {
		if hook, ok := h.(PostCommitHook); ok {
			runPostCommit(ctx, hook, commit)
		}
	}
}

func runPostCommit(ctx context.Context, hook PostCommitHook, commit eventstore.Commit) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Warn("post-commit hook panicked")
		}
	}()
	if err := hook.PostCommit(ctx, commit); err != nil {
		log.WithField("err", err).Warn("post-commit hook failed")
	}
}

// Select threads commit through every registered CommitSelectHook in
// order. Any hook returning nil drops the commit; Select then returns
// nil without consulting the remaining hooks.
func (c *Chain) Select(ctx context.Context, commit eventstore.Commit) *eventstore.Commit {
	var cur = commit
	for _, h := range c.hooks {
		hook, ok := h.(CommitSelectHook)
		if !ok {
			continue
		}
		var next = hook.Select(ctx, cur)
		if next == nil {
			return nil
		}
		cur = *next
	}
	return &cur
}

// OnPurge notifies every registered PurgeObserver.
func (c *Chain) OnPurge(bucketID eventstore.Bucket) {
	for _, h := range c.hooks {
		if hook, ok := h.(PurgeObserver); ok {
			hook.OnPurge(bucketID)
		}
	}
}

// OnDeleteStream notifies every registered StreamDeleteObserver.
func (c *Chain) OnDeleteStream(bucketID eventstore.Bucket, streamID string) {
	for _, h := range c.hooks {
		if hook, ok := h.(StreamDeleteObserver); ok {
			hook.OnDeleteStream(bucketID, streamID)
		}
	}
}

// Dispose tears down every Disposable hook, in registration order. A
// hook's failure to dispose is logged and does not prevent subsequent
// hooks from being disposed.
func (c *Chain) Dispose() {
	for _, h := range c.hooks {
		hook, ok := h.(Disposable)
		if !ok {
			continue
		}
		if err := hook.Dispose(); err != nil {
			log.WithField("err", err).Warn("hook disposal failed")
		}
	}
}
