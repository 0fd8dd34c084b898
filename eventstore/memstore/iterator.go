package memstore

import (
	"context"

	"go.eventstore.dev/core/eventstore"
)

// sliceIterator adapts a pre-materialized slice of commits to
// persistence.CommitIterator. Store already holds its commits
// in-memory, so unlike a real backend there is no streaming benefit to
// be had here, but implementing the cursor protocol keeps memstore a
// faithful stand-in for exercising callers written against it.
type sliceIterator struct {
	commits []eventstore.Commit
	pos     int
}

func newSliceIterator(commits []eventstore.Commit) *sliceIterator {
	return &sliceIterator{commits: commits}
}

func (it *sliceIterator) Next(context.Context) (*eventstore.Commit, error) {
	if it.pos >= len(it.commits) {
		return nil, nil
	}
	var c = it.commits[it.pos]
	it.pos++
	return &c, nil
}

func (it *sliceIterator) Close() error { return nil }
