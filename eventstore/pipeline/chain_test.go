package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eventstore.dev/core/eventstore"
	"go.eventstore.dev/core/eventstore/pipeline"
)

type preCommitHook struct {
	allow  bool
	err    error
	called int
}

func (h *preCommitHook) PreCommit(context.Context, eventstore.CommitAttempt) (bool, error) {
	h.called++
	if h.err != nil {
		return false, h.err
	}
	return h.allow, nil
}

type postCommitHook struct {
	order *[]string
	name  string
}

func (h *postCommitHook) PostCommit(context.Context, eventstore.Commit) error {
	*h.order = append(*h.order, h.name)
	return nil
}

type selectHook struct {
	drop bool
}

func (h *selectHook) Select(_ context.Context, commit eventstore.Commit) *eventstore.Commit {
	if h.drop {
		return nil
	}
	return &commit
}

func TestPreCommitVetoShortCircuits(t *testing.T) {
	var first = &preCommitHook{allow: false}
	var second = &preCommitHook{allow: true}
	var chain = pipeline.NewChain(first, second)

	var ok, err = chain.PreCommit(context.Background(), eventstore.CommitAttempt{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, second.called, "a veto must short-circuit remaining hooks")
}

func TestPreCommitErrorShortCircuits(t *testing.T) {
	var boom = assert.AnError
	var first = &preCommitHook{err: boom}
	var second = &preCommitHook{allow: true}
	var chain = pipeline.NewChain(first, second)

	var ok, err = chain.PreCommit(context.Background(), eventstore.CommitAttempt{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
	assert.Equal(t, 0, second.called)
}

func TestPreCommitAllApprove(t *testing.T) {
	var chain = pipeline.NewChain(&preCommitHook{allow: true}, &preCommitHook{allow: true})
	var ok, err = chain.PreCommit(context.Background(), eventstore.CommitAttempt{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostCommitRunsEveryHookOnceInOrder(t *testing.T) {
	var order []string
	var chain = pipeline.NewChain(
		&postCommitHook{order: &order, name: "a"},
		&postCommitHook{order: &order, name: "b"},
	)
	chain.PostCommit(context.Background(), eventstore.Commit{})
	assert.Equal(t, []string{"a", "b"}, order)
}

type failingPostCommitHook struct{ err error }

func (h *failingPostCommitHook) PostCommit(context.Context, eventstore.Commit) error { return h.err }

type panickingPostCommitHook struct{}

func (h *panickingPostCommitHook) PostCommit(context.Context, eventstore.Commit) error {
	panic("boom")
}

func TestPostCommitFailureIsSuppressedAndDoesNotBlockLaterHooks(t *testing.T) {
	var order []string
	var chain = pipeline.NewChain(
		&failingPostCommitHook{err: assert.AnError},
		&postCommitHook{order: &order, name: "after-failure"},
	)
	assert.NotPanics(t, func() { chain.PostCommit(context.Background(), eventstore.Commit{}) })
	assert.Equal(t, []string{"after-failure"}, order)
}

func TestPostCommitPanicIsSuppressedAndDoesNotBlockLaterHooks(t *testing.T) {
	var order []string
	var chain = pipeline.NewChain(
		&panickingPostCommitHook{},
		&postCommitHook{order: &order, name: "after-panic"},
	)
	assert.NotPanics(t, func() { chain.PostCommit(context.Background(), eventstore.Commit{}) })
	assert.Equal(t, []string{"after-panic"}, order)
}

func TestSelectDropsCommitOnNil(t *testing.T) {
	var chain = pipeline.NewChain(&selectHook{drop: true})
	var result = chain.Select(context.Background(), eventstore.Commit{})
	assert.Nil(t, result)
}

func TestSelectPassesThroughWhenNotDropped(t *testing.T) {
	var chain = pipeline.NewChain(&selectHook{drop: false})
	var result = chain.Select(context.Background(), eventstore.Commit{CommitSequence: 7})
	require.NotNil(t, result)
	assert.EqualValues(t, 7, result.CommitSequence)
}
