package eventstore

import "github.com/pkg/errors"

// Failure taxonomy. Persistence implementations and the commit pipeline
// communicate exclusively through these sentinels (wrapped with
// github.com/pkg/errors for call-site context); callers match against
// them with errors.Is / errors.Cause rather than type assertions.
var (
	// ErrConcurrencyConflict indicates another commit already exists at
	// the attempt's (streamID, commitSequence) or overlapping revision.
	// The stream refreshes its committed history; the caller decides
	// whether to retry with a new decision.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrDuplicateCommit indicates a commit with the same (streamID,
	// commitId) is already durable. Treated as an idempotent success by
	// stream.Stream.
	ErrDuplicateCommit = errors.New("duplicate commit")

	// ErrStorageUnavailable indicates a transient backend fault. The
	// caller may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidAttempt indicates a CommitAttempt violates the
	// structural invariants in types.go, and was rejected before
	// reaching persistence.
	ErrInvalidAttempt = errors.New("invalid commit attempt")
)

func errInvalidAttempt(reason string) error {
	return errors.WithMessage(ErrInvalidAttempt, reason)
}
