package ports

import "errors"

// ErrNotFound is returned by storage operations that look up a single row by
// a unique key (e.g. MarkBlockSubmissionCompleted) when the key is unknown.
var ErrNotFound = errors.New("not found")

// ErrEmptyFragments is returned by InsertStateSubmission when called with no
// fragments, which would otherwise violate invariant I2 (no zero-fragment
// submissions are eligible for consumption).
var ErrEmptyFragments = errors.New("cannot insert state submission with no fragments")
