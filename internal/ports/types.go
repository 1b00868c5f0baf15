// Package ports declares the capability surfaces the settlement pipeline's
// workers depend on: durable storage, the L1 settlement chain, and the L2
// source chain. Workers are written against these interfaces only; storage.
package ports

import (
	"context"
	"time"
)

// TransactionState is the lifecycle state of a SubmissionTransaction.
// Transitions are one-shot: Pending -> Finalized or Pending -> Failed.
type TransactionState int16

const (
	TransactionStatePending TransactionState = iota
	TransactionStateFinalized
	TransactionStateFailed
)

func (s TransactionState) String() string {
	switch s {
	case TransactionStatePending:
		return "pending"
	case TransactionStateFinalized:
		return "finalized"
	case TransactionStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BlockSubmission is a pending or completed L2-header -> L1 commitment.
type BlockSubmission struct {
	FuelBlockHash   [32]byte
	FuelBlockHeight uint32
	Completed       bool
	SubmittalHeight uint64
}

// StateSubmission is an L2 block whose payload has been shredded into
// fragments for blob posting.
type StateSubmission struct {
	ID              int64
	FuelBlockHash   [32]byte
	FuelBlockHeight uint32
}

// MaxFragmentSize is the size, in bytes, of every StateFragment except
// possibly the last one of a submission. Defined by the L1 blob spec: one
// EIP-4844 blob carries 4096 field elements (131072 bytes) of payload,
// but the committer treats this as an opaque constant chosen by the L1
// adapter's encoding, not a protocol detail the core computes.
const MaxFragmentSize = 124 * 1024

// BlobLimit is the maximum number of fragments carried by a single L1
// transaction (spec §6 constants).
const BlobLimit = 6

// StateFragment is one fixed-size slice of an L2 block's concatenated
// transaction bytes.
type StateFragment struct {
	ID           int64
	SubmissionID int64
	FragmentIdx  uint32
	Data         []byte
	CreatedAt    time.Time
}

// SubmissionTransaction is an L1 transaction carrying one or more fragments.
type SubmissionTransaction struct {
	ID    int64
	Hash  [32]byte
	State TransactionState
}

// Storage is the only process-wide synchronization medium the workers share.
// Every multi-row effect is applied inside a single database transaction;
// callers rely on the durable state, never on an in-process lock, for
// idempotence.
type Storage interface {
	// InsertBlockSubmission records a newly committed block header.
	// Idempotence by hash is the caller's responsibility (see
	// LatestBlockSubmission).
	InsertBlockSubmission(ctx context.Context, sub BlockSubmission) error

	// LatestBlockSubmission returns the BlockSubmission with the greatest
	// FuelBlockHeight, or (zero value, false, nil) if none exists.
	LatestBlockSubmission(ctx context.Context) (BlockSubmission, bool, error)

	// MarkBlockSubmissionCompleted sets completed=true for the submission
	// with the given hash. Returns ErrNotFound if no such hash is known.
	MarkBlockSubmissionCompleted(ctx context.Context, hash [32]byte) (BlockSubmission, error)

	// IncompleteBlockSubmissions returns every BlockSubmission with
	// completed=false, in no particular order.
	IncompleteBlockSubmissions(ctx context.Context) ([]BlockSubmission, error)

	// InsertStateSubmission atomically persists a StateSubmission and its
	// StateFragments. Returns ErrEmptyFragments if fragments is empty.
	InsertStateSubmission(ctx context.Context, sub StateSubmission, fragments []StateFragment) error

	// LatestStateSubmission returns the StateSubmission with the greatest
	// FuelBlockHeight, or (zero value, false, nil) if none exists.
	LatestStateSubmission(ctx context.Context) (StateSubmission, bool, error)

	// OutstandingFragments returns up to limit fragments that are not
	// linked to any transaction in {Pending, Finalized}, ordered by
	// CreatedAt ascending.
	OutstandingFragments(ctx context.Context, limit int) ([]StateFragment, error)

	// RecordPendingTx atomically creates a Pending SubmissionTransaction and
	// links it to every fragment id given.
	RecordPendingTx(ctx context.Context, hash [32]byte, fragmentIDs []int64) error

	// HasPendingTxs reports whether any SubmissionTransaction is Pending.
	HasPendingTxs(ctx context.Context) (bool, error)

	// PendingTxs returns every Pending SubmissionTransaction.
	PendingTxs(ctx context.Context) ([]SubmissionTransaction, error)

	// UpdateTxState transitions a Pending transaction to a terminal state. A
	// hash with no matching Pending row is a no-op; callers log but do not
	// treat it as fatal.
	UpdateTxState(ctx context.Context, hash [32]byte, state TransactionState) error

	// Close releases the underlying connection pool. Called once, at
	// process shutdown.
	Close()
}
