package ports

import (
	"context"
	"math/big"
)

// L1Height is the current block number of the settlement chain.
type L1Height uint64

// TransactionResponse is what the L1 adapter reports back about a
// transaction it has previously submitted.
type TransactionResponse struct {
	BlockNumber uint64
	Succeeded   bool
}

// FuelBlockHeader carries the fields committed to L1 for an L2 block.
type FuelBlockHeader struct {
	Hash   [32]byte
	Height uint32
}

// HealthChecker reports whether an adapter's recent call history is within
// its configured error budget (spec §6: "after N consecutive errors the
// health checker reports unhealthy").
type HealthChecker interface {
	Healthy() bool
}

// L1Api is the settlement chain adapter consumed by the Block Committer,
// Commit Listener, State Committer, State Listener, and the wallet balance
// tracker.
type L1Api interface {
	// SubmitHeader commits an L2 block header to the L1 contract, returning
	// the transaction hash and the L1 block number the tx was sent at.
	SubmitHeader(ctx context.Context, header FuelBlockHeader) (txHash [32]byte, submittalHeight uint64, err error)

	// SubmitL2State posts the given bytes as an L1 blob transaction.
	SubmitL2State(ctx context.Context, data []byte) (txHash [32]byte, err error)

	// GetBlockNumber returns L1's current block number.
	GetBlockNumber(ctx context.Context) (L1Height, error)

	// GetTransactionResponse returns the mined status of a previously
	// submitted transaction, or (zero value, false, nil) if it has not yet
	// been included.
	GetTransactionResponse(ctx context.Context, hash [32]byte) (TransactionResponse, bool, error)

	// Balance returns the wallet balance, in wei, of the configured signer.
	Balance(ctx context.Context) (*big.Int, error)

	// EventStream starts (or restarts) a subscription to the settlement
	// contract's commitment events from the given L1 height, delivering one
	// fuel block hash per confirmed commitment. The channel is closed when
	// ctx is canceled or the subscription is torn down; a non-nil error then
	// indicates why it ended.
	EventStream(ctx context.Context, fromHeight uint64) (<-chan CommitEvent, <-chan error)

	// ConnectionHealthChecker exposes this adapter's error-budget tracker.
	ConnectionHealthChecker() HealthChecker
}

// CommitEvent is one observed on-chain commitment event.
type CommitEvent struct {
	FuelBlockHash [32]byte
}
