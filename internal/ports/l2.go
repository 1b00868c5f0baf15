package ports

import "context"

// FuelConsensus is the PoA consensus proof attached to a FuelBlock.
type FuelConsensus struct {
	Signature [64]byte
}

// FuelHeader carries the fields a FuelBlock's id is a hash of.
type FuelHeader struct {
	Height            uint32
	PrevRoot          [32]byte
	Time              int64
	ApplicationHash   [32]byte
	TransactionsRoot  [32]byte
}

// FuelBlock is one L2 block as reported by the source chain.
type FuelBlock struct {
	ID              [32]byte
	Header          FuelHeader
	Consensus       FuelConsensus
	Transactions    [][]byte
	BlockProducer   []byte // compressed public key, nil if unset
}

// L2Api is the source chain adapter consumed by the Block Committer and the
// State Importer.
type L2Api interface {
	// LatestBlock returns the most recent L2 block.
	LatestBlock(ctx context.Context) (FuelBlock, error)

	// BlockAt returns the L2 block at the given height, or (zero value,
	// false, nil) if the source chain has not produced it yet.
	BlockAt(ctx context.Context, height uint32) (FuelBlock, bool, error)

	// ConnectionHealthChecker exposes this adapter's error-budget tracker.
	ConnectionHealthChecker() HealthChecker
}
