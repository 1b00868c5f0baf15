package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/l2settle/committer/internal/ports"
	"github.com/l2settle/committer/internal/storagetest"
)

// newFakeStoreWithPendingTx seeds a store with one fragment already bundled
// into a pending transaction carrying hash.
func newFakeStoreWithPendingTx(t *testing.T, hash [32]byte) *storagetest.Store {
	t.Helper()
	store := storagetest.New()
	ctx := context.Background()
	if err := store.InsertStateSubmission(ctx, ports.StateSubmission{FuelBlockHeight: 1},
		[]ports.StateFragment{{Data: []byte("a"), CreatedAt: time.Now()}}); err != nil {
		t.Fatalf("seeding submission: %v", err)
	}
	if err := store.RecordPendingTx(ctx, hash, []int64{1}); err != nil {
		t.Fatalf("seeding pending tx: %v", err)
	}
	return store
}

// fakeL2 serves a fixed set of blocks, keyed by height, and reports the
// given chain tip as its LatestBlock.
type fakeL2 struct {
	blocks  map[uint32]ports.FuelBlock
	tip     ports.FuelBlock
	tipErr  error
	blockAtErr error
}

func (f *fakeL2) LatestBlock(context.Context) (ports.FuelBlock, error) {
	return f.tip, f.tipErr
}

func (f *fakeL2) BlockAt(_ context.Context, height uint32) (ports.FuelBlock, bool, error) {
	if f.blockAtErr != nil {
		return ports.FuelBlock{}, false, f.blockAtErr
	}
	b, ok := f.blocks[height]
	return b, ok, nil
}

func (f *fakeL2) ConnectionHealthChecker() ports.HealthChecker { return alwaysHealthy{} }

// fakeL1 records every header and blob submission made against it and
// serves canned responses for block number / transaction lookups.
type fakeL1 struct {
	submittedHeaders []ports.FuelBlockHeader
	submittedBlobs   [][]byte
	submitHeaderErr  error
	submittalHeight  uint64

	blockNumber ports.L1Height

	txResponses map[[32]byte]ports.TransactionResponse
	txMined     map[[32]byte]bool

	events           chan ports.CommitEvent
	errs             chan error
	eventStreamFroms []uint64

	balance *big.Int
}

func newFakeL1() *fakeL1 {
	return &fakeL1{
		txResponses: make(map[[32]byte]ports.TransactionResponse),
		txMined:     make(map[[32]byte]bool),
		events:      make(chan ports.CommitEvent, 8),
		errs:        make(chan error, 1),
		balance:     big.NewInt(0),
	}
}

func (f *fakeL1) SubmitHeader(_ context.Context, header ports.FuelBlockHeader) ([32]byte, uint64, error) {
	if f.submitHeaderErr != nil {
		return [32]byte{}, 0, f.submitHeaderErr
	}
	f.submittedHeaders = append(f.submittedHeaders, header)
	return header.Hash, f.submittalHeight, nil
}

func (f *fakeL1) SubmitL2State(_ context.Context, data []byte) ([32]byte, error) {
	f.submittedBlobs = append(f.submittedBlobs, data)
	var hash [32]byte
	hash[0] = byte(len(f.submittedBlobs))
	return hash, nil
}

func (f *fakeL1) GetBlockNumber(context.Context) (ports.L1Height, error) {
	return f.blockNumber, nil
}

func (f *fakeL1) GetTransactionResponse(_ context.Context, hash [32]byte) (ports.TransactionResponse, bool, error) {
	if !f.txMined[hash] {
		return ports.TransactionResponse{}, false, nil
	}
	return f.txResponses[hash], true, nil
}

func (f *fakeL1) Balance(context.Context) (*big.Int, error) { return f.balance, nil }

func (f *fakeL1) EventStream(_ context.Context, fromHeight uint64) (<-chan ports.CommitEvent, <-chan error) {
	f.eventStreamFroms = append(f.eventStreamFroms, fromHeight)
	return f.events, f.errs
}

func (f *fakeL1) ConnectionHealthChecker() ports.HealthChecker { return alwaysHealthy{} }

type alwaysHealthy struct{}

func (alwaysHealthy) Healthy() bool { return true }

// acceptAll is a validator.Validator stub that never rejects a block.
type acceptAll struct{}

func (acceptAll) Validate(ports.FuelBlock) error { return nil }

// rejectAll is a validator.Validator stub that always rejects.
type rejectAll struct{ err error }

func (r rejectAll) Validate(ports.FuelBlock) error { return r.err }
