package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/l2settle/committer/internal/ports"
	"github.com/l2settle/committer/internal/storagetest"
)

func TestStateImporterChunksAndPersistsFragments(t *testing.T) {
	// given a block with a payload larger than one fragment
	defer stubImportTime(t)()

	store := storagetest.New()
	payload := make([]byte, ports.MaxFragmentSize+10)
	block := ports.FuelBlock{
		ID:           [32]byte{1},
		Header:       ports.FuelHeader{Height: 1},
		Transactions: [][]byte{payload},
	}
	l2 := &fakeL2{tip: block}
	importer := NewStateImporter(l2, store, acceptAll{})

	// when the importer ticks
	if err := importer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then it persists two fragments, in order
	fragments, err := store.OutstandingFragments(context.Background(), 10)
	if err != nil {
		t.Fatalf("OutstandingFragments: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(fragments))
	}
	if len(fragments[0].Data) != ports.MaxFragmentSize || len(fragments[1].Data) != 10 {
		t.Fatalf("unexpected fragment sizes: %d, %d", len(fragments[0].Data), len(fragments[1].Data))
	}
}

func TestStateImporterSkipsEmptyBlock(t *testing.T) {
	// given a block with no transactions
	store := storagetest.New()
	l2 := &fakeL2{tip: ports.FuelBlock{ID: [32]byte{2}, Header: ports.FuelHeader{Height: 2}}}
	importer := NewStateImporter(l2, store, acceptAll{})

	// when the importer ticks
	if err := importer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then nothing is persisted
	_, ok, err := store.LatestStateSubmission(context.Background())
	if err != nil {
		t.Fatalf("LatestStateSubmission: %v", err)
	}
	if ok {
		t.Fatal("expected no state submission to be recorded")
	}
}

func TestStateImporterValidatesBeforeSkippingEmptyBlock(t *testing.T) {
	// given an empty block that would also fail validation
	store := storagetest.New()
	l2 := &fakeL2{tip: ports.FuelBlock{ID: [32]byte{2}, Header: ports.FuelHeader{Height: 2}}}
	rejectErr := errors.New("bad signature")
	importer := NewStateImporter(l2, store, rejectAll{err: rejectErr})

	// when the importer ticks, it surfaces the validation error rather than
	// silently no-op'ing on the empty-block check
	err := importer.Run(context.Background())
	if err == nil || !errors.Is(err, rejectErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStateImporterValidatesBeforeSkippingStaleHeight(t *testing.T) {
	// given a stale block (height no newer than the last import) that
	// would also fail validation
	store := storagetest.New()
	if err := store.InsertStateSubmission(context.Background(),
		ports.StateSubmission{FuelBlockHeight: 5},
		[]ports.StateFragment{{Data: []byte("x"), CreatedAt: time.Now()}}); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	block := ports.FuelBlock{
		ID:           [32]byte{5},
		Header:       ports.FuelHeader{Height: 5},
		Transactions: [][]byte{[]byte("tx")},
	}
	l2 := &fakeL2{tip: block}
	rejectErr := errors.New("bad signature")
	importer := NewStateImporter(l2, store, rejectAll{err: rejectErr})

	// when the importer ticks, it surfaces the validation error rather than
	// silently no-op'ing on the staleness check
	err := importer.Run(context.Background())
	if err == nil || !errors.Is(err, rejectErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStateImporterSkipsAlreadyImportedHeight(t *testing.T) {
	// given a block no newer than the latest import
	store := storagetest.New()
	if err := store.InsertStateSubmission(context.Background(),
		ports.StateSubmission{FuelBlockHeight: 5},
		[]ports.StateFragment{{Data: []byte("x"), CreatedAt: time.Now()}}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	block := ports.FuelBlock{
		ID:           [32]byte{5},
		Header:       ports.FuelHeader{Height: 5},
		Transactions: [][]byte{[]byte("tx")},
	}
	l2 := &fakeL2{tip: block}
	importer := NewStateImporter(l2, store, acceptAll{})

	// when the importer ticks
	if err := importer.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then no second submission is recorded
	fragments, err := store.OutstandingFragments(context.Background(), 10)
	if err != nil {
		t.Fatalf("OutstandingFragments: %v", err)
	}
	if len(fragments) != 1 {
		t.Fatalf("expected the original fragment only, got %d", len(fragments))
	}
}

// stubImportTime pins blockImportTime to a fixed value for the duration of
// a test and returns a func to restore it.
func stubImportTime(t *testing.T) func() {
	t.Helper()
	original := blockImportTime
	fixed := time.Unix(0, 0).UTC()
	blockImportTime = func() time.Time { return fixed }
	return func() { blockImportTime = original }
}
