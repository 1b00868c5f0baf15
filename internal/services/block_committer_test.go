package services

import (
	"context"
	"errors"
	"testing"

	"github.com/l2settle/committer/internal/ports"
	"github.com/l2settle/committer/internal/storagetest"
)

func TestBlockCommitterCommitsAtStride(t *testing.T) {
	// given a chain at height 12 and a commit interval of 10, with no prior
	// submission
	store := storagetest.New()
	l1 := newFakeL1()
	block10 := ports.FuelBlock{ID: [32]byte{10}, Header: ports.FuelHeader{Height: 10}}
	l2 := &fakeL2{
		tip:    ports.FuelBlock{Header: ports.FuelHeader{Height: 12}},
		blocks: map[uint32]ports.FuelBlock{10: block10},
	}
	c := NewBlockCommitter(l1, store, l2, acceptAll{}, 10)

	// when the committer ticks
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then it commits the block at height 10 and records the submission
	if len(l1.submittedHeaders) != 1 || l1.submittedHeaders[0].Hash != block10.ID {
		t.Fatalf("expected header for block 10 to be submitted, got %+v", l1.submittedHeaders)
	}
	latest, ok, err := store.LatestBlockSubmission(context.Background())
	if err != nil || !ok {
		t.Fatalf("LatestBlockSubmission: %v, %v", ok, err)
	}
	if latest.FuelBlockHeight != 10 {
		t.Fatalf("expected recorded height 10, got %d", latest.FuelBlockHeight)
	}
}

func TestBlockCommitterSkipsBelowNextStride(t *testing.T) {
	// given the latest submission is already at the current stride target
	store := storagetest.New()
	l1 := newFakeL1()
	l2 := &fakeL2{tip: ports.FuelBlock{Header: ports.FuelHeader{Height: 15}}}
	c := NewBlockCommitter(l1, store, l2, acceptAll{}, 10)

	if err := store.InsertBlockSubmission(context.Background(), ports.BlockSubmission{FuelBlockHeight: 10}); err != nil {
		t.Fatalf("seeding submission: %v", err)
	}

	// when the committer ticks
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then nothing new is submitted
	if len(l1.submittedHeaders) != 0 {
		t.Fatalf("expected no submission, got %+v", l1.submittedHeaders)
	}
}

func TestBlockCommitterRejectsInvalidBlock(t *testing.T) {
	// given a block that fails validation
	store := storagetest.New()
	l1 := newFakeL1()
	block10 := ports.FuelBlock{ID: [32]byte{10}, Header: ports.FuelHeader{Height: 10}}
	l2 := &fakeL2{
		tip:    ports.FuelBlock{Header: ports.FuelHeader{Height: 10}},
		blocks: map[uint32]ports.FuelBlock{10: block10},
	}
	wantErr := errors.New("bad signature")
	c := NewBlockCommitter(l1, store, l2, rejectAll{err: wantErr}, 10)

	// when the committer ticks
	err := c.Run(context.Background())

	// then it returns an error and never submits the header
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(l1.submittedHeaders) != 0 {
		t.Fatalf("expected no submission, got %+v", l1.submittedHeaders)
	}
}
