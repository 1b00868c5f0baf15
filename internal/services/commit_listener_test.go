package services

import (
	"context"
	"testing"

	"github.com/l2settle/committer/internal/ports"
	"github.com/l2settle/committer/internal/storagetest"
)

func TestCommitListenerMarksSubmissionCompleted(t *testing.T) {
	// given a recorded, incomplete block submission and a matching commit
	// event waiting on the stream
	store := storagetest.New()
	hash := [32]byte{7}
	if err := store.InsertBlockSubmission(context.Background(), ports.BlockSubmission{FuelBlockHash: hash, FuelBlockHeight: 5}); err != nil {
		t.Fatalf("seeding submission: %v", err)
	}

	l1 := newFakeL1()
	l1.events <- ports.CommitEvent{FuelBlockHash: hash}

	listener := NewCommitListener(l1, store)

	// when the listener ticks
	if err := listener.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then the submission is marked completed
	sub, err := store.MarkBlockSubmissionCompleted(context.Background(), hash)
	if err != nil {
		t.Fatalf("MarkBlockSubmissionCompleted: %v", err)
	}
	if !sub.Completed {
		t.Fatal("expected submission to be completed")
	}
}

func TestCommitListenerResumesFromOldestIncompleteSubmission(t *testing.T) {
	// given two simultaneously-incomplete submissions, submitted at
	// different L1 heights, plus a completed one newer still
	store := storagetest.New()
	ctx := context.Background()
	submissions := []ports.BlockSubmission{
		{FuelBlockHash: [32]byte{1}, FuelBlockHeight: 100, SubmittalHeight: 500},
		{FuelBlockHash: [32]byte{2}, FuelBlockHeight: 200, SubmittalHeight: 600},
		{FuelBlockHash: [32]byte{3}, FuelBlockHeight: 300, SubmittalHeight: 700, Completed: true},
	}
	for _, sub := range submissions {
		if err := store.InsertBlockSubmission(ctx, sub); err != nil {
			t.Fatalf("seeding submission: %v", err)
		}
	}

	l1 := newFakeL1()
	listener := NewCommitListener(l1, store)

	// when the listener ticks for the first time
	if err := listener.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then it resumes from the lowest submittal height among the two
	// incomplete submissions, not the highest-fuel-height row's
	if len(l1.eventStreamFroms) != 1 || l1.eventStreamFroms[0] != 500 {
		t.Fatalf("expected event stream to resume from 500, got %v", l1.eventStreamFroms)
	}
}

func TestCommitListenerIgnoresUnknownHash(t *testing.T) {
	// given a commit event for a hash storage has never seen
	store := storagetest.New()
	l1 := newFakeL1()
	l1.events <- ports.CommitEvent{FuelBlockHash: [32]byte{99}}
	listener := NewCommitListener(l1, store)

	// when the listener ticks, it does not error
	if err := listener.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
