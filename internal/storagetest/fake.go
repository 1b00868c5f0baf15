// Package storagetest provides an in-memory ports.Storage fake that enforces
// the same invariants (I1-I4) a real Postgres-backed store would, so worker
// unit tests don't need a live database.
package storagetest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/l2settle/committer/internal/ports"
)

// Store is a goroutine-safe, in-memory ports.Storage.
type Store struct {
	mu sync.Mutex

	blockSubmissions []ports.BlockSubmission

	stateSubmissions []ports.StateSubmission
	fragments        []ports.StateFragment
	nextSubmissionID int64
	nextFragmentID   int64

	transactions []ports.SubmissionTransaction
	links        map[int64][]int64 // transaction id -> fragment ids
	nextTxID     int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nextSubmissionID: 1,
		nextFragmentID:   1,
		nextTxID:         1,
		links:            make(map[int64][]int64),
	}
}

func (s *Store) InsertBlockSubmission(_ context.Context, sub ports.BlockSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blockSubmissions {
		if b.FuelBlockHash == sub.FuelBlockHash {
			return errors.New("block submission with this hash already exists")
		}
	}
	s.blockSubmissions = append(s.blockSubmissions, sub)
	return nil
}

func (s *Store) LatestBlockSubmission(_ context.Context) (ports.BlockSubmission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blockSubmissions) == 0 {
		return ports.BlockSubmission{}, false, nil
	}
	best := s.blockSubmissions[0]
	for _, b := range s.blockSubmissions[1:] {
		if b.FuelBlockHeight > best.FuelBlockHeight {
			best = b
		}
	}
	return best, true, nil
}

func (s *Store) MarkBlockSubmissionCompleted(_ context.Context, hash [32]byte) (ports.BlockSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.blockSubmissions {
		if b.FuelBlockHash == hash {
			s.blockSubmissions[i].Completed = true
			return s.blockSubmissions[i], nil
		}
	}
	return ports.BlockSubmission{}, ports.ErrNotFound
}

func (s *Store) IncompleteBlockSubmissions(_ context.Context) ([]ports.BlockSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.BlockSubmission
	for _, b := range s.blockSubmissions {
		if !b.Completed {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) InsertStateSubmission(_ context.Context, sub ports.StateSubmission, fragments []ports.StateFragment) error {
	if len(fragments) == 0 {
		return ports.ErrEmptyFragments
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.ID = s.nextSubmissionID
	s.nextSubmissionID++
	s.stateSubmissions = append(s.stateSubmissions, sub)

	for _, f := range fragments {
		f.ID = s.nextFragmentID
		s.nextFragmentID++
		f.SubmissionID = sub.ID
		s.fragments = append(s.fragments, f)
	}
	return nil
}

func (s *Store) LatestStateSubmission(_ context.Context) (ports.StateSubmission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stateSubmissions) == 0 {
		return ports.StateSubmission{}, false, nil
	}
	best := s.stateSubmissions[0]
	for _, sub := range s.stateSubmissions[1:] {
		if sub.FuelBlockHeight > best.FuelBlockHeight {
			best = sub
		}
	}
	return best, true, nil
}

func (s *Store) OutstandingFragments(_ context.Context, limit int) ([]ports.StateFragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	consumed := make(map[int64]bool)
	for txID, fragmentIDs := range s.links {
		state := s.txState(txID)
		if state == ports.TransactionStatePending || state == ports.TransactionStateFinalized {
			for _, id := range fragmentIDs {
				consumed[id] = true
			}
		}
	}

	var out []ports.StateFragment
	for _, f := range s.fragments {
		if !consumed[f.ID] {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) txState(id int64) ports.TransactionState {
	for _, t := range s.transactions {
		if t.ID == id {
			return t.State
		}
	}
	return -1
}

func (s *Store) RecordPendingTx(_ context.Context, hash [32]byte, fragmentIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextTxID
	s.nextTxID++
	s.transactions = append(s.transactions, ports.SubmissionTransaction{
		ID:    id,
		Hash:  hash,
		State: ports.TransactionStatePending,
	})
	s.links[id] = append([]int64(nil), fragmentIDs...)
	return nil
}

func (s *Store) HasPendingTxs(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.State == ports.TransactionStatePending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PendingTxs(_ context.Context) ([]ports.SubmissionTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.SubmissionTransaction
	for _, t := range s.transactions {
		if t.State == ports.TransactionStatePending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpdateTxState(_ context.Context, hash [32]byte, state ports.TransactionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.Hash == hash && t.State == ports.TransactionStatePending {
			s.transactions[i].State = state
			return nil
		}
	}
	return nil // unknown hash is a no-op, matching spec §4.1
}

func (s *Store) Close() {}
