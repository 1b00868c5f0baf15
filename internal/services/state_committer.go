package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
)

var stateCommitterLog = logrus.WithField("component", "state_committer")

// StateCommitter bundles outstanding fragments into one L1 blob transaction
// at a time, never allowing more than one of its own transactions to be
// in flight (spec §4.5).
type StateCommitter struct {
	l1      ports.L1Api
	storage ports.Storage
}

// NewStateCommitter builds a StateCommitter.
func NewStateCommitter(l1 ports.L1Api, storage ports.Storage) *StateCommitter {
	return &StateCommitter{l1: l1, storage: storage}
}

// Run executes one tick: if a submission from this worker is still pending,
// do nothing; otherwise pull up to ports.BlobLimit outstanding fragments and
// post them as a single blob transaction.
func (c *StateCommitter) Run(ctx context.Context) error {
	pending, err := c.storage.HasPendingTxs(ctx)
	if err != nil {
		return errors.Wrap(err, "checking for pending transactions")
	}
	if pending {
		return nil
	}

	fragments, err := c.storage.OutstandingFragments(ctx, ports.BlobLimit)
	if err != nil {
		return errors.Wrap(err, "fetching outstanding fragments")
	}
	if len(fragments) == 0 {
		return nil
	}

	var payload []byte
	ids := make([]int64, 0, len(fragments))
	for _, f := range fragments {
		payload = append(payload, f.Data...)
		ids = append(ids, f.ID)
	}

	hash, err := c.l1.SubmitL2State(ctx, payload)
	if err != nil {
		return errors.Wrap(err, "submitting L2 state to L1")
	}

	if err := c.storage.RecordPendingTx(ctx, hash, ids); err != nil {
		return errors.Wrap(err, "recording pending transaction")
	}

	stateCommitterLog.WithFields(logrus.Fields{
		"hash":      hash,
		"fragments": len(fragments),
	}).Info("submitted blob transaction")
	return nil
}
