package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
)

var stateListenerLog = logrus.WithField("component", "state_listener")

// StateListener polls every Pending SubmissionTransaction and advances it to
// a terminal state once L1 has resolved it (spec §4.6). A transaction is
// Finalized once it has been mined for at least finalizationDelay blocks and
// succeeded; it is Failed as soon as L1 reports it mined but reverted.
type StateListener struct {
	l1      ports.L1Api
	storage ports.Storage

	finalizationDelay uint64

	lastBlockWithBlob prometheus.Gauge
}

// NewStateListener builds a StateListener.
func NewStateListener(l1 ports.L1Api, storage ports.Storage, finalizationDelay uint64) *StateListener {
	return &StateListener{
		l1:                l1,
		storage:           storage,
		finalizationDelay: finalizationDelay,
		lastBlockWithBlob: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "last_eth_block_w_blob",
			Help: "L1 block number of the most recently finalized blob transaction.",
		}),
	}
}

// RegisterMetrics registers this worker's collectors.
func (l *StateListener) RegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(l.lastBlockWithBlob)
}

// Run executes one tick: check every Pending transaction against L1 and
// transition it to Failed or Finalized where warranted.
func (l *StateListener) Run(ctx context.Context) error {
	pending, err := l.storage.PendingTxs(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching pending transactions")
	}
	if len(pending) == 0 {
		return nil
	}

	currentHeight, err := l.l1.GetBlockNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching current L1 block number")
	}

	for _, tx := range pending {
		if err := l.check(ctx, tx, currentHeight); err != nil {
			stateListenerLog.WithError(err).WithField("hash", tx.Hash).Warn("checking pending transaction")
		}
	}
	return nil
}

func (l *StateListener) check(ctx context.Context, tx ports.SubmissionTransaction, currentHeight ports.L1Height) error {
	resp, mined, err := l.l1.GetTransactionResponse(ctx, tx.Hash)
	if err != nil {
		return errors.Wrap(err, "fetching transaction response")
	}
	if !mined {
		return nil
	}

	if !resp.Succeeded {
		if err := l.storage.UpdateTxState(ctx, tx.Hash, ports.TransactionStateFailed); err != nil {
			return errors.Wrap(err, "marking transaction failed")
		}
		stateListenerLog.WithField("hash", tx.Hash).Warn("blob transaction reverted")
		return nil
	}

	if uint64(currentHeight) < resp.BlockNumber+l.finalizationDelay {
		return nil
	}

	if err := l.storage.UpdateTxState(ctx, tx.Hash, ports.TransactionStateFinalized); err != nil {
		return errors.Wrap(err, "marking transaction finalized")
	}
	l.lastBlockWithBlob.Set(float64(resp.BlockNumber))
	stateListenerLog.WithFields(logrus.Fields{
		"hash":  tx.Hash,
		"block": resp.BlockNumber,
	}).Info("blob transaction finalized")
	return nil
}
