package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
	"github.com/l2settle/committer/internal/validator"
)

var stateImporterLog = logrus.WithField("component", "state_importer")

// StateImporter fetches the latest L2 block, validates it, and shreds its
// transaction payload into fragments for later blob posting (spec §4.4).
type StateImporter struct {
	l2        ports.L2Api
	storage   ports.Storage
	validator validator.Validator
}

// NewStateImporter builds a StateImporter.
func NewStateImporter(l2 ports.L2Api, storage ports.Storage, v validator.Validator) *StateImporter {
	return &StateImporter{l2: l2, storage: storage, validator: v}
}

// Run executes one tick: fetch the latest L2 block and validate it, then
// skip it if it is no newer than the last imported submission or carries no
// transactions, else atomically persist its fragments (spec §4.4 step
// order: fetch+validate before the staleness/empty checks, so a block
// failing validation is never silently no-op'd as merely stale or empty).
func (i *StateImporter) Run(ctx context.Context) error {
	block, err := i.l2.LatestBlock(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching latest L2 block")
	}

	if err := i.validator.Validate(block); err != nil {
		return errors.Wrapf(err, "validating block %d", block.Header.Height)
	}

	latest, hasLatest, err := i.storage.LatestStateSubmission(ctx)
	if err != nil {
		return errors.Wrap(err, "reading latest state submission")
	}
	if hasLatest && block.Header.Height <= latest.FuelBlockHeight {
		return nil
	}

	if len(block.Transactions) == 0 {
		stateImporterLog.WithField("height", block.Header.Height).Debug("skipping empty block")
		return nil
	}

	fragments := chunkBlock(block)
	err = i.storage.InsertStateSubmission(ctx, ports.StateSubmission{
		FuelBlockHash:   block.ID,
		FuelBlockHeight: block.Header.Height,
	}, fragments)
	if err != nil {
		return errors.Wrapf(err, "inserting state submission for block %d", block.Header.Height)
	}

	stateImporterLog.WithFields(logrus.Fields{
		"height":    block.Header.Height,
		"fragments": len(fragments),
	}).Info("imported state")
	return nil
}

// chunkBlock concatenates a block's transaction bytes and splits them into
// fixed-size fragments of at most ports.MaxFragmentSize bytes each (spec §6
// "fragment chunking").
func chunkBlock(block ports.FuelBlock) []ports.StateFragment {
	var payload []byte
	for _, tx := range block.Transactions {
		payload = append(payload, tx...)
	}

	var fragments []ports.StateFragment
	now := blockImportTime()
	for idx := uint32(0); ; idx++ {
		start := int(idx) * ports.MaxFragmentSize
		if start >= len(payload) {
			break
		}
		end := start + ports.MaxFragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		fragments = append(fragments, ports.StateFragment{
			FragmentIdx: idx,
			Data:        payload[start:end],
			CreatedAt:   now,
		})
	}
	return fragments
}

// blockImportTime is the timestamp recorded against every fragment of one
// import tick, factored out so tests can observe a single fixed value.
var blockImportTime = func() time.Time { return time.Now().UTC() }
