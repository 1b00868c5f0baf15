package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
	"github.com/l2settle/committer/internal/validator"
)

var blockCommitterLog = logrus.WithField("component", "block_committer")

// BlockCommitter periodically picks an L2 block at a stride and commits its
// header to the L1 contract (spec §4.2).
type BlockCommitter struct {
	l1             ports.L1Api
	storage        ports.Storage
	l2             ports.L2Api
	validator      validator.Validator
	commitInterval uint32
}

// NewBlockCommitter builds a BlockCommitter. commitInterval must be positive
// (spec §6 "commit_interval").
func NewBlockCommitter(l1 ports.L1Api, storage ports.Storage, l2 ports.L2Api, v validator.Validator, commitInterval uint32) *BlockCommitter {
	return &BlockCommitter{
		l1:             l1,
		storage:        storage,
		l2:             l2,
		validator:      v,
		commitInterval: commitInterval,
	}
}

// Run executes one tick: pick a target height, fetch and validate the block
// at it, submit its header to L1, and record the submission. Any failure
// logs and returns; the next tick retries from scratch (spec §4.2 "Failure
// policy").
func (c *BlockCommitter) Run(ctx context.Context) error {
	latest, hasLatest, err := c.storage.LatestBlockSubmission(ctx)
	if err != nil {
		return errors.Wrap(err, "reading latest block submission")
	}

	height, err := c.l2.LatestBlock(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching current L2 chain height")
	}
	currentHeight := height.Header.Height

	target, ok := c.chooseTarget(currentHeight, latest, hasLatest)
	if !ok {
		return nil
	}

	block, found, err := c.l2.BlockAt(ctx, target)
	if err != nil {
		return errors.Wrapf(err, "fetching L2 block at height %d", target)
	}
	if !found {
		return nil
	}

	if err := c.validator.Validate(block); err != nil {
		return errors.Wrapf(err, "validating block %d", target)
	}

	header := ports.FuelBlockHeader{Hash: block.ID, Height: block.Header.Height}
	_, submittalHeight, err := c.l1.SubmitHeader(ctx, header)
	if err != nil {
		return errors.Wrapf(err, "submitting header for block %d", target)
	}

	err = c.storage.InsertBlockSubmission(ctx, ports.BlockSubmission{
		FuelBlockHash:   block.ID,
		FuelBlockHeight: block.Header.Height,
		Completed:       false,
		SubmittalHeight: submittalHeight,
	})
	if err != nil {
		return errors.Wrapf(err, "recording block submission for block %d", target)
	}

	blockCommitterLog.WithFields(logrus.Fields{
		"height":           target,
		"submittal_height": submittalHeight,
	}).Info("committed block header")
	return nil
}

// chooseTarget picks the largest multiple of commitInterval that is <=
// currentHeight and strictly greater than the latest committed height, if
// any (spec §4.2 step 3).
func (c *BlockCommitter) chooseTarget(currentHeight uint32, latest ports.BlockSubmission, hasLatest bool) (uint32, bool) {
	if c.commitInterval == 0 {
		return 0, false
	}
	target := (currentHeight / c.commitInterval) * c.commitInterval
	if target == 0 && currentHeight < c.commitInterval {
		return 0, false
	}
	if hasLatest && target <= latest.FuelBlockHeight {
		return 0, false
	}
	return target, true
}
