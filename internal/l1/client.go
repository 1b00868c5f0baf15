// Package l1 is the concrete ports.L1Api adapter: a go-ethereum JSON-RPC
// client talking to the settlement contract, with a consecutive-error
// health budget (SPEC_FULL.md §4, "Health checking with an error budget").
package l1

import (
	"context"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
)

var log = logrus.WithField("component", "l1")

// Contract is the narrow surface this adapter needs from a settlement
// contract binding. The binding built by NewContract is wired in at process
// startup; since each operation is a func field, any other implementation
// can be substituted.
type Contract struct {
	Address common.Address
	Backend bind.ContractBackend

	// CommitHeader submits an L2 block header commitment transaction.
	CommitHeader func(opts *bind.TransactOpts, blockHash [32]byte, height uint32) (*types.Transaction, error)

	// CommitBlob submits an L2 state blob transaction.
	CommitBlob func(opts *bind.TransactOpts, data []byte) (*types.Transaction, error)

	// WatchCommits subscribes to the contract's commitment events starting
	// at fromBlock.
	WatchCommits func(ctx context.Context, fromBlock uint64) (<-chan ports.CommitEvent, ethereum.Subscription, error)
}

// Client is the ports.L1Api implementation.
type Client struct {
	eth        *ethclient.Client
	contract   Contract
	mainSigner ports.Signer
	blobSigner ports.Signer
	chainID    *big.Int

	errorBudget int64
	consecutive int64
}

// New builds a Client. mainSigner signs header commitments; blobSigner
// signs blob transactions and may be the same signer as mainSigner (spec §6
// "main_key_arn"/"blob_pool_key_arn", the latter optional). errorBudget is
// the number of consecutive adapter errors tolerated before
// ConnectionHealthChecker reports unhealthy (spec §6
// "eth_errors_before_unhealthy").
func New(eth *ethclient.Client, contract Contract, mainSigner, blobSigner ports.Signer, chainID *big.Int, errorBudget int64) *Client {
	return &Client{
		eth:         eth,
		contract:    contract,
		mainSigner:  mainSigner,
		blobSigner:  blobSigner,
		chainID:     chainID,
		errorBudget: errorBudget,
	}
}

func (c *Client) record(err error) error {
	if err != nil {
		atomic.AddInt64(&c.consecutive, 1)
		return err
	}
	atomic.StoreInt64(&c.consecutive, 0)
	return nil
}

// SubmitHeader commits an L2 block header to the settlement contract.
func (c *Client) SubmitHeader(ctx context.Context, header ports.FuelBlockHeader) ([32]byte, uint64, error) {
	opts := transactOpts(ctx, c.mainSigner, c.chainID)

	tx, err := c.contract.CommitHeader(opts, header.Hash, header.Height)
	if err = c.record(err); err != nil {
		return [32]byte{}, 0, errors.Wrap(err, "submitting header commitment")
	}

	height, err := c.eth.BlockNumber(ctx)
	if err = c.record(err); err != nil {
		return [32]byte{}, 0, errors.Wrap(err, "fetching submittal height")
	}

	return tx.Hash(), height, nil
}

// SubmitL2State posts data as an L1 blob transaction.
func (c *Client) SubmitL2State(ctx context.Context, data []byte) ([32]byte, error) {
	opts := transactOpts(ctx, c.blobSigner, c.chainID)

	tx, err := c.contract.CommitBlob(opts, data)
	if err = c.record(err); err != nil {
		return [32]byte{}, errors.Wrap(err, "submitting blob commitment")
	}
	return tx.Hash(), nil
}

// GetBlockNumber returns L1's current block number.
func (c *Client) GetBlockNumber(ctx context.Context) (ports.L1Height, error) {
	height, err := c.eth.BlockNumber(ctx)
	if err = c.record(err); err != nil {
		return 0, errors.Wrap(err, "fetching block number")
	}
	return ports.L1Height(height), nil
}

// GetTransactionResponse reports the mined status of a previously submitted
// transaction.
func (c *Client) GetTransactionResponse(ctx context.Context, hash [32]byte) (ports.TransactionResponse, bool, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.Hash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return ports.TransactionResponse{}, false, nil
	}
	if err = c.record(err); err != nil {
		return ports.TransactionResponse{}, false, errors.Wrap(err, "fetching transaction receipt")
	}

	return ports.TransactionResponse{
		BlockNumber: receipt.BlockNumber.Uint64(),
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
	}, true, nil
}

// Balance returns the main signer's wallet balance, in wei.
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, common.Address(c.mainSigner.Address()), nil)
	if err = c.record(err); err != nil {
		return nil, errors.Wrap(err, "fetching wallet balance")
	}
	return balance, nil
}

// EventStream subscribes to the settlement contract's commitment events
// from fromHeight. On subscription error both channels are closed after the
// error channel receives a single value.
func (c *Client) EventStream(ctx context.Context, fromHeight uint64) (<-chan ports.CommitEvent, <-chan error) {
	events := make(chan ports.CommitEvent)
	errs := make(chan error, 1)

	raw, sub, err := c.contract.WatchCommits(ctx, fromHeight)
	if err != nil {
		errs <- errors.Wrap(err, "subscribing to commit events")
		close(events)
		close(errs)
		return events, errs
	}

	go func() {
		defer close(events)
		defer close(errs)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					errs <- errors.Wrap(err, "commit event subscription")
				}
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				events <- ev
			}
		}
	}()

	return events, errs
}

// ConnectionHealthChecker exposes this client's consecutive-error budget.
func (c *Client) ConnectionHealthChecker() ports.HealthChecker {
	return healthChecker{c}
}

type healthChecker struct{ c *Client }

func (h healthChecker) Healthy() bool {
	healthy := atomic.LoadInt64(&h.c.consecutive) < h.c.errorBudget
	if !healthy {
		log.Warn("l1 client unhealthy: consecutive error budget exhausted")
	}
	return healthy
}
