package l1

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/l2settle/committer/internal/ports"
)

// contractABI is the minimal settlement contract surface this adapter
// needs: committing a header, committing a state blob, and the event that
// confirms a header commitment landed.
const contractABI = `[
	{"type":"function","name":"commitHeader","stateMutability":"nonpayable",
	 "inputs":[{"name":"blockHash","type":"bytes32"},{"name":"height","type":"uint32"}],
	 "outputs":[]},
	{"type":"function","name":"commitBlob","stateMutability":"nonpayable",
	 "inputs":[{"name":"data","type":"bytes"}],
	 "outputs":[]},
	{"type":"event","name":"CommitSubmitted","anonymous":false,
	 "inputs":[{"name":"blockHash","type":"bytes32","indexed":true}]}
]`

// NewContract builds a Contract bound to address over backend, using the
// hand-written ABI above (no abigen-generated package is part of this
// repo; see DESIGN.md).
func NewContract(address common.Address, backend bind.ContractBackend) (Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return Contract{}, errors.Wrap(err, "parsing contract ABI")
	}
	bound := bind.NewBoundContract(address, parsed, backend, backend, backend)

	return Contract{
		Address: address,
		Backend: backend,
		CommitHeader: func(opts *bind.TransactOpts, blockHash [32]byte, height uint32) (*types.Transaction, error) {
			return bound.Transact(opts, "commitHeader", blockHash, height)
		},
		CommitBlob: func(opts *bind.TransactOpts, data []byte) (*types.Transaction, error) {
			return bound.Transact(opts, "commitBlob", data)
		},
		WatchCommits: func(ctx context.Context, fromBlock uint64) (<-chan ports.CommitEvent, ethereum.Subscription, error) {
			return watchCommits(ctx, backend, address, parsed, fromBlock)
		},
	}, nil
}

func watchCommits(ctx context.Context, backend bind.ContractBackend, address common.Address, parsed abi.ABI, fromBlock uint64) (<-chan ports.CommitEvent, ethereum.Subscription, error) {
	filterer, ok := backend.(bind.ContractFilterer)
	if !ok {
		return nil, nil, errors.New("backend does not support log filtering")
	}

	logs := make(chan types.Log)
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{parsed.Events["CommitSubmitted"].ID}},
	}
	sub, err := filterer.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "subscribing to contract logs")
	}

	out := make(chan ports.CommitEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case l, ok := <-logs:
				if !ok {
					return
				}
				if len(l.Topics) < 2 {
					continue
				}
				out <- ports.CommitEvent{FuelBlockHash: l.Topics[1]}
			}
		}
	}()

	return out, sub, nil
}
