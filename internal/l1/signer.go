package l1

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/l2settle/committer/internal/ports"
)

// transactOpts builds a bind.TransactOpts whose Signer delegates every
// signature to the external ports.Signer (the KMS credential provider); the
// adapter never handles key material itself (spec §1 Non-goals).
func transactOpts(ctx context.Context, signer ports.Signer, chainID *big.Int) *bind.TransactOpts {
	address := common.Address(signer.Address())
	ethSigner := types.LatestSignerForChainID(chainID)

	return &bind.TransactOpts{
		From:    address,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != address {
				return nil, bind.ErrNotAuthorized
			}
			sig, err := signer.SignDigest(ctx, ethSigner.Hash(tx))
			if err != nil {
				return nil, err
			}
			return tx.WithSignature(ethSigner, sig[:])
		},
	}
}
