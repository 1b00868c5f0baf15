// Package validator implements the one pure function the settlement
// pipeline trusts before it ever commits or imports an L2 block: that the
// block's id matches its header and that its PoA signature was produced by
// the configured block producer.
package validator

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
)

var log = logrus.WithField("component", "validator")

// ErrInvalidBlock is returned by Validate when a block fails either the id
// or the producer-signature check. A block failing validation must never be
// committed or imported (spec §4.7).
var ErrInvalidBlock = errors.New("block failed validation")

// Validator is the capability surface the Block Committer and State Importer
// depend on.
type Validator interface {
	Validate(block ports.FuelBlock) error
}

// BlockValidator checks a block's id and PoA consensus signature against a
// single configured producer address.
type BlockValidator struct {
	blockProducerAddress [32]byte
}

// New returns a BlockValidator that only accepts blocks signed by
// producerAddress.
func New(producerAddress [32]byte) *BlockValidator {
	return &BlockValidator{blockProducerAddress: producerAddress}
}

// Validate verifies that block.ID is the hash of its header fields and that
// its consensus signature recovers to the configured block producer address.
func (v *BlockValidator) Validate(block ports.FuelBlock) error {
	wantID := hashHeader(block.Header)
	if wantID != block.ID {
		log.WithFields(logrus.Fields{
			"height": block.Header.Height,
			"header": spew.Sdump(block.Header),
		}).Error("block id does not match header hash")
		return errors.Wrapf(ErrInvalidBlock, "block %d: id mismatch", block.Header.Height)
	}

	producer, err := recoverProducer(block.ID, block.Consensus.Signature)
	if err != nil {
		return errors.Wrapf(ErrInvalidBlock, "block %d: recovering producer: %s", block.Header.Height, err)
	}

	if producer != v.blockProducerAddress {
		log.WithFields(logrus.Fields{
			"height":   block.Header.Height,
			"got":      producer,
			"expected": v.blockProducerAddress,
		}).Error("block signed by unexpected producer")
		return errors.Wrapf(ErrInvalidBlock, "block %d: signed by unexpected producer", block.Header.Height)
	}

	return nil
}

// hashHeader computes the block id as the Keccak256 hash of the header's
// canonical fields, matching the commitment shape described in spec §3.
func hashHeader(h ports.FuelHeader) [32]byte {
	buf := make([]byte, 0, 4+32+8+32+32)
	buf = append(buf, byte(h.Height>>24), byte(h.Height>>16), byte(h.Height>>8), byte(h.Height))
	buf = append(buf, h.PrevRoot[:]...)
	t := uint64(h.Time)
	buf = append(buf,
		byte(t>>56), byte(t>>48), byte(t>>40), byte(t>>32),
		byte(t>>24), byte(t>>16), byte(t>>8), byte(t))
	buf = append(buf, h.ApplicationHash[:]...)
	buf = append(buf, h.TransactionsRoot[:]...)
	return crypto.Keccak256Hash(buf)
}

// recoverProducer recovers the public key that produced sig over id and
// returns the Keccak256 hash of that key as its 32-byte producer address.
//
// sig is an EIP-2098 compact signature: 64 bytes of [R || S'], where the
// top bit of S' carries the recovery id and the remaining 255 bits are S.
func recoverProducer(id [32]byte, sig [64]byte) ([32]byte, error) {
	full := make([]byte, 65)
	copy(full[:32], sig[:32])
	copy(full[32:64], sig[32:64])
	full[64] = sig[32] >> 7
	full[32] &^= 0x80

	pub, err := crypto.Ecrecover(id[:], full)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "recovering public key from signature")
	}

	return crypto.Keccak256Hash(pub[1:]), nil
}
