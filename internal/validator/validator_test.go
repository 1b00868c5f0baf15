package validator

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/l2settle/committer/internal/ports"
)

func signedBlock(t *testing.T, key *ecdsa.PrivateKey, header ports.FuelHeader) ports.FuelBlock {
	t.Helper()
	id := hashHeader(header)
	sig, err := crypto.Sign(id[:], key)
	if err != nil {
		t.Fatalf("signing header: %v", err)
	}
	// Pack into EIP-2098 compact form: the recovery id goes into the top
	// bit of S, matching what recoverProducer expects.
	var fixed [64]byte
	copy(fixed[:], sig[:64])
	if sig[64]&1 != 0 {
		fixed[32] |= 0x80
	}
	return ports.FuelBlock{ID: id, Header: header, Consensus: ports.FuelConsensus{Signature: fixed}}
}

func producerAddress(key *ecdsa.PrivateKey) [32]byte {
	pub := crypto.FromECDSAPub(&key.PublicKey)
	return crypto.Keccak256Hash(pub[1:])
}

func TestValidateAcceptsCorrectlySignedBlock(t *testing.T) {
	// given a block signed by the configured producer
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	header := ports.FuelHeader{Height: 1, Time: 100}
	block := signedBlock(t, key, header)
	v := New(producerAddress(key))

	// when validated, then it passes
	if err := v.Validate(block); err != nil {
		t.Fatalf("expected valid block, got error: %v", err)
	}
}

func TestValidateRejectsWrongProducer(t *testing.T) {
	// given a block signed by a different key than the one configured
	signerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating signer key: %v", err)
	}
	otherKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating other key: %v", err)
	}
	header := ports.FuelHeader{Height: 1, Time: 100}
	block := signedBlock(t, signerKey, header)
	v := New(producerAddress(otherKey))

	// when validated, then it is rejected
	if err := v.Validate(block); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}

func TestValidateRejectsMismatchedID(t *testing.T) {
	// given a block whose id does not match its header
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	header := ports.FuelHeader{Height: 1, Time: 100}
	block := signedBlock(t, key, header)
	block.ID[0] ^= 0xFF

	v := New(producerAddress(key))

	// when validated, then it is rejected
	if err := v.Validate(block); err == nil {
		t.Fatal("expected validation error, got nil")
	}
}
