// Package kms is the concrete ports.Signer implementation: it asks an
// asymmetric ECC_SECG_P256K1 AWS KMS key to sign each outbound L1
// transaction digest, so the core never holds or originates key material
// (spec §1 Non-goals: "does not originate cryptographic signing"; spec §6
// "main_key_arn"/"blob_pool_key_arn").
package kms

import (
	"context"
	"encoding/asn1"
	"math/big"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// Signer is a ports.Signer backed by a single AWS KMS key ARN.
type Signer struct {
	client  *kms.KMS
	keyARN  string
	address common.Address
}

// New resolves keyARN's public key, derives the Ethereum address it signs
// as, and returns a ready-to-use Signer.
func New(ctx context.Context, keyARN string) (*Signer, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	client := kms.New(sess)

	out, err := client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyARN)})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching public key for %s", keyARN)
	}

	point, err := unmarshalECPoint(out.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "decoding KMS public key")
	}

	return &Signer{
		client:  client,
		keyARN:  keyARN,
		address: common.BytesToAddress(crypto.Keccak256(point[1:])[12:]),
	}, nil
}

// Address returns the account this signer signs as.
func (s *Signer) Address() [20]byte { return s.address }

// SignDigest asks KMS to sign digest and returns a 65-byte recoverable
// secp256k1 signature (R || S || V) in Ethereum's canonical low-S form.
func (s *Signer) SignDigest(ctx context.Context, digest [32]byte) ([65]byte, error) {
	var out [65]byte

	resp, err := s.client.SignWithContext(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyARN),
		Message:          digest[:],
		MessageType:      aws.String(kms.MessageTypeDigest),
		SigningAlgorithm: aws.String(kms.SigningAlgorithmSpecEcdsaSha256),
	})
	if err != nil {
		return out, errors.Wrap(err, "calling KMS Sign")
	}

	r, sVal, err := unmarshalECDSASignature(resp.Signature)
	if err != nil {
		return out, errors.Wrap(err, "decoding KMS signature")
	}
	if sVal.Cmp(secp256k1HalfN) > 0 {
		sVal = new(big.Int).Sub(secp256k1N, sVal)
	}

	rBytes, sBytes := r.Bytes(), sVal.Bytes()
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)

	for v := byte(0); v < 2; v++ {
		out[64] = v
		pub, err := crypto.Ecrecover(digest[:], out[:])
		if err != nil {
			continue
		}
		if common.BytesToAddress(crypto.Keccak256(pub[1:])[12:]) == s.address {
			return out, nil
		}
	}
	return out, errors.New("could not determine recovery id for KMS signature")
}

// asn1SubjectPublicKeyInfo mirrors the DER structure AWS KMS's GetPublicKey
// response encodes its public key as: an algorithm identifier followed by
// the raw EC point packed into a BIT STRING.
type asn1SubjectPublicKeyInfo struct {
	Algorithm struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters asn1.ObjectIdentifier
	}
	PublicKey asn1.BitString
}

func unmarshalECPoint(der []byte) ([]byte, error) {
	var spki asn1SubjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, err
	}
	if len(spki.PublicKey.Bytes) != 65 || spki.PublicKey.Bytes[0] != 0x04 {
		return nil, errors.New("unexpected EC public key encoding")
	}
	return spki.PublicKey.Bytes, nil
}

// asn1ECDSASignature mirrors the DER Ecdsa-Sig-Value structure KMS's Sign
// response encodes its signature as.
type asn1ECDSASignature struct {
	R, S *big.Int
}

func unmarshalECDSASignature(der []byte) (*big.Int, *big.Int, error) {
	var sig asn1ECDSASignature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, nil, err
	}
	return sig.R, sig.S, nil
}
