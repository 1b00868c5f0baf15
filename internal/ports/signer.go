package ports

import "context"

// Signer is the capability surface an external KMS credential provider
// exposes. The core never originates key material or performs signing
// itself (spec §1 Non-goals: "does not originate cryptographic signing");
// every outbound L1 transaction is signed through this surface instead.
type Signer interface {
	// Address is the account this signer signs as.
	Address() [20]byte

	// SignDigest asks the external custodian to sign digest and returns a
	// 65-byte recoverable secp256k1 signature (R || S || V).
	SignDigest(ctx context.Context, digest [32]byte) ([65]byte, error)
}
