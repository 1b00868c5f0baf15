package l2

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func decodeHash32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := decodeHex(s)
	if err != nil {
		return out, errors.Wrap(err, "invalid hex")
	}
	if len(b) != 32 {
		return out, errors.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func decodeSignature(s string) ([64]byte, error) {
	var out [64]byte
	b, err := decodeHex(s)
	if err != nil {
		return out, errors.Wrap(err, "invalid hex")
	}
	if len(b) != 64 {
		return out, errors.Errorf("expected 64 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
