package l2

import (
	"strings"
	"testing"
)

func TestDecodeHash32DecodesPrefixedHex(t *testing.T) {
	// given a 32-byte hex string with a 0x prefix
	in := "0x010203" + strings.Repeat("00", 29)

	// when decoded
	got, err := decodeHash32(in)
	if err != nil {
		t.Fatalf("decodeHash32: %v", err)
	}

	// then the leading bytes match
	if got[0] != 0x01 || got[1] != 0x02 || got[2] != 0x03 {
		t.Fatalf("unexpected decode: %x", got)
	}
}

func TestDecodeHash32RejectsWrongLength(t *testing.T) {
	// given a hex string shorter than 32 bytes
	if _, err := decodeHash32("0x0102"); err == nil {
		t.Fatal("expected error for short hash, got nil")
	}
}
