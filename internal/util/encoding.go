package util

import (
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies Unicode NFKD normalization. Display strings pass through
// this before entering the canonical signed payload, so visually identical
// inputs in different Unicode forms produce the same signature.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
