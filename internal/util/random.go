package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// RandomHexUpper returns n bytes of randomness as 2n uppercase hex characters.
func RandomHexUpper(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
