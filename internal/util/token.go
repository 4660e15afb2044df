package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenLength   = 25
)

// GenerateSubscriptionToken returns a new random confirmation token.
// Tokens are opaque single-use credentials; they carry no structure.
func GenerateSubscriptionToken() (string, error) {
	b := make([]byte, tokenLength)
	alphabetLen := big.NewInt(int64(len(tokenAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}
