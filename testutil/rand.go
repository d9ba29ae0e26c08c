package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/brianvoe/gofakeit/v7"
)

// RandomAlphaNum generates random alphanumeric string
// in case length <= 0 it returns empty string
func RandomAlphaNum(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	if length <= 0 {
		return "", fmt.Errorf("length must be greater than 0")
	}

	randomString := make([]byte, length)
	for i := range randomString {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		randomString[i] = charset[num.Int64()]
	}

	return string(randomString), nil
}

// RandomOwner returns a hex encoded 32 byte identity, the same shape as an
// x-only public key.
func RandomOwner() string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = gofakeit.Uint8()
	}
	return hex.EncodeToString(b)
}

// RandomAmount returns an amount in smallest units within [min, max].
func RandomAmount(min, max uint64) uint64 {
	return gofakeit.Uint64()%(max-min+1) + min
}
